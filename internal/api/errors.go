package api

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Client unwraps to exactly one of them.
var (
	// ErrAuth means bad credentials or a missing/expired session. The caller
	// should send the user back to the login screen.
	ErrAuth = errors.New("authentication failed")
	// ErrConflict means the backend rejected the request (duplicate name,
	// unknown friend, no-op change). Not retried.
	ErrConflict = errors.New("request rejected")
	// ErrTransient means the request never got a usable answer. Retried on
	// the next timer tick for background work.
	ErrTransient = errors.New("backend unavailable")
	// ErrUserInput means the request was blocked client-side and never sent.
	ErrUserInput = errors.New("invalid input")
)

// Error describes a failed operation.
type Error struct {
	Op     string
	Status int
	Msg    string
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, msg, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// InputError returns an ErrUserInput error for op.
func InputError(op, msg string) error {
	return &Error{Op: op, Msg: msg, Kind: ErrUserInput}
}

// ConflictError returns an ErrConflict error for op.
func ConflictError(op, msg string) error {
	return &Error{Op: op, Msg: msg, Kind: ErrConflict}
}

// ErrorText returns the human readable part of err, without the operation
// prefix, for inline feedback.
func ErrorText(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
