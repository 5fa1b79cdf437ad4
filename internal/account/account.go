// Package account implements the settings panel: username and password
// changes, the theme preference and logout.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/session"
	"github.com/glasschat/glasschat-client/internal/storage"
)

// Theme names as stored.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Backend is the part of the API the panel needs.
type Backend interface {
	ChangeUsername(ctx context.Context, user, newUsername string) error
	ChangePassword(ctx context.Context, user, newPassword string) error
}

// Panel applies account changes to the backend and the local session.
type Panel struct {
	backend  Backend
	sessions *session.Manager
	shared   storage.Store
	logger   *slog.Logger
}

func NewPanel(backend Backend, sessions *session.Manager, shared storage.Store, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{backend: backend, sessions: sessions, shared: shared, logger: logger}
}

// ChangeUsername renames the logged in user.
func (p *Panel) ChangeUsername(ctx context.Context, newUsername string) error {
	const op = "change username"
	newUsername = strings.TrimSpace(newUsername)
	if newUsername == "" {
		return api.InputError(op, "enter a new username")
	}
	cur, ok := p.sessions.Current()
	if !ok {
		return &api.Error{Op: op, Msg: "not logged in", Kind: api.ErrAuth}
	}
	if newUsername == cur.User {
		return api.ConflictError(op, "that is already your username")
	}

	if err := p.backend.ChangeUsername(ctx, cur.User, newUsername); err != nil {
		return explain(op, err, "username is taken or your session is invalid")
	}
	p.sessions.Rename(newUsername)
	p.logger.Info("Username changed", "from", cur.User, "to", newUsername)
	return nil
}

// ChangePassword sets a new password for the logged in user.
func (p *Panel) ChangePassword(ctx context.Context, newPassword string) error {
	const op = "change password"
	if newPassword == "" {
		return api.InputError(op, "enter a new password")
	}
	cur, ok := p.sessions.Current()
	if !ok {
		return &api.Error{Op: op, Msg: "not logged in", Kind: api.ErrAuth}
	}
	if newPassword == cur.Credentials.Password {
		return api.ConflictError(op, "new password matches the current one")
	}

	if err := p.backend.ChangePassword(ctx, cur.User, newPassword); err != nil {
		return explain(op, err, "user not found or your session is invalid")
	}
	p.sessions.UpdatePassword(newPassword)
	p.logger.Info("Password changed", "user", cur.User)
	return nil
}

// explain maps a backend failure to panel feedback: a rejection with the
// specific reason, anything else as a generic failure.
func explain(op string, err error, rejected string) error {
	var e *api.Error
	if errors.As(err, &e) && errors.Is(err, api.ErrConflict) {
		msg := e.Msg
		if msg == "" {
			msg = rejected
		}
		return &api.Error{Op: op, Status: e.Status, Msg: msg, Kind: api.ErrConflict}
	}
	if errors.Is(err, api.ErrTransient) {
		return &api.Error{Op: op, Msg: "could not reach the server, try again", Kind: api.ErrTransient, Err: err}
	}
	return err
}

// Dark reports whether the dark theme is selected. Light is the default.
func (p *Panel) Dark() bool {
	v, _ := p.shared.Get(storage.KeyTheme)
	return v == ThemeDark
}

// SetDark stores the theme preference.
func (p *Panel) SetDark(dark bool) {
	v := ThemeLight
	if dark {
		v = ThemeDark
	}
	_ = p.shared.Set(storage.KeyTheme, v)
}

// ToggleTheme flips the theme and returns whether it is now dark.
func (p *Panel) ToggleTheme() bool {
	dark := !p.Dark()
	p.SetDark(dark)
	return dark
}

// Logout ends the session in this client.
func (p *Panel) Logout() {
	if u, ok := p.sessions.CurrentUser(); ok {
		p.logger.Info("Logged out", "user", u)
	}
	p.sessions.Logout()
}
