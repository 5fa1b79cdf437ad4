package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 4 << 10

// Client talks to the chat backend. Every request goes through do, which
// returns a decoded JSON body or an *Error.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient returns a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// request describes one backend call.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	user        string
	body        any
	rawBody     io.Reader
	contentType string
	// conflictOn lists statuses that mean ErrConflict rather than ErrAuth.
	conflictOn []int
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	var body io.Reader
	contentType := r.contentType
	switch {
	case r.rawBody != nil:
		body = r.rawBody
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, &Error{Op: r.op, Kind: ErrUserInput, Err: err}
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), body)
	if err != nil {
		return nil, &Error{Op: r.op, Kind: ErrTransient, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if r.user != "" {
		req.Header.Set("X-User", r.user)
	}
	return req, nil
}

// send performs the request and classifies HTTP-level failures. On success
// the caller owns the response body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Request failed", "op", r.op, "err", err)
		return nil, &Error{Op: r.op, Kind: ErrTransient, Err: err}
	}
	c.logger.Debug("Request", "op", r.op, "method", r.method, "path", r.path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env envelope
	_ = json.Unmarshal(b, &env)

	return nil, &Error{
		Op:     r.op,
		Status: resp.StatusCode,
		Msg:    env.Msg,
		Kind:   classify(resp.StatusCode, r.conflictOn),
	}
}

func classify(status int, conflictOn []int) error {
	for _, s := range conflictOn {
		if s == status {
			return ErrConflict
		}
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return ErrTransient
	default:
		return ErrConflict
	}
}

// do sends r and decodes the JSON reply into out (which may be nil). A reply
// carrying "ok": false is reported as ErrConflict with the server message.
func (c *Client) do(ctx context.Context, r request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: r.op, Kind: ErrTransient, Err: err}
	}

	var env envelope
	if len(bytes.TrimSpace(b)) > 0 && b[0] == '{' {
		if err := json.Unmarshal(b, &env); err != nil {
			return &Error{Op: r.op, Kind: ErrTransient, Err: fmt.Errorf("decode reply: %w", err)}
		}
		if env.OK != nil && !*env.OK {
			return &Error{Op: r.op, Status: resp.StatusCode, Msg: env.Msg, Kind: ErrConflict}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &Error{Op: r.op, Kind: ErrTransient, Err: fmt.Errorf("decode reply: %w", err)}
	}
	return nil
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
