package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

// Login checks credentials. A rejected login is reported as ErrAuth.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"username": username, "password": password},
	}, &res)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == ErrConflict && e.Status == http.StatusOK {
			// {"ok": false} on a 200 still means bad credentials.
			e.Kind = ErrAuth
		}
		return LoginResult{}, err
	}
	if res.Username == "" {
		res.Username = username
	}
	return res, nil
}

// Friends returns the roster of user in server order.
func (c *Client) Friends(ctx context.Context, user string) ([]string, error) {
	var friends []string
	err := c.do(ctx, request{
		op:     "friends",
		method: http.MethodGet,
		path:   "/api/friends",
		query:  url.Values{"u": {user}},
		user:   user,
	}, &friends)
	return friends, err
}

// AddFriend asks the backend to add name to user's roster.
func (c *Client) AddFriend(ctx context.Context, user, name string) error {
	return c.do(ctx, request{
		op:         "add friend",
		method:     http.MethodPost,
		path:       "/api/add-friend",
		user:       user,
		body:       map[string]string{"friendName": name},
		conflictOn: []int{http.StatusNotFound, http.StatusConflict},
	}, nil)
}

// RemoveFriend removes name from user's roster.
func (c *Client) RemoveFriend(ctx context.Context, user, name string) error {
	return c.do(ctx, request{
		op:     "remove friend",
		method: http.MethodPost,
		path:   "/api/remove-friend",
		user:   user,
		body:   map[string]string{"friendName": name},
	}, nil)
}

// ClearHistory deletes the conversation between user and friend.
func (c *Client) ClearHistory(ctx context.Context, user, friend string) error {
	return c.do(ctx, request{
		op:     "clear history",
		method: http.MethodPost,
		path:   "/api/clear-history",
		user:   user,
		body:   map[string]string{"friend": friend},
	}, nil)
}

// ChatHistory returns the full ordered history between user and friend.
func (c *Client) ChatHistory(ctx context.Context, user, friend string) ([]Message, error) {
	var res struct {
		History []Message `json:"history"`
	}
	err := c.do(ctx, request{
		op:     "chat history",
		method: http.MethodGet,
		path:   "/api/chat-history",
		query:  url.Values{"friend": {friend}},
		user:   user,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res.History, nil
}

// SendMessage posts content from user to recipient.
func (c *Client) SendMessage(ctx context.Context, user, recipient, content string) error {
	return c.do(ctx, request{
		op:     "send message",
		method: http.MethodPost,
		path:   "/api/send-message",
		user:   user,
		body:   map[string]string{"recipient": recipient, "content": content},
	}, nil)
}

// MarkRead records that user has read everything from friend.
func (c *Client) MarkRead(ctx context.Context, user, friend string) error {
	return c.do(ctx, request{
		op:     "mark read",
		method: http.MethodPost,
		path:   "/api/mark-messages-as-read",
		user:   user,
		body:   map[string]string{"friend": friend},
	}, nil)
}

// UnreadCounts returns unread message counts keyed by friend handle.
func (c *Client) UnreadCounts(ctx context.Context, user string) (map[string]int, error) {
	var res struct {
		UnreadCounts map[string]int `json:"unread_counts"`
	}
	err := c.do(ctx, request{
		op:     "unread counts",
		method: http.MethodGet,
		path:   "/api/unread-messages",
		user:   user,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.UnreadCounts == nil {
		res.UnreadCounts = map[string]int{}
	}
	return res.UnreadCounts, nil
}

// UploadImage uploads an image and returns its opaque identifier.
func (c *Client) UploadImage(ctx context.Context, user, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return "", &Error{Op: "upload image", Kind: ErrUserInput, Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", &Error{Op: "upload image", Kind: ErrUserInput, Err: fmt.Errorf("read %s: %w", filename, err)}
	}
	if err := mw.Close(); err != nil {
		return "", &Error{Op: "upload image", Kind: ErrUserInput, Err: err}
	}

	var res struct {
		ImageID ID `json:"image_id"`
	}
	err = c.do(ctx, request{
		op:          "upload image",
		method:      http.MethodPost,
		path:        "/api/upload-image",
		user:        user,
		rawBody:     &buf,
		contentType: mw.FormDataContentType(),
	}, &res)
	if err != nil {
		return "", err
	}
	if res.ImageID == "" {
		return "", &Error{Op: "upload image", Msg: "no image id in reply", Kind: ErrTransient}
	}
	return string(res.ImageID), nil
}

// Image fetches the bytes of an uploaded image.
func (c *Client) Image(ctx context.Context, user, id string) ([]byte, string, error) {
	resp, err := c.send(ctx, request{
		op:     "get image",
		method: http.MethodGet,
		path:   "/api/get-image/" + url.PathEscape(id),
		user:   user,
	})
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{Op: "get image", Kind: ErrTransient, Err: err}
	}
	return b, resp.Header.Get("Content-Type"), nil
}

// SearchMusic queries the external music search.
func (c *Client) SearchMusic(ctx context.Context, keyword string) ([]Track, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, InputError("music search", "enter a search keyword")
	}
	var res struct {
		Songs []Track `json:"songs"`
	}
	err := c.do(ctx, request{
		op:     "music search",
		method: http.MethodGet,
		path:   "/api/music/search",
		query:  url.Values{"keyword": {keyword}},
	}, &res)
	return res.Songs, err
}

// MusicURL resolves the playable stream URL for a track.
func (c *Client) MusicURL(ctx context.Context, id ID) (string, error) {
	var res struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, request{
		op:     "music url",
		method: http.MethodGet,
		path:   "/api/music/url",
		query:  url.Values{"id": {string(id)}},
	}, &res)
	if err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", &Error{Op: "music url", Msg: "track is not playable", Kind: ErrConflict}
	}
	return res.URL, nil
}

// Lyric returns the LRC lyrics of a track; empty when it has none.
func (c *Client) Lyric(ctx context.Context, id ID) (string, error) {
	var res struct {
		Lyric string `json:"lyric"`
	}
	err := c.do(ctx, request{
		op:     "music lyric",
		method: http.MethodGet,
		path:   "/api/music/lyric",
		query:  url.Values{"id": {string(id)}},
	}, &res)
	return res.Lyric, err
}

// ChangeUsername renames user. 401 means the new name is taken or the old
// one is unknown.
func (c *Client) ChangeUsername(ctx context.Context, user, newUsername string) error {
	return c.do(ctx, request{
		op:         "change username",
		method:     http.MethodPost,
		path:       "/api/change-username",
		user:       user,
		body:       map[string]string{"newUsername": newUsername},
		conflictOn: []int{http.StatusUnauthorized, http.StatusConflict},
	}, nil)
}

// ChangePassword sets a new password for user.
func (c *Client) ChangePassword(ctx context.Context, user, newPassword string) error {
	return c.do(ctx, request{
		op:         "change password",
		method:     http.MethodPost,
		path:       "/api/change-password",
		user:       user,
		body:       map[string]string{"newPassword": newPassword},
		conflictOn: []int{http.StatusUnauthorized},
	}, nil)
}

// Stream opens rawURL for reading. Relative URLs resolve against the
// backend. The caller closes the body.
func (c *Client) Stream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := c.base.Parse(rawURL)
	if err != nil {
		return nil, &Error{Op: "stream", Kind: ErrConflict, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Op: "stream", Kind: ErrTransient, Err: err}
	}
	// The body may take longer than the request timeout to drain; ctx bounds it.
	hc := *c.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &Error{Op: "stream", Kind: ErrTransient, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, &Error{Op: "stream", Status: resp.StatusCode, Kind: classify(resp.StatusCode, nil)}
	}
	return resp.Body, nil
}
