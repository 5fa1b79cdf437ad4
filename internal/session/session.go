// Package session resolves who is logged in. Identity is tab-scoped: each
// client process holds its own handle and session token, and a registry in
// the persistent store lets another process resume a session by token.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/storage"
)

// Authenticator checks credentials against the backend.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (api.LoginResult, error)
}

// Credentials is the client-side echo of what the user typed at login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is the identity of this client process.
type Session struct {
	User        string
	Token       string
	Credentials Credentials
}

// entry is one record of the session registry.
type entry struct {
	User    string    `json:"user"`
	Created time.Time `json:"created"`
}

// Manager owns the session keys in both stores.
type Manager struct {
	mu         sync.Mutex
	auth       Authenticator
	tab        storage.Store
	persistent storage.Store
	logger     *slog.Logger
	now        func() time.Time
}

func NewManager(auth Authenticator, tab, persistent storage.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		auth:       auth,
		tab:        tab,
		persistent: persistent,
		logger:     logger,
		now:        time.Now,
	}
}

// Login authenticates and stores the new session for this tab.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, api.InputError("login", "username and password are required")
	}

	res, err := m.auth.Login(ctx, username, password)
	if err != nil {
		return Session{}, err
	}

	s := Session{
		User:        res.Username,
		Token:       uuid.NewString(),
		Credentials: Credentials{Username: res.Username, Password: password},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(s)

	reg := m.registry()
	reg[s.Token] = entry{User: s.User, Created: m.now()}
	m.saveRegistry(reg)

	m.logger.Info("Logged in", "user", s.User, "token", s.Token)
	return s, nil
}

// CurrentUser returns the handle of the logged in user.
func (m *Manager) CurrentUser() (string, bool) {
	user, ok := m.tab.Get(storage.KeyUser)
	if !ok || user == "" {
		return "", false
	}
	return user, true
}

// Current returns the full session of this tab.
func (m *Manager) Current() (Session, bool) {
	user, ok := m.CurrentUser()
	if !ok {
		return Session{}, false
	}
	s := Session{User: user}
	s.Token, _ = m.tab.Get(storage.KeySessionToken)
	if raw, ok := m.tab.Get(storage.KeyUserInfo); ok {
		_ = json.Unmarshal([]byte(raw), &s.Credentials)
	}
	return s, true
}

// Resume restores a session registered by another process.
func (m *Manager) Resume(token string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.registry()[token]
	if !ok || e.User == "" {
		return Session{}, false
	}
	s := Session{User: e.User, Token: token, Credentials: Credentials{Username: e.User}}
	m.store(s)
	m.logger.Info("Resumed session", "user", s.User, "token", token)
	return s, true
}

// Sessions lists registered session tokens and their handles.
func (m *Manager) Sessions() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for token, e := range m.registry() {
		out[token] = e.User
	}
	return out
}

// Rename records a successful username change.
func (m *Manager) Rename(newUser string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.Current()
	if !ok {
		return
	}
	s.User = newUser
	s.Credentials.Username = newUser
	m.store(s)

	reg := m.registry()
	if e, ok := reg[s.Token]; ok {
		e.User = newUser
		reg[s.Token] = e
		m.saveRegistry(reg)
	}
}

// UpdatePassword records a successful password change.
func (m *Manager) UpdatePassword(password string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.Current()
	if !ok {
		return
	}
	s.Credentials.Password = password
	m.store(s)
}

// Logout clears this tab's session.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token, ok := m.tab.Get(storage.KeySessionToken); ok {
		reg := m.registry()
		delete(reg, token)
		m.saveRegistry(reg)
	}
	_ = m.tab.Remove(storage.KeyUser)
	_ = m.tab.Remove(storage.KeyUserInfo)
	_ = m.tab.Remove(storage.KeySessionToken)
}

func (m *Manager) store(s Session) {
	_ = m.tab.Set(storage.KeyUser, s.User)
	_ = m.tab.Set(storage.KeySessionToken, s.Token)
	if b, err := json.Marshal(s.Credentials); err == nil {
		_ = m.tab.Set(storage.KeyUserInfo, string(b))
	}
}

func (m *Manager) registry() map[string]entry {
	reg := make(map[string]entry)
	raw, ok := m.persistent.Get(storage.KeySessions)
	if !ok {
		return reg
	}
	if err := json.Unmarshal([]byte(raw), &reg); err != nil {
		m.logger.Warn("Discarding unreadable session registry", "err", err)
		return make(map[string]entry)
	}
	return reg
}

func (m *Manager) saveRegistry(reg map[string]entry) {
	b, err := json.Marshal(reg)
	if err != nil {
		return
	}
	_ = m.persistent.Set(storage.KeySessions, string(b))
}
