package storage

import (
	"log/slog"
	"sync"
)

// Keys shared across the client. Tab-scoped keys live in the per-process
// store; the rest are shared through the persistent store.
const (
	KeyTheme         = "theme"
	KeyUser          = "chat-user"
	KeyUserInfo      = "user-info"
	KeySessionToken  = "session-token"
	KeySessions      = "sessions"
	KeyUnreadChanged = "unread-changed"
)

// Store is a string key-value store.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// Memory is a Store that lives for the lifetime of the process. It backs
// tab-scoped state.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Safe wraps a Store so that failures of the backing store never reach the
// caller. Reads that fail report an absent value; writes that fail are
// logged and dropped.
type Safe struct {
	backing Store
	logger  *slog.Logger
	name    string
}

// NewSafe wraps backing. A nil backing store behaves as an always-empty
// store.
func NewSafe(name string, backing Store, logger *slog.Logger) *Safe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Safe{backing: backing, logger: logger, name: name}
}

func (s *Safe) Get(key string) (value string, ok bool) {
	if s.backing == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Storage read failed", "store", s.name, "key", key, "panic", r)
			value, ok = "", false
		}
	}()
	return s.backing.Get(key)
}

func (s *Safe) Set(key, value string) (err error) {
	if s.backing == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Storage write failed", "store", s.name, "key", key, "panic", r)
		}
	}()
	if err := s.backing.Set(key, value); err != nil {
		s.logger.Warn("Storage write failed", "store", s.name, "key", key, "err", err)
	}
	return nil
}

func (s *Safe) Remove(key string) (err error) {
	if s.backing == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Storage remove failed", "store", s.name, "key", key, "panic", r)
		}
	}()
	if err := s.backing.Remove(key); err != nil {
		s.logger.Warn("Storage remove failed", "store", s.name, "key", key, "err", err)
	}
	return nil
}
