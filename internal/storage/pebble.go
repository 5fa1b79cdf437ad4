package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/pebble/v2"
)

const (
	lockAttempts   = 40
	lockRetryDelay = 25 * time.Millisecond
)

// Pebble is a persistent Store backed by a pebble database. Pebble locks its
// directory while open, so the database is held only for the duration of
// each operation; every client process using the same data directory sees
// the same values.
type Pebble struct {
	dir string
	mu  sync.Mutex
}

// OpenPebble creates the database at dir if needed and checks that it can
// be opened.
func OpenPebble(dir string) (*Pebble, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	p := &Pebble{dir: filepath.Clean(dir)}
	if err := p.with(func(*pebble.DB) error { return nil }); err != nil {
		return nil, err
	}
	return p, nil
}

// with opens the database, runs fn and closes it again. Opening is retried
// while another process holds the lock.
func (p *Pebble) with(fn func(db *pebble.DB) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		db  *pebble.DB
		err error
	)
	for attempt := range lockAttempts {
		db, err = pebble.Open(p.dir, &pebble.Options{})
		if err == nil || !lockHeld(err) {
			break
		}
		if attempt < lockAttempts-1 {
			time.Sleep(lockRetryDelay)
		}
	}
	if err != nil {
		return fmt.Errorf("open pebble: %w", err)
	}

	fnErr := fn(db)
	if err := db.Close(); err != nil && fnErr == nil {
		return fmt.Errorf("close pebble: %w", err)
	}
	return fnErr
}

// lockHeld reports whether err means another opener holds the directory lock.
func lockHeld(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK) ||
		errors.Is(err, syscall.EACCES) ||
		strings.Contains(err.Error(), "lock held")
}

// Get reports a missing key and an unreadable database alike as absent.
func (p *Pebble) Get(key string) (value string, ok bool) {
	err := p.with(func(db *pebble.DB) error {
		val, closer, err := db.Get([]byte(key))
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()
		value, ok = string(val), true
		return nil
	})
	if err != nil {
		return "", false
	}
	return value, ok
}

func (p *Pebble) Set(key, value string) error {
	return p.with(func(db *pebble.DB) error {
		return db.Set([]byte(key), []byte(value), pebble.Sync)
	})
}

func (p *Pebble) Remove(key string) error {
	return p.with(func(db *pebble.DB) error {
		err := db.Delete([]byte(key), pebble.Sync)
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		return err
	})
}

// Open returns the persistent store for dir wrapped in Safe. When the
// database cannot be created the client keeps running on an in-memory store
// and preferences do not survive a restart.
func Open(dir string, logger *slog.Logger) *Safe {
	if dir == "" {
		return NewSafe("persistent", NewMemory(), logger)
	}
	db, err := OpenPebble(dir)
	if err != nil {
		logger.Warn("Persistent storage unavailable; using memory", "dir", dir, "err", err)
		return NewSafe("persistent", NewMemory(), logger)
	}
	return NewSafe("persistent", db, logger)
}
