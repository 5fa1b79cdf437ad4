package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
)

type failingStore struct{}

func (failingStore) Get(string) (string, bool) { panic("denied") }
func (failingStore) Set(string, string) error  { return errors.New("quota exceeded") }
func (failingStore) Remove(string) error       { return errors.New("denied") }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Get(KeyUser); ok {
		t.Fatalf("expected empty store")
	}
	_ = m.Set(KeyUser, "alice")
	if v, ok := m.Get(KeyUser); !ok || v != "alice" {
		t.Fatalf("expected alice, got %q (%v)", v, ok)
	}
	_ = m.Remove(KeyUser)
	if _, ok := m.Get(KeyUser); ok {
		t.Fatalf("expected key removed")
	}
}

func TestSafeSwallowsBackingFailures(t *testing.T) {
	s := NewSafe("test", failingStore{}, quietLogger())
	if v, ok := s.Get(KeyTheme); ok || v != "" {
		t.Fatalf("expected absent value, got %q", v)
	}
	if err := s.Set(KeyTheme, "dark"); err != nil {
		t.Fatalf("expected set failure to be swallowed, got %v", err)
	}
	if err := s.Remove(KeyTheme); err != nil {
		t.Fatalf("expected remove failure to be swallowed, got %v", err)
	}
}

func TestSafeWithoutBacking(t *testing.T) {
	s := NewSafe("nil", nil, quietLogger())
	if _, ok := s.Get(KeyUser); ok {
		t.Fatalf("expected nil backing to read as empty")
	}
	if err := s.Set(KeyUser, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPebblePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	p, err := OpenPebble(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := p.Set(KeyTheme, "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := p.Remove("missing"); err != nil {
		t.Fatalf("remove missing key: %v", err)
	}

	p, err = OpenPebble(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := p.Get(KeyTheme); !ok || v != "dark" {
		t.Fatalf("expected persisted theme, got %q (%v)", v, ok)
	}
	if _, ok := p.Get("missing"); ok {
		t.Fatalf("missing key reported present")
	}
}

func TestOpenSharesStoreBetweenClients(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	first := Open(dir, quietLogger())
	second := Open(dir, quietLogger())

	_ = first.Set(KeySessions, `{"t1":{"user":"alice"}}`)
	if v, ok := second.Get(KeySessions); !ok || v != `{"t1":{"user":"alice"}}` {
		t.Fatalf("second client sees %q (%v)", v, ok)
	}
	_ = second.Remove(KeySessions)
	if _, ok := first.Get(KeySessions); ok {
		t.Fatalf("removal not visible to first client")
	}
}

func TestPebbleConcurrentWriters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	a, err := OpenPebble(dir)
	if err != nil {
		t.Fatal(err)
	}
	b, err := OpenPebble(dir)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i, p := range []*Pebble{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 5 {
				if err := p.Set(fmt.Sprintf("k%d-%d", i, j), "v"); err != nil {
					t.Errorf("writer %d: %v", i, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for i := range 2 {
		for j := range 5 {
			if _, ok := a.Get(fmt.Sprintf("k%d-%d", i, j)); !ok {
				t.Fatalf("key k%d-%d lost", i, j)
			}
		}
	}
}

func TestOpenFallsBackToMemory(t *testing.T) {
	s := Open("", quietLogger())
	_ = s.Set(KeyTheme, "light")
	if v, _ := s.Get(KeyTheme); v != "light" {
		t.Fatalf("expected memory fallback to hold value, got %q", v)
	}
}
