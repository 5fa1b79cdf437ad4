package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/storage"
)

type fakeAuth struct {
	calls int
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (api.LoginResult, error) {
	f.calls++
	if password != "secret" {
		return api.LoginResult{}, &api.Error{Op: "login", Status: 401, Kind: api.ErrAuth}
	}
	return api.LoginResult{OK: true, Username: username, Password: password}, nil
}

func newManager(persistent storage.Store) (*Manager, *fakeAuth) {
	auth := &fakeAuth{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(auth, storage.NewMemory(), persistent, logger), auth
}

func TestLoginStoresTabSession(t *testing.T) {
	m, _ := newManager(storage.NewMemory())
	if _, ok := m.CurrentUser(); ok {
		t.Fatalf("expected no user before login")
	}

	s, err := m.Login(context.Background(), "  alice ", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s.User != "alice" || s.Token == "" {
		t.Fatalf("unexpected session %+v", s)
	}
	user, ok := m.CurrentUser()
	if !ok || user != "alice" {
		t.Fatalf("expected alice, got %q", user)
	}
	cur, _ := m.Current()
	if cur.Credentials.Password != "secret" || cur.Token != s.Token {
		t.Fatalf("unexpected current session %+v", cur)
	}
}

func TestLoginRejectsEmptyInputLocally(t *testing.T) {
	m, auth := newManager(storage.NewMemory())
	_, err := m.Login(context.Background(), " ", "secret")
	if !errors.Is(err, api.ErrUserInput) {
		t.Fatalf("expected ErrUserInput, got %v", err)
	}
	if auth.calls != 0 {
		t.Fatalf("expected backend not to be called")
	}
}

func TestLoginFailureLeavesLoggedOut(t *testing.T) {
	m, _ := newManager(storage.NewMemory())
	_, err := m.Login(context.Background(), "alice", "nope")
	if !errors.Is(err, api.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if _, ok := m.CurrentUser(); ok {
		t.Fatalf("expected no user after failed login")
	}
}

func TestTabsAreIsolatedButResumable(t *testing.T) {
	shared := storage.NewMemory()
	tab1, _ := newManager(shared)
	tab2, _ := newManager(shared)

	s, err := tab1.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, ok := tab2.CurrentUser(); ok {
		t.Fatalf("expected second tab to be logged out")
	}
	if _, ok := tab2.Resume("unknown"); ok {
		t.Fatalf("expected unknown token to fail")
	}
	resumed, ok := tab2.Resume(s.Token)
	if !ok || resumed.User != "alice" {
		t.Fatalf("expected resume to restore alice, got %+v", resumed)
	}
}

func TestRenameAndLogout(t *testing.T) {
	shared := storage.NewMemory()
	m, _ := newManager(shared)
	s, _ := m.Login(context.Background(), "alice", "secret")

	m.Rename("alicia")
	if user, _ := m.CurrentUser(); user != "alicia" {
		t.Fatalf("expected renamed user, got %q", user)
	}
	if got := m.Sessions()[s.Token]; got != "alicia" {
		t.Fatalf("expected registry to follow rename, got %q", got)
	}

	m.UpdatePassword("n3w")
	if cur, _ := m.Current(); cur.Credentials.Password != "n3w" {
		t.Fatalf("expected password echo updated")
	}

	m.Logout()
	if _, ok := m.CurrentUser(); ok {
		t.Fatalf("expected logged out")
	}
	if _, ok := m.Sessions()[s.Token]; ok {
		t.Fatalf("expected registry entry removed")
	}
}
