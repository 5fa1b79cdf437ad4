package account

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/session"
	"github.com/glasschat/glasschat-client/internal/storage"
)

type fakeAuth struct{}

func (fakeAuth) Login(_ context.Context, username, password string) (api.LoginResult, error) {
	return api.LoginResult{OK: true, Username: username, Password: password}, nil
}

type fakeBackend struct {
	renames   []string
	passwords []string
	err       error
}

func (f *fakeBackend) ChangeUsername(_ context.Context, _, newUsername string) error {
	if f.err != nil {
		return f.err
	}
	f.renames = append(f.renames, newUsername)
	return nil
}

func (f *fakeBackend) ChangePassword(_ context.Context, _, newPassword string) error {
	if f.err != nil {
		return f.err
	}
	f.passwords = append(f.passwords, newPassword)
	return nil
}

func newPanel(t *testing.T) (*Panel, *fakeBackend, *session.Manager, storage.Store) {
	t.Helper()
	shared := storage.NewMemory()
	sessions := session.NewManager(fakeAuth{}, storage.NewMemory(), shared, nil)
	if _, err := sessions.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	b := &fakeBackend{}
	return NewPanel(b, sessions, shared, nil), b, sessions, shared
}

func TestChangeUsernameGuards(t *testing.T) {
	p, b, sessions, _ := newPanel(t)

	if err := p.ChangeUsername(context.Background(), " "); !errors.Is(err, api.ErrUserInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if err := p.ChangeUsername(context.Background(), "alice"); !errors.Is(err, api.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(b.renames) != 0 {
		t.Fatalf("guarded change reached the backend")
	}

	if err := p.ChangeUsername(context.Background(), "alicia"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if u, _ := sessions.CurrentUser(); u != "alicia" {
		t.Fatalf("session not renamed, got %q", u)
	}
}

func TestChangeUsernameRejected(t *testing.T) {
	p, b, sessions, _ := newPanel(t)
	b.err = &api.Error{Op: "change username", Status: http.StatusUnauthorized, Kind: api.ErrConflict}

	err := p.ChangeUsername(context.Background(), "bob")
	if !errors.Is(err, api.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if api.ErrorText(err) != "username is taken or your session is invalid" {
		t.Fatalf("unexpected message %q", api.ErrorText(err))
	}
	if u, _ := sessions.CurrentUser(); u != "alice" {
		t.Fatalf("failed rename changed the session")
	}
}

func TestChangePassword(t *testing.T) {
	p, b, sessions, _ := newPanel(t)

	if err := p.ChangePassword(context.Background(), ""); !errors.Is(err, api.ErrUserInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if err := p.ChangePassword(context.Background(), "secret"); !errors.Is(err, api.ErrConflict) {
		t.Fatalf("expected conflict for unchanged password, got %v", err)
	}
	if err := p.ChangePassword(context.Background(), "better"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	cur, _ := sessions.Current()
	if cur.Credentials.Password != "better" || len(b.passwords) != 1 {
		t.Fatalf("password not updated: %+v", cur)
	}

	b.err = &api.Error{Op: "change password", Kind: api.ErrTransient}
	err := p.ChangePassword(context.Background(), "best")
	if !errors.Is(err, api.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestThemeAndLogout(t *testing.T) {
	p, _, sessions, shared := newPanel(t)
	if p.Dark() {
		t.Fatalf("light is the default theme")
	}
	if !p.ToggleTheme() || !p.Dark() {
		t.Fatalf("expected dark after toggle")
	}
	if v, _ := shared.Get(storage.KeyTheme); v != ThemeDark {
		t.Fatalf("theme not persisted, got %q", v)
	}

	p.Logout()
	if _, ok := sessions.CurrentUser(); ok {
		t.Fatalf("still logged in after logout")
	}
}
