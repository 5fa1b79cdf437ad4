package internal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/session"
	"github.com/glasschat/glasschat-client/internal/storage"
)

func TestReadConfigWritesDefaultsWhenMissing(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	prefs, err := readConfig(cfgPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if prefs.ServerURL != "http://localhost:5000" {
		t.Fatalf("unexpected server %q", prefs.ServerURL)
	}
	if prefs.PollInterval != 2*time.Second || prefs.FriendRefreshInterval != 5*time.Second {
		t.Fatalf("unexpected intervals %v %v", prefs.PollInterval, prefs.FriendRefreshInterval)
	}
	if !prefs.EnableSounds {
		t.Fatalf("sounds should default on")
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config not written: %v", err)
	}
}

func TestReadConfigFillsUnsetValues(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "ServerURL: https://chat.example\nPollInterval: 500ms\nEnableSounds: false\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	prefs, err := readConfig(cfgPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if prefs.ServerURL != "https://chat.example" || prefs.PollInterval != 500*time.Millisecond {
		t.Fatalf("file values lost: %+v", prefs)
	}
	if prefs.EnableSounds {
		t.Fatalf("explicit false overridden")
	}
	if prefs.FriendRefreshInterval != defaultFriendRefreshInterval || prefs.DataDir == "" {
		t.Fatalf("defaults not filled: %+v", prefs)
	}
	if got := prefs.realtimeURL(); got != "https://chat.example/ws" {
		t.Fatalf("realtime url %q", got)
	}
}

func TestReadConfigRejectsGarbage(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("PollInterval: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readConfig(cfgPath); err == nil {
		t.Fatalf("expected decode error")
	}
}

type okAuth struct{}

func (okAuth) Login(_ context.Context, username, password string) (api.LoginResult, error) {
	return api.LoginResult{OK: true, Username: username, Password: password}, nil
}

func TestListSessionsReadsRegistry(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	prefs := defaultSettings()
	prefs.DataDir = filepath.Join(dir, "data")
	if err := writeConfig(cfgPath, prefs); err != nil {
		t.Fatal(err)
	}

	db, err := storage.OpenPebble(filepath.Join(prefs.DataDir, "store"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := session.NewManager(okAuth{}, storage.NewMemory(), storage.NewSafe("persistent", db, logger), logger)
	s, err := m.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	sessions, err := ListSessions(cfgPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if sessions[s.Token] != "alice" {
		t.Fatalf("unexpected sessions %v", sessions)
	}
}
