package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glasschat/glasschat-client/internal/session"
	"github.com/glasschat/glasschat-client/internal/storage"
)

type Settings struct {
	ServerURL             string        `yaml:"ServerURL"`
	RealtimeURL           string        `yaml:"RealtimeURL"`
	DataDir               string        `yaml:"DataDir"`
	DownloadDir           string        `yaml:"DownloadDir"`
	EnableSounds          bool          `yaml:"EnableSounds"`
	EnableNotifications   bool          `yaml:"EnableNotifications"`
	PollInterval          time.Duration `yaml:"PollInterval"`
	FriendRefreshInterval time.Duration `yaml:"FriendRefreshInterval"`
}

const (
	defaultPollInterval          = 2 * time.Second
	defaultFriendRefreshInterval = 5 * time.Second
)

func defaultSettings() *Settings {
	home, _ := os.UserHomeDir()
	return &Settings{
		ServerURL:             "http://localhost:5000",
		DataDir:               filepath.Join(home, ".glasschat"),
		DownloadDir:           filepath.Join(home, "Downloads", "glasschat"),
		EnableSounds:          true,
		PollInterval:          defaultPollInterval,
		FriendRefreshInterval: defaultFriendRefreshInterval,
	}
}

// readConfig loads the settings at cfgPath. A missing file is created with
// defaults.
func readConfig(cfgPath string) (*Settings, error) {
	prefs := defaultSettings()

	fh, err := os.Open(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeConfig(cfgPath, prefs); err != nil {
			return nil, err
		}
		return prefs, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fh.Close()
	}()

	decoder := yaml.NewDecoder(fh)
	if err := decoder.Decode(prefs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", cfgPath, err)
	}
	prefs.fill()
	return prefs, nil
}

// fill replaces unset values with defaults.
func (s *Settings) fill() {
	d := defaultSettings()
	if s.ServerURL == "" {
		s.ServerURL = d.ServerURL
	}
	if s.DataDir == "" {
		s.DataDir = d.DataDir
	}
	if s.DownloadDir == "" {
		s.DownloadDir = d.DownloadDir
	}
	if s.PollInterval <= 0 {
		s.PollInterval = d.PollInterval
	}
	if s.FriendRefreshInterval <= 0 {
		s.FriendRefreshInterval = d.FriendRefreshInterval
	}
}

// realtimeURL is the push endpoint; it defaults to /ws on the server.
func (s *Settings) realtimeURL() string {
	if s.RealtimeURL != "" {
		return s.RealtimeURL
	}
	return s.ServerURL + "/ws"
}

func writeConfig(cfgPath string, prefs *Settings) error {
	out, err := yaml.Marshal(prefs)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(cfgPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(cfgPath, out, 0o644)
}

func (m *Model) savePreferences() error {
	return writeConfig(m.cfgPath, m.prefs)
}

// ListSessions returns the saved session tokens and their handles from the
// store named by the config at cfgPath.
func ListSessions(cfgPath string) (map[string]string, error) {
	prefs, err := readConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
	}
	db, err := storage.OpenPebble(filepath.Join(prefs.DataDir, "store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	logger := slog.New(slog.DiscardHandler)
	shared := storage.NewSafe("persistent", db, logger)
	return session.NewManager(nil, storage.NewMemory(), shared, logger).Sessions(), nil
}
