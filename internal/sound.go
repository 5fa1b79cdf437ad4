package internal

import (
	"log/slog"
	"sync"

	"github.com/glasschat/glasschat-client/internal/playback"
)

// SoundPlayer plays the incoming message chime.
type SoundPlayer struct {
	sink   playback.Sink
	logger *slog.Logger

	mu      sync.Mutex
	enabled bool
	playing bool
}

func NewSoundPlayer(sink playback.Sink, enabled bool, logger *slog.Logger) *SoundPlayer {
	return &SoundPlayer{sink: sink, enabled: enabled, logger: logger}
}

// PlayAsync plays the chime without blocking. A chime requested while one
// is still sounding is skipped.
func (sp *SoundPlayer) PlayAsync() {
	sp.mu.Lock()
	if !sp.enabled || sp.playing {
		sp.mu.Unlock()
		return
	}
	sp.playing = true
	sp.mu.Unlock()

	go func() {
		if err := playback.Chime(sp.sink, sp.finished); err != nil {
			sp.logger.Debug("Chime failed", "err", err)
			sp.finished()
		}
	}()
}

func (sp *SoundPlayer) finished() {
	sp.mu.Lock()
	sp.playing = false
	sp.mu.Unlock()
}

// Playing reports whether a chime is sounding.
func (sp *SoundPlayer) Playing() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.playing
}

// SetEnabled enables or disables sound playback
func (sp *SoundPlayer) SetEnabled(enabled bool) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.enabled = enabled
}
