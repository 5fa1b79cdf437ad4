package playback

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
)

// Chime plays a short tone on sink for an incoming message. done runs on
// the audio goroutine once the tone has finished; it must not block.
func Chime(sink Sink, done func()) error {
	tone, err := generators.SineTone(outputRate, 880)
	if err != nil {
		return fmt.Errorf("chime: %w", err)
	}
	quiet := &effects.Volume{Streamer: beep.Take(outputRate.N(120*time.Millisecond), tone), Base: 2, Volume: -3}
	return sink.Play(beep.Seq(quiet, beep.Callback(done)), beep.Format{SampleRate: outputRate, NumChannels: 2, Precision: 2})
}
