package internal

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"
)

// heldSink keeps streams until the test plays them out.
type heldSink struct {
	mu      sync.Mutex
	streams []beep.Streamer
}

func (s *heldSink) Play(st beep.Streamer, _ beep.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = append(s.streams, st)
	return nil
}

func (s *heldSink) Lock()   {}
func (s *heldSink) Unlock() {}
func (s *heldSink) Close()  {}

func (s *heldSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// finish plays every held stream to its end.
func (s *heldSink) finish() {
	s.mu.Lock()
	streams := s.streams
	s.mu.Unlock()

	buf := make([][2]float64, 512)
	for _, st := range streams {
		for {
			if _, ok := st.Stream(buf); !ok {
				break
			}
		}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChimesDoNotOverlap(t *testing.T) {
	sink := &heldSink{}
	sp := NewSoundPlayer(sink, true, slog.New(slog.DiscardHandler))

	sp.PlayAsync()
	eventually(t, "first chime", func() bool { return sink.count() == 1 })

	sp.PlayAsync()
	time.Sleep(20 * time.Millisecond)
	if n := sink.count(); n != 1 {
		t.Fatalf("chime started while another was sounding: %d streams", n)
	}
	if !sp.Playing() {
		t.Fatalf("chime reported finished before its tone ended")
	}

	sink.finish()
	eventually(t, "chime end", func() bool { return !sp.Playing() })

	sp.PlayAsync()
	eventually(t, "second chime", func() bool { return sink.count() == 2 })
}

func TestDisabledSoundsStaySilent(t *testing.T) {
	sink := &heldSink{}
	sp := NewSoundPlayer(sink, false, slog.New(slog.DiscardHandler))
	sp.PlayAsync()
	time.Sleep(20 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatalf("disabled player made a sound")
	}
}
