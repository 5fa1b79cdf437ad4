package playback

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/glasschat/glasschat-client/internal/api"
)

const testRate = beep.SampleRate(1000)

type fakeStream struct {
	mu     sync.Mutex
	pos    int
	length int
	closed bool
}

func (s *fakeStream) Stream(samples [][2]float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= s.length {
		return 0, false
	}
	n := len(samples)
	if s.pos+n > s.length {
		n = s.length - s.pos
	}
	s.pos += n
	return n, true
}

func (s *fakeStream) Err() error { return nil }
func (s *fakeStream) Len() int   { return s.length }

func (s *fakeStream) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *fakeStream) Seek(p int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = p
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	playing []beep.Streamer
}

func (s *fakeSink) Play(st beep.Streamer, _ beep.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = append(s.playing, st)
	return nil
}

func (s *fakeSink) Lock()   { s.mu.Lock() }
func (s *fakeSink) Unlock() { s.mu.Unlock() }
func (s *fakeSink) Close()  {}

// pump pulls n samples from the newest streamer as the device would.
func (s *fakeSink) pump(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.playing[len(s.playing)-1]
	buf := make([][2]float64, n)
	st.Stream(buf)
}

type fakeSource struct {
	mu      sync.Mutex
	urlErr  error
	block   map[api.ID]bool
	streams map[api.ID]*fakeStream
}

func (f *fakeSource) MusicURL(ctx context.Context, id api.ID) (string, error) {
	f.mu.Lock()
	block := f.block[id]
	err := f.urlErr
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return "/media/" + string(id), nil
}

func (f *fakeSource) Stream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(strings.TrimPrefix(rawURL, "/media/"))), nil
}

// decoder hands out the fake stream registered for the track id that the
// fake source wrote as the body.
func (f *fakeSource) decoder(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streams[api.ID(data)]
	if !ok {
		return nil, beep.Format{}, errors.New("unknown track")
	}
	return s, beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}, nil
}

func newTestPlayer(t *testing.T, src *fakeSource, sink *fakeSink) *Player {
	t.Helper()
	p := NewPlayer(src, sink, WithDecoder(src.decoder), WithProgressInterval(10*time.Millisecond))
	t.Cleanup(p.Stop)
	return p
}

func waitFor(t *testing.T, p *Player, control string, state State) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-p.Events():
			if ev.Control == control && ev.State == state {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %v event for %q", state, control)
		}
	}
}

func waitForPosition(t *testing.T, p *Player, pos time.Duration) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-p.Events():
			if ev.State == Playing && ev.Position == pos {
				return
			}
		case <-deadline:
			t.Fatalf("no progress at %v reported", pos)
		}
	}
}

func track(id string) api.Track {
	return api.Track{ID: api.ID(id), Name: "Song " + id}
}

func TestPlayIsSingleFlight(t *testing.T) {
	a, b := &fakeStream{length: 5000}, &fakeStream{length: 5000}
	src := &fakeSource{streams: map[api.ID]*fakeStream{"1": a, "2": b}}
	sink := &fakeSink{}
	p := newTestPlayer(t, src, sink)

	if err := p.Play(context.Background(), "card-a", track("1")); err != nil {
		t.Fatalf("play a: %v", err)
	}
	waitFor(t, p, "card-a", Playing)

	if err := p.Play(context.Background(), "card-b", track("2")); err != nil {
		t.Fatalf("play b: %v", err)
	}
	waitFor(t, p, "card-a", Stopped)

	if st := p.Status(); st.Control != "card-b" || st.State != Playing {
		t.Fatalf("unexpected status %+v", st)
	}
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if !closed {
		t.Fatalf("previous stream not closed")
	}
}

func TestToggleAndSeek(t *testing.T) {
	s := &fakeStream{length: 4000}
	src := &fakeSource{streams: map[api.ID]*fakeStream{"1": s}}
	p := newTestPlayer(t, src, &fakeSink{})

	if _, err := p.Toggle(); !errors.Is(err, ErrIdle) {
		t.Fatalf("expected idle error, got %v", err)
	}
	if err := p.Play(context.Background(), "c", track("1")); err != nil {
		t.Fatalf("play: %v", err)
	}

	state, err := p.Toggle()
	if err != nil || state != Paused {
		t.Fatalf("expected paused, got %v %v", state, err)
	}
	state, _ = p.Toggle()
	if state != Playing {
		t.Fatalf("expected playing, got %v", state)
	}

	if err := p.SeekFraction(0.5); err != nil {
		t.Fatalf("seek: %v", err)
	}
	st := p.Status()
	if st.Position != 2*time.Second || st.Length != 4*time.Second {
		t.Fatalf("unexpected position %v/%v", st.Position, st.Length)
	}
	if f := st.Fraction(); f != 0.5 {
		t.Fatalf("unexpected fraction %v", f)
	}

	if err := p.SeekFraction(7); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if st := p.Status(); st.Position >= st.Length {
		t.Fatalf("seek past the end: %v", st.Position)
	}
}

func TestProgressAndEndOfTrack(t *testing.T) {
	s := &fakeStream{length: 1500}
	src := &fakeSource{streams: map[api.ID]*fakeStream{"1": s}}
	sink := &fakeSink{}
	p := newTestPlayer(t, src, sink)

	if err := p.Play(context.Background(), "c", track("1")); err != nil {
		t.Fatalf("play: %v", err)
	}
	sink.pump(1000)
	waitForPosition(t, p, time.Second)

	sink.pump(1000)
	sink.pump(1)
	waitFor(t, p, "c", Stopped)
	if st := p.Status(); st.State != Stopped || st.Control != "" {
		t.Fatalf("expected idle player, got %+v", st)
	}
}

func TestPlayFailureReportsStopped(t *testing.T) {
	src := &fakeSource{urlErr: api.ConflictError("music url", "track is not playable")}
	p := newTestPlayer(t, src, &fakeSink{})

	err := p.Play(context.Background(), "c", track("1"))
	if !errors.Is(err, api.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	ev := waitFor(t, p, "c", Stopped)
	if ev.Err == nil {
		t.Fatalf("expected error on stopped event")
	}
}

func TestPlaySupersedesLoadingTrack(t *testing.T) {
	b := &fakeStream{length: 1000}
	src := &fakeSource{
		block:   map[api.ID]bool{"1": true},
		streams: map[api.ID]*fakeStream{"2": b},
	}
	p := newTestPlayer(t, src, &fakeSink{})

	done := make(chan error, 1)
	go func() { done <- p.Play(context.Background(), "a", track("1")) }()
	waitFor(t, p, "a", Loading)

	if err := p.Play(context.Background(), "b", track("2")); err != nil {
		t.Fatalf("play b: %v", err)
	}
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected superseded play to fail")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("loading play was not cancelled")
	}
	if st := p.Status(); st.Control != "b" {
		t.Fatalf("unexpected active control %q", st.Control)
	}
}
