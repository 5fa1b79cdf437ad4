// Package playback plays music attachments. At most one track plays at a
// time: starting a track tears down whatever was playing and reports the
// old control as stopped.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep"

	"github.com/glasschat/glasschat-client/internal/api"
)

// maxTrackBytes bounds how much of a stream is buffered.
const maxTrackBytes = 64 << 20

// ProgressInterval is how often progress is reported while playing.
const ProgressInterval = time.Second

// State is the state of a playback control.
type State int

const (
	Stopped State = iota
	Loading
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Event reports the state of one control.
type Event struct {
	Control  string
	Track    api.Track
	State    State
	Position time.Duration
	Length   time.Duration
	Err      error
}

// Fraction is the played share of the track, from 0 to 1.
func (e Event) Fraction() float64 {
	if e.Length <= 0 {
		return 0
	}
	f := float64(e.Position) / float64(e.Length)
	if f > 1 {
		return 1
	}
	return f
}

// ErrIdle is returned by controls that need an active track.
var ErrIdle = errors.New("nothing is playing")

// Source resolves and opens track audio.
type Source interface {
	MusicURL(ctx context.Context, id api.ID) (string, error)
	Stream(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Option configures a Player.
type Option func(*Player)

// WithDecoder replaces the mp3 decoder.
func WithDecoder(d Decoder) Option {
	return func(p *Player) { p.decode = d }
}

// WithProgressInterval changes how often progress events are sent.
func WithProgressInterval(d time.Duration) Option {
	return func(p *Player) { p.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) { p.logger = l }
}

type active struct {
	id       uint64
	control  string
	track    api.Track
	state    State
	cancel   context.CancelFunc
	stream   beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	stopTick chan struct{}
}

// Player owns the single active playback.
type Player struct {
	src      Source
	sink     Sink
	decode   Decoder
	interval time.Duration
	logger   *slog.Logger
	events   chan Event

	mu  sync.Mutex
	cur *active
	seq uint64
}

func NewPlayer(src Source, sink Sink, opts ...Option) *Player {
	p := &Player{
		src:      src,
		sink:     sink,
		decode:   DecodeMP3,
		interval: ProgressInterval,
		logger:   slog.Default(),
		events:   make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Events delivers state changes and progress.
func (p *Player) Events() <-chan Event {
	return p.events
}

// Play starts track on control, stopping any other playback first. It
// blocks while the track loads.
func (p *Player) Play(ctx context.Context, control string, track api.Track) error {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.teardownLocked()
	p.seq++
	cur := &active{id: p.seq, control: control, track: track, state: Loading, cancel: cancel}
	p.cur = cur
	p.mu.Unlock()
	p.emit(Event{Control: control, Track: track, State: Loading})

	stream, format, err := p.load(ctx, track)
	if err != nil {
		// A cancelled load was superseded or stopped; its owner reports state.
		superseded := ctx.Err() != nil
		cancel()
		p.mu.Lock()
		if p.cur == cur {
			p.cur = nil
		}
		p.mu.Unlock()
		if !superseded {
			p.logger.Warn("Playing track failed", "track", track.Name, "err", err)
			p.emit(Event{Control: control, Track: track, State: Stopped, Err: err})
		}
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != cur {
		// Superseded while loading.
		_ = stream.Close()
		return context.Canceled
	}

	cur.stream = stream
	cur.format = format
	id := cur.id
	cur.ctrl = &beep.Ctrl{Streamer: beep.Seq(stream, beep.Callback(func() {
		go p.finished(id)
	}))}
	if err := p.sink.Play(cur.ctrl, format); err != nil {
		p.cur = nil
		_ = stream.Close()
		cancel()
		p.emit(Event{Control: control, Track: track, State: Stopped, Err: err})
		return err
	}
	cur.state = Playing
	cur.stopTick = make(chan struct{})
	go p.progress(cur, cur.stopTick)

	p.emit(p.statusLocked())
	p.logger.Info("Playing track", "track", track.Name, "length", format.SampleRate.D(stream.Len()))
	return nil
}

func (p *Player) load(ctx context.Context, track api.Track) (beep.StreamSeekCloser, beep.Format, error) {
	u, err := p.src.MusicURL(ctx, track.ID)
	if err != nil {
		return nil, beep.Format{}, err
	}
	rc, err := p.src.Stream(ctx, u)
	if err != nil {
		return nil, beep.Format{}, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxTrackBytes))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("read track: %w", err)
	}
	if ctx.Err() != nil {
		return nil, beep.Format{}, ctx.Err()
	}
	return p.decode(data)
}

// Toggle pauses or resumes the active track.
func (p *Player) Toggle() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.cur
	if cur == nil || cur.ctrl == nil {
		return Stopped, ErrIdle
	}

	p.sink.Lock()
	cur.ctrl.Paused = !cur.ctrl.Paused
	paused := cur.ctrl.Paused
	p.sink.Unlock()

	if paused {
		cur.state = Paused
	} else {
		cur.state = Playing
	}
	p.emit(p.statusLocked())
	return cur.state, nil
}

// Stop ends playback.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked()
}

// SeekFraction moves the active track to fraction f of its length.
func (p *Player) SeekFraction(f float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.cur
	if cur == nil || cur.stream == nil {
		return ErrIdle
	}
	f = clamp(f)

	p.sink.Lock()
	n := cur.stream.Len()
	pos := int(f * float64(n))
	if pos >= n {
		pos = n - 1
	}
	if pos < 0 {
		pos = 0
	}
	err := cur.stream.Seek(pos)
	p.sink.Unlock()
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	p.emit(p.statusLocked())
	return nil
}

// Status returns the state of the active control; a zero Event when idle.
func (p *Player) Status() Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

// Close stops playback and releases the sink.
func (p *Player) Close() {
	p.Stop()
	p.sink.Close()
}

func (p *Player) statusLocked() Event {
	cur := p.cur
	if cur == nil {
		return Event{}
	}
	ev := Event{Control: cur.control, Track: cur.track, State: cur.state}
	if cur.stream != nil {
		p.sink.Lock()
		ev.Position = cur.format.SampleRate.D(cur.stream.Position())
		ev.Length = cur.format.SampleRate.D(cur.stream.Len())
		p.sink.Unlock()
	}
	return ev
}

// teardownLocked stops the active playback and reports its control as
// stopped.
func (p *Player) teardownLocked() {
	cur := p.cur
	if cur == nil {
		return
	}
	p.cur = nil
	cur.cancel()
	if cur.stopTick != nil {
		close(cur.stopTick)
	}
	if cur.ctrl != nil {
		p.sink.Lock()
		cur.ctrl.Paused = true
		cur.ctrl.Streamer = nil
		p.sink.Unlock()
	}
	if cur.stream != nil {
		_ = cur.stream.Close()
	}
	p.emit(Event{Control: cur.control, Track: cur.track, State: Stopped})
}

// finished runs when the active stream reaches its end.
func (p *Player) finished(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil || p.cur.id != id {
		return
	}
	p.teardownLocked()
}

func (p *Player) progress(cur *active, stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.cur == cur && cur.state == Playing {
				p.emit(p.statusLocked())
			}
			p.mu.Unlock()
		}
	}
}

func (p *Player) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.logger.Debug("Dropping playback event", "control", ev.Control, "state", ev.State)
	}
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
