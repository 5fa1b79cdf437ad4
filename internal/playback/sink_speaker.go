//go:build !linux

package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

type speakerSink struct {
	once sync.Once
	err  error
}

// NewSink returns a sink that plays through the default audio device.
func NewSink() Sink {
	return &speakerSink{}
}

func (s *speakerSink) init() error {
	s.once.Do(func() {
		if err := speaker.Init(outputRate, outputRate.N(time.Second/10)); err != nil {
			s.err = fmt.Errorf("failed to initialize speaker: %w", err)
		}
	})
	return s.err
}

func (s *speakerSink) Play(st beep.Streamer, f beep.Format) error {
	if err := s.init(); err != nil {
		return err
	}
	if f.SampleRate != outputRate {
		st = beep.Resample(4, f.SampleRate, outputRate, st)
	}
	speaker.Play(st)
	return nil
}

func (s *speakerSink) Lock() {
	if s.init() == nil {
		speaker.Lock()
	}
}

func (s *speakerSink) Unlock() {
	if s.init() == nil {
		speaker.Unlock()
	}
}

func (s *speakerSink) Close() {
	if s.init() == nil {
		speaker.Clear()
	}
}
