package playback

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
)

const clockStep = 100 * time.Millisecond

// clockSink drains streamers at their sample rate and discards the samples.
type clockSink struct {
	mu      sync.Mutex
	streams []beep.Streamer
	buf     [][2]float64
	stop    chan struct{}
	once    sync.Once
}

func newClockSink() *clockSink {
	c := &clockSink{
		buf:  make([][2]float64, outputRate.N(clockStep)),
		stop: make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *clockSink) Play(s beep.Streamer, f beep.Format) error {
	if f.SampleRate != outputRate {
		s = beep.Resample(4, f.SampleRate, outputRate, s)
	}
	c.mu.Lock()
	c.streams = append(c.streams, s)
	c.mu.Unlock()
	return nil
}

func (c *clockSink) Lock()   { c.mu.Lock() }
func (c *clockSink) Unlock() { c.mu.Unlock() }

func (c *clockSink) Close() {
	c.once.Do(func() { close(c.stop) })
	c.mu.Lock()
	c.streams = nil
	c.mu.Unlock()
}

func (c *clockSink) loop() {
	ticker := time.NewTicker(clockStep)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.drain()
		}
	}
}

func (c *clockSink) drain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	live := c.streams[:0]
	for _, s := range c.streams {
		if _, ok := s.Stream(c.buf); ok {
			live = append(live, s)
		}
	}
	c.streams = live
}
