// Package schedule runs the client's periodic jobs from one goroutine so
// request fan-out stays bounded: every job has a nominal interval, optional
// jitter, and capped exponential backoff after consecutive failures.
package schedule

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Func is the work of a job. A non-nil error counts as a failure for
// backoff purposes.
type Func func(ctx context.Context) error

// Job describes a periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	// Jitter is the maximum random offset added to each delay.
	Jitter time.Duration
	// MaxBackoff caps the delay after consecutive failures. Zero disables
	// backoff.
	MaxBackoff time.Duration
	// Immediate runs the job as soon as it is added.
	Immediate bool
	Run       Func
}

type job struct {
	Job
	next     time.Time
	failures int
	running  bool
	// pending records a trigger that arrived while the job was running.
	pending bool
}

// Scheduler owns a set of jobs.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	wake   chan struct{}
	logger *slog.Logger
	now    func() time.Time
	rand   func(n int64) int64
	wg     sync.WaitGroup
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*job),
		wake:   make(chan struct{}, 1),
		logger: logger,
		now:    time.Now,
		rand:   rand.Int64N,
	}
}

// Add registers j, replacing any job with the same name.
func (s *Scheduler) Add(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.now().Add(s.delay(j, 0))
	if j.Immediate {
		next = s.now()
	}
	s.jobs[j.Name] = &job{Job: j, next: next}
	s.signal()
}

// Remove drops the named job. A run already in flight completes.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, name)
	s.signal()
}

// Trigger runs the named job now. A trigger that lands while the job is
// running schedules exactly one more run right after it.
func (s *Scheduler) Trigger(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return
	}
	if j.running {
		j.pending = true
		return
	}
	j.next = s.now()
	s.signal()
}

// Failures returns the consecutive failure count of the named job.
func (s *Scheduler) Failures(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		return j.failures
	}
	return 0
}

// Run drives the jobs until ctx is done, then waits for in-flight runs.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	defer s.wg.Wait()

	for {
		wait := s.dispatch(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// dispatch starts every due job and returns the time until the next one.
func (s *Scheduler) dispatch(ctx context.Context) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	wait := time.Hour
	for _, j := range s.jobs {
		if j.running {
			continue
		}
		if !j.next.After(now) {
			j.running = true
			s.wg.Add(1)
			go s.execute(ctx, j)
			continue
		}
		if d := j.next.Sub(now); d < wait {
			wait = d
		}
	}
	return wait
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	defer s.wg.Done()

	err := j.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	j.running = false
	if err != nil && ctx.Err() == nil {
		j.failures++
		s.logger.Debug("Scheduled job failed", "job", j.Name, "failures", j.failures, "err", err)
	} else if err == nil {
		j.failures = 0
	}

	if j.pending {
		j.pending = false
		j.next = s.now()
	} else {
		j.next = s.now().Add(s.delay(j.Job, j.failures))
	}
	s.signal()
}

// delay is the wait before the next run after failures consecutive
// failures: Interval doubled per failure, capped at MaxBackoff, plus jitter.
func (s *Scheduler) delay(j Job, failures int) time.Duration {
	d := Backoff(j.Interval, j.MaxBackoff, failures)
	if j.Jitter > 0 {
		d += time.Duration(s.rand(int64(j.Jitter)))
	}
	return d
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Backoff returns base doubled once per failure, capped at max. A zero max
// disables growth.
func Backoff(base, max time.Duration, failures int) time.Duration {
	if max <= 0 || failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}
