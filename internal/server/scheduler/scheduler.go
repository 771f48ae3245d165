// Package scheduler is the periodic trigger of the service. Each job runs
// once at start and then on every tick of its interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/logging"
)

var (
	ErrJobExists   = errors.New("job already registered")
	ErrJobNotFound = errors.New("job not found")
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// Func adapts fn to a Job.
func Func(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

type entry struct {
	job      Job
	interval time.Duration
}

type Scheduler struct {
	logger logging.Logger

	mu   sync.RWMutex
	jobs map[string]entry
	// registration order, for deterministic startup
	order []string
}

func New(logger logging.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With("module", "scheduler"),
		jobs:   make(map[string]entry),
	}
}

// Register adds job with its interval. A non-positive interval registers the
// job for RunNow only.
func (s *Scheduler) Register(job Job, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}
	s.jobs[name] = entry{job: job, interval: interval}
	s.order = append(s.order, name)
	return nil
}

// Run starts every periodic job and blocks until ctx is cancelled and the
// running jobs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.RLock()
	var entries []entry
	for _, name := range s.order {
		if e := s.jobs[name]; e.interval > 0 {
			entries = append(entries, e)
		}
	}
	s.mu.RUnlock()

	s.logger.Info(ctx, "scheduler started", "jobs", len(entries))

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()

	s.logger.Info(ctx, "scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		_ = s.execute(ctx, e.job)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunNow executes the named job immediately, regardless of its schedule.
// It may overlap a scheduled run of the same job.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, e.job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		s.logger.Error(ctx, "job failed", "job", job.Name(), "duration", time.Since(start).String(), "error", err)
		return err
	}
	s.logger.Debug(ctx, "job completed", "job", job.Name(), "duration", time.Since(start).String())
	return nil
}
