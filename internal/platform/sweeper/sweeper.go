// Package sweeper runs periodic maintenance jobs in the background.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownJob is returned by RunOnce for a name no job carries.
var ErrUnknownJob = errors.New("sweeper: unknown job")

// Job is one periodic task. Run is invoked immediately on Start and then
// every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler owns the goroutines running its jobs. A failing or panicking
// cycle is logged and the job runs again on the next tick.
type Scheduler struct {
	logger zerolog.Logger
	jobs   map[string]Job
	order  []string

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a scheduler for jobs. Jobs with a non-positive interval run
// only on demand through RunOnce.
func New(logger zerolog.Logger, jobs ...Job) *Scheduler {
	s := &Scheduler{
		logger: logger.With().Str("component", "sweeper").Logger(),
		jobs:   make(map[string]Job, len(jobs)),
	}
	for _, j := range jobs {
		if _, dup := s.jobs[j.Name]; !dup {
			s.order = append(s.order, j.Name)
		}
		s.jobs[j.Name] = j
	}
	return s
}

// Start launches one goroutine per periodic job. Calling Start on a running
// scheduler returns an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("sweeper: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = g

	for _, name := range s.order {
		job := s.jobs[name]
		if job.Interval <= 0 {
			continue
		}
		g.Go(func() error {
			s.loop(gctx, job)
			return nil
		})
	}

	s.logger.Info().Strs("jobs", s.order).Msg("sweeper started")
	return nil
}

// Stop cancels all loops and waits for in-flight cycles to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = g.Wait()
	s.logger.Info().Msg("sweeper stopped")
}

// RunOnce runs the named job a single time and returns its error.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	return s.run(ctx, job)
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.order...)
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	_ = s.run(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweeper: job %s panicked: %v", job.Name, r)
		}
		evt := s.logger.Debug()
		if err != nil {
			evt = s.logger.Error().Err(err)
		}
		evt.Str("job", job.Name).Dur("took", time.Since(start)).Msg("sweep cycle")
	}()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return job.Run(ctx)
}
