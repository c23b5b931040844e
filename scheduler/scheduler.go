// Package scheduler wraps gocron for the daemon mode: periodic jobs in
// singleton mode, so a slow sync run is never overlapped by the next tick.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// JobFunc is a schedulable function.
type JobFunc func(ctx context.Context) error

// Scheduler runs periodic jobs.
type Scheduler struct {
	gocron gocron.Scheduler
	log    *logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler.
func New() (*Scheduler, error) {
	lg := newLogger()
	s, err := gocron.NewScheduler(gocron.WithLogger(lg))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{gocron: s, log: lg, ctx: ctx, cancel: cancel}, nil
}

// AddIntervalJob schedules fn to run every interval, starting immediately.
// Jobs run in singleton mode: while a run is still in flight, further ticks
// are rescheduled instead of stacking up.
func (s *Scheduler) AddIntervalJob(name string, interval time.Duration, fn JobFunc) error {
	wrapped := func() {
		s.log.Info("job started", "name", name)
		start := time.Now()
		if err := fn(s.ctx); err != nil {
			s.log.Error("job failed", "name", name, "duration", time.Since(start).Round(time.Second), "error", err)
			return
		}
		s.log.Info("job finished", "name", name, "duration", time.Since(start).Round(time.Second))
	}

	_, err := s.gocron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(wrapped),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}
	return nil
}

// Start starts executing scheduled jobs.
func (s *Scheduler) Start() {
	s.gocron.Start()
}

// Shutdown cancels running jobs and stops the scheduler.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.gocron.Shutdown()
}
