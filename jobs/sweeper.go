// Package jobs runs periodic maintenance for the live session registry.
package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Sweepable tears down sessions that have been empty past their idle bound.
type Sweepable interface {
	Sweep(now time.Time) int
}

type Sweeper struct {
	target    Sweepable
	interval  time.Duration
	logger    *slog.Logger
	scheduler gocron.Scheduler
	now       func() time.Time
}

func NewSweeper(target Sweepable, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s := &Sweeper{
		target:    target,
		interval:  interval,
		logger:    logger,
		scheduler: sched,
		now:       time.Now,
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.RunOnce() }),
		gocron.WithName("session-idle-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule idle sweep: %w", err)
	}
	return s, nil
}

// RunOnce performs a single sweep and returns how many sessions were retired.
func (s *Sweeper) RunOnce() int {
	n := s.target.Sweep(s.now())
	if n > 0 {
		s.logger.Info("retired idle sessions", slog.Int("count", n))
	}
	return n
}

func (s *Sweeper) Start() {
	s.scheduler.Start()
	s.logger.Info("session sweeper started", slog.Duration("interval", s.interval))
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}
