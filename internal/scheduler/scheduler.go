package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// JobFunc runs one pipeline pass. tick is the scheduled slot it belongs to.
type JobFunc func(ctx context.Context, tick time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval      time.Duration
	AlignToBucket bool
	StartupDelay  time.Duration
	RunOnStart    bool
}

// Scheduler invokes a job repeatedly on a fixed interval. A job never overlaps
// the previous one: the next slot is computed after the job returns.
type Scheduler struct {
	opts   Options
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs a Scheduler.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Run blocks until ctx is cancelled. Job failures are logged and the loop
// continues with the next slot.
func (s *Scheduler) Run(ctx context.Context, job JobFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.RunOnStart {
		s.execute(ctx, job, s.now())
	}

	for {
		next := s.nextTick(s.now())
		s.logger.Debug().Time("next_run", next).Msg("waiting for next run")
		if err := sleep(ctx, time.Until(next)); err != nil {
			return err
		}
		s.execute(ctx, job, next)
	}
}

func (s *Scheduler) execute(ctx context.Context, job JobFunc, tick time.Time) {
	started := time.Now()
	if err := job(ctx, tick); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error().Err(err).Time("tick", tick).Msg("scheduled run failed")
		return
	}
	s.logger.Debug().Time("tick", tick).Dur("took", time.Since(started)).Msg("scheduled run finished")
}

// nextTick returns the next slot strictly after now.
func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToBucket {
		return now.Add(s.opts.Interval)
	}
	slot := now.Truncate(s.opts.Interval)
	if !slot.After(now) {
		slot = slot.Add(s.opts.Interval)
	}
	return slot
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
