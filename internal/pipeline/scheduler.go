package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sutakip/sutakip/internal/domain"
	"github.com/sutakip/sutakip/internal/observability"
)

// RefreshRunner runs a refresh cycle.
type RefreshRunner interface {
	Refresh(ctx context.Context) ([]domain.Record, error)
}

// Scheduler triggers a refresh immediately and then on every interval.
type Scheduler struct {
	refresher RefreshRunner
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewScheduler creates a Scheduler. A nil clock uses real time.
func NewScheduler(r RefreshRunner, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		refresher: r,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run blocks until ctx is cancelled. The first refresh runs before the ticker
// starts. A failed or panicking run is logged and the loop carries on; ticks
// that elapse while a run is in progress are dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	s.runOnce(ctx)
	lastDone := s.clock.Now()

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case tick := <-ticker.Chan():
			if tick.Before(lastDone) {
				s.logger.Debug("dropping tick that fired during a refresh", "tick", tick)
				continue
			}
			s.runOnce(ctx)
			lastDone = s.clock.Now()
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("scheduled refresh panicked", "panic", p)
		}
	}()

	records, err := s.refresher.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled refresh failed", "error", err)
		return
	}
	s.logger.Debug("scheduled refresh done", "records", len(records))
}
