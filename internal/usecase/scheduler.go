package usecase

import (
	"context"
	"log/slog"
	"time"

	"ReviewPulse/internal/ports"
)

// Scheduler wires the recurring driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	daysBack int
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs. daysBack sets
// how far behind the trigger time each run's window reaches.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, daysBack int, logger *slog.Logger) *Scheduler {
	if daysBack <= 0 {
		daysBack = 7
	}
	return &Scheduler{driver: driver, pipeline: pipeline, daysBack: daysBack, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		from := trigger.AddDate(0, 0, -s.daysBack)
		if _, err := s.pipeline.ProcessWindow(ctx, from, trigger); err != nil {
			if s.logger != nil {
				s.logger.Error("scheduled run failed", "error", err)
			}
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
