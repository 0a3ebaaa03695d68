package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/pkg/core/autopublish"
)

// JobRunner runs one auto-publish pass
type JobRunner interface {
	Run(ctx context.Context, now time.Time) (*autopublish.JobReport, error)
}

// Scheduler triggers the job on a schedule until its context is cancelled
type Scheduler struct {
	schedule Schedule
	runner   JobRunner
	logger   *zap.Logger
	clock    func() time.Time
}

func New(schedule Schedule, runner JobRunner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		runner:   runner,
		logger:   logger,
		clock:    time.Now,
	}
}

// NextRun returns the next scheduled run after now
func (s *Scheduler) NextRun(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// Describe returns a human readable form of the schedule
func (s *Scheduler) Describe() string {
	return s.schedule.String()
}

// Run blocks, running the job at each scheduled time. It returns nil when the schedule is
// exhausted and ctx.Err() once ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started", zap.String("schedule", s.schedule.String()))

	for {
		next := s.schedule.Next(s.clock())
		if next.IsZero() {
			s.logger.Info("Schedule has no further runs")
			return nil
		}
		s.logger.Debug("Next scheduled run", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		s.runOnce(ctx)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.runner.Run(ctx, s.clock())
	switch {
	case errors.Is(err, autopublish.ErrRunInProgress):
		s.logger.Info("Skipping scheduled run, another run is in progress")
	case err != nil:
		s.logger.Error("Scheduled run failed", zap.Error(err))
	default:
		s.logger.Info("Scheduled run completed",
			zap.String("message", report.Message),
			zap.Int("sessions", report.SessionsScanned),
			zap.Int("succeeded", report.SessionsSucceeded),
			zap.Int("certificates", report.CertificatesCreated))
	}
}
