package autopublish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/internal/metrics"
	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// ErrRunInProgress is returned when another process holds the run lock
var ErrRunInProgress = errors.New("auto-publish run already in progress")

// JobReport summarises one run
type JobReport struct {
	Message             string
	Window              Window
	SessionsScanned     int
	SessionsSucceeded   int
	CertificatesCreated int
	EmailsSent          int
	Duration            time.Duration
	Results             []SessionResult
}

// SessionProcessor processes a single session
type SessionProcessor interface {
	Process(ctx context.Context, s Session) SessionResult
}

// Job drives one auto-publish run: scan, group, then process sessions one at a time.
// Sessions are processed sequentially since two sessions may share a project.
type Job struct {
	scanner           *Scanner
	processor         SessionProcessor
	locker            db.RunLocker
	interSessionDelay time.Duration
	metrics           metrics.Sink
	logger            *zap.Logger
	sleep             func(ctx context.Context, d time.Duration)
}

// NewJob creates a new Job. locker may be nil when only one process can trigger runs.
func NewJob(scanner *Scanner, processor SessionProcessor, locker db.RunLocker, cfg Config, sink metrics.Sink, logger *zap.Logger) *Job {
	return &Job{
		scanner:           scanner,
		processor:         processor,
		locker:            locker,
		interSessionDelay: cfg.InterSessionDelay,
		metrics:           sink,
		logger:            logger,
		sleep:             sleepContext,
	}
}

// Window returns the scan window a run at now would use
func (j *Job) Window(now time.Time) Window {
	return j.scanner.Window(now)
}

// Run executes one auto-publish run as of now.
// Per-session failures are reported in the result list; only a lock or scan failure returns an
// error, in which case no session was processed.
func (j *Job) Run(ctx context.Context, now time.Time) (*JobReport, error) {
	start := time.Now()
	report := &JobReport{Window: j.scanner.Window(now), Results: []SessionResult{}}

	if j.locker != nil {
		unlock, acquired, err := j.locker.TryRunLock(ctx)
		if err != nil {
			report.Message = "Failed to acquire run lock"
			return report, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !acquired {
			j.metrics.JobSkipped(metrics.SkipInProgress)
			report.Message = "Auto-publish already running"
			return report, ErrRunInProgress
		}
		defer unlock()
	}

	j.metrics.JobStarted()
	j.logger.Info("Starting auto-publish run",
		zap.Time("now", now),
		zap.Time("window_from", report.Window.From),
		zap.Time("window_to", report.Window.To))

	// Step 1: Scan
	signups, window, err := j.scanner.Scan(ctx, now)
	if err != nil {
		report.Duration = time.Since(start)
		report.Message = "Scan failed, no sessions processed"
		j.metrics.JobCompleted(report.Duration, 0, 0, err)
		j.logger.Error("Auto-publish scan failed", zap.Error(err))
		return report, err
	}
	report.Window = window

	// Step 2: Group
	sessions := GroupSessions(signups, j.logger)
	report.SessionsScanned = len(sessions)
	j.logger.Info("Found sessions to publish",
		zap.Int("signups", len(signups)),
		zap.Int("sessions", len(sessions)))

	// Step 3: Process sequentially
	for i, s := range sessions {
		result := j.processor.Process(ctx, s)
		report.Results = append(report.Results, result)
		if result.Success {
			report.SessionsSucceeded++
		}
		report.CertificatesCreated += result.CertificatesCreated
		report.EmailsSent += result.EmailsSent

		// Stay under the email provider's rate limit between sessions
		if result.EmailsSent > 0 && i < len(sessions)-1 && j.interSessionDelay > 0 {
			j.sleep(ctx, j.interSessionDelay)
		}
	}

	report.Duration = time.Since(start)
	report.Message = reportMessage(report)
	j.metrics.JobCompleted(report.Duration, report.SessionsScanned, report.SessionsSucceeded, nil)
	j.logger.Info("Auto-publish run completed",
		zap.Int("sessions", report.SessionsScanned),
		zap.Int("succeeded", report.SessionsSucceeded),
		zap.Int("certificates", report.CertificatesCreated),
		zap.Int("emails", report.EmailsSent),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func reportMessage(r *JobReport) string {
	if r.SessionsScanned == 0 {
		return "No sessions to publish"
	}
	return fmt.Sprintf("Published %d of %d sessions (%d certificates)",
		r.SessionsSucceeded, r.SessionsScanned, r.CertificatesCreated)
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
