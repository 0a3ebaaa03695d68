package autopublish

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/pkg/core/model"
	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// Window is the closed range of check-out instants scanned in one run
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window, bounds included
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// ScanWindow returns [now-maxAge, now-minAge]
func ScanWindow(now time.Time, minAge, maxAge time.Duration) Window {
	return Window{
		From: now.Add(-maxAge),
		To:   now.Add(-minAge),
	}
}

// Scanner finds signups that completed attendance inside the scan window
type Scanner struct {
	store  db.SignupStore
	minAge time.Duration
	maxAge time.Duration
	logger *zap.Logger
}

// NewScanner creates a new Scanner
func NewScanner(store db.SignupStore, cfg Config, logger *zap.Logger) *Scanner {
	return &Scanner{
		store:  store,
		minAge: cfg.MinAge,
		maxAge: cfg.MaxAge,
		logger: logger,
	}
}

// Window returns the scan window for the given instant
func (s *Scanner) Window(now time.Time) Window {
	return ScanWindow(now, s.minAge, s.maxAge)
}

// Scan returns the eligible signups checked out inside the window ending minAge before now.
// A store error is returned as-is so the caller can abort the run.
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]db.EligibleSignup, Window, error) {
	window := s.Window(now)
	s.logger.Debug("Scanning signups",
		zap.Time("from", window.From),
		zap.Time("to", window.To))

	rows, err := s.store.GetSignupsCheckedOutBetween(ctx, window.From, window.To, model.AttendanceStatuses())
	if err != nil {
		return nil, window, fmt.Errorf("failed to scan signups: %w", err)
	}

	eligible := make([]db.EligibleSignup, 0, len(rows))
	for _, row := range rows {
		if !isEligible(row.Signup, window) {
			s.logger.Debug("Ignoring ineligible signup returned by store",
				zap.String("signup_id", row.Signup.ID),
				zap.String("status", string(row.Signup.Status)))
			continue
		}
		eligible = append(eligible, row)
	}

	s.logger.Debug("Found eligible signups", zap.Int("count", len(eligible)))
	return eligible, window, nil
}

// isEligible checks a signup has both instants, an attendance status and a check-out in the window
func isEligible(s db.Signup, w Window) bool {
	if s.CheckInTime == nil || s.CheckOutTime == nil {
		return false
	}
	if !s.Status.CountsAsAttendance() {
		return false
	}
	return w.Contains(*s.CheckOutTime)
}
