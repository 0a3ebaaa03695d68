package autopublish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/internal/metrics"
	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// ErrNoValidHours is reported when none of a session's signups has a plausible duration
var ErrNoValidHours = errors.New("no valid hours to publish")

// SessionResult is the outcome of processing one session
type SessionResult struct {
	Success             bool
	ProjectID           string
	SessionID           string
	SessionName         string
	CertificatesCreated int
	NotificationsSent   int
	EmailsSent          int
	Errors              []string
}

// CertificateNotifier defines the notification fan-out used after certificates are stored
type CertificateNotifier interface {
	NotifyAll(ctx context.Context, certs []db.Certificate) NotifySummary
}

// Processor turns one session into certificates
type Processor struct {
	store       db.PublishStore
	notifier    CertificateNotifier
	maxDuration time.Duration
	metrics     metrics.Sink
	logger      *zap.Logger
	clock       func() time.Time
	newID       func() string
}

// NewProcessor creates a new Processor
func NewProcessor(store db.PublishStore, notifier CertificateNotifier, cfg Config, sink metrics.Sink, logger *zap.Logger) *Processor {
	return &Processor{
		store:       store,
		notifier:    notifier,
		maxDuration: cfg.MaxSessionDuration,
		metrics:     sink,
		logger:      logger,
		clock:       time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// Process validates a session's signups, stores one certificate per valid signup together with
// the published flag, then notifies the volunteers.
// The published flag is only ever written in the same transaction as the certificates.
func (p *Processor) Process(ctx context.Context, s Session) SessionResult {
	result := SessionResult{
		ProjectID:   s.Key.ProjectID,
		SessionID:   s.Key.ScheduleID,
		SessionName: s.Name,
	}
	log := p.logger.With(
		zap.String("project_id", s.Key.ProjectID),
		zap.String("schedule_id", s.Key.ScheduleID))

	// Step 1: Validate durations
	issuedAt := p.clock().UTC()
	var certs []db.Certificate
	for _, es := range s.Signups {
		d := ValidateDuration(es.Signup.CheckInTime, es.Signup.CheckOutTime, p.maxDuration)
		if !d.Valid {
			log.Warn("Skipping signup with invalid duration",
				zap.String("signup_id", es.Signup.ID),
				zap.Timep("check_in", es.Signup.CheckInTime),
				zap.Timep("check_out", es.Signup.CheckOutTime))
			continue
		}
		certs = append(certs, buildCertificate(es, d.Minutes, p.newID(), issuedAt))
	}

	// Step 2: Nothing to publish, leave the session eligible for the next run
	if len(certs) == 0 {
		log.Info("No valid hours to publish", zap.Int("signups", len(s.Signups)))
		p.metrics.SessionOutcome(metrics.SessionNoValidHours)
		result.Errors = append(result.Errors, ErrNoValidHours.Error())
		if err := p.store.RecordPublishFailure(ctx, s.Key.ProjectID, s.Key.ScheduleID, ErrNoValidHours.Error(), issuedAt); err != nil {
			log.Warn("Failed to record publish failure", zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
		}
		return result
	}

	// Step 3: Store certificates and mark the slot published atomically
	ids, err := p.store.PublishSession(ctx, db.PublishRequest{
		ProjectID:    s.Key.ProjectID,
		ScheduleID:   s.Key.ScheduleID,
		Certificates: certs,
	})
	if err != nil {
		if errors.Is(err, db.ErrSessionAlreadyPublished) {
			log.Info("Session was published by another run")
			p.metrics.SessionOutcome(metrics.SessionAlreadyDone)
		} else {
			log.Error("Failed to publish session", zap.Error(err))
			p.metrics.SessionOutcome(metrics.SessionPersistFailed)
		}
		result.Errors = append(result.Errors, fmt.Sprintf("failed to publish certificates: %v", err))
		return result
	}
	for i := range certs {
		if i < len(ids) && ids[i] != "" {
			certs[i].ID = ids[i]
		}
	}

	result.Success = true
	result.CertificatesCreated = len(certs)
	p.metrics.SessionOutcome(metrics.SessionPublished)
	p.metrics.CertificatesIssued(len(certs))
	log.Info("Published session",
		zap.String("session_name", s.Name),
		zap.Int("certificates", len(certs)),
		zap.Int("skipped_signups", len(s.Signups)-len(certs)))

	// Step 4: Notify volunteers, best effort
	summary := p.notifier.NotifyAll(ctx, certs)
	result.NotificationsSent = summary.InAppSent
	result.EmailsSent = summary.EmailsSent
	result.Errors = append(result.Errors, summary.Errors...)

	return result
}

// buildCertificate snapshots the volunteer and project so later profile edits leave the
// certificate unchanged
func buildCertificate(es db.EligibleSignup, minutes int, id string, issuedAt time.Time) db.Certificate {
	return db.Certificate{
		ID:                      id,
		ProjectID:               es.Signup.ProjectID,
		SignupID:                es.Signup.ID,
		ScheduleID:              es.Signup.ScheduleID,
		UserID:                  es.Volunteer.UserID,
		VolunteerName:           es.Volunteer.Name,
		VolunteerEmail:          es.Volunteer.Email,
		ProjectTitle:            es.Project.Title,
		ProjectLocation:         es.Project.Location,
		OrganizationName:        es.Project.OrganizationName,
		CreatorName:             es.Project.CreatorName,
		IsCertifiedOrganization: es.Project.OrganizationID != "" && es.Project.OrganizationVerified,
		EventStart:              es.Signup.CheckInTime.UTC(),
		EventEnd:                es.Signup.CheckOutTime.UTC(),
		DurationMinutes:         minutes,
		CheckInMethod:           es.Project.CheckInMethod,
		TimeZone:                es.Project.TimeZone,
		IssuedAt:                issuedAt,
	}
}
