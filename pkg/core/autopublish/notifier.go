package autopublish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/volunteer-hours/internal/metrics"
	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// NotificationTypeCertificate is the in-app notification type for issued certificates
const NotificationTypeCertificate = "certificate_published"

// EmailSender defines the operations needed to send certificate emails
type EmailSender interface {
	SendHTMLEmail(from, to, subject, htmlBody string) error
}

// NotifyResult is the outcome of notifying one volunteer
type NotifyResult struct {
	CertificateID  string
	VolunteerName  string
	InAppAttempted bool
	InAppOK        bool
	EmailAttempted bool
	EmailOK        bool
	Error          string
}

// NotifySummary aggregates the notifications for one session
type NotifySummary struct {
	Results    []NotifyResult
	InAppSent  int
	EmailsSent int
	Errors     []string
}

// Notifier sends in-app notifications and emails for issued certificates
type Notifier struct {
	notifications db.NotificationStore
	email         EmailSender
	renderer      *EmailRenderer
	from          string
	concurrency   int
	metrics       metrics.Sink
	logger        *zap.Logger
	clock         func() time.Time
}

// NewNotifier creates a new Notifier
func NewNotifier(
	notifications db.NotificationStore,
	email EmailSender,
	cfg Config,
	sink metrics.Sink,
	logger *zap.Logger,
) *Notifier {
	concurrency := cfg.NotifyConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Notifier{
		notifications: notifications,
		email:         email,
		renderer:      NewEmailRenderer(cfg.SiteURL, cfg.DefaultLocation),
		from:          cfg.FromAddress,
		concurrency:   concurrency,
		metrics:       sink,
		logger:        logger,
		clock:         time.Now,
	}
}

// NotifyAll notifies every certified volunteer. Each volunteer is handled independently and
// failures are collected, never returned.
func (n *Notifier) NotifyAll(ctx context.Context, certs []db.Certificate) NotifySummary {
	results := make([]NotifyResult, len(certs))

	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for i, cert := range certs {
		i, cert := i, cert
		g.Go(func() error {
			results[i] = n.Notify(ctx, cert)
			return nil
		})
	}
	_ = g.Wait()

	summary := NotifySummary{Results: results}
	for _, r := range results {
		if r.InAppOK {
			summary.InAppSent++
		}
		if r.EmailOK {
			summary.EmailsSent++
		}
		if r.Error != "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", r.VolunteerName, r.Error))
		}
	}
	return summary
}

// Notify writes an in-app notification for registered volunteers and emails volunteers with an
// address. Anonymous volunteers get no in-app notification.
func (n *Notifier) Notify(ctx context.Context, cert db.Certificate) NotifyResult {
	result := NotifyResult{CertificateID: cert.ID, VolunteerName: cert.VolunteerName}
	var errs []string

	if cert.UserID != "" {
		result.InAppAttempted = true
		if err := n.sendInApp(ctx, cert); err != nil {
			n.logger.Warn("Failed to create in-app notification",
				zap.String("certificate_id", cert.ID),
				zap.String("user_id", cert.UserID),
				zap.Error(err))
			n.metrics.NotificationOutcome(metrics.ChannelInApp, metrics.OutcomeFailed)
			errs = append(errs, fmt.Sprintf("in-app notification failed: %v", err))
		} else {
			result.InAppOK = true
			n.metrics.NotificationOutcome(metrics.ChannelInApp, metrics.OutcomeSent)
		}
	} else {
		n.metrics.NotificationOutcome(metrics.ChannelInApp, metrics.OutcomeSkipped)
	}

	if cert.VolunteerEmail != "" {
		result.EmailAttempted = true
		if err := n.sendEmail(cert); err != nil {
			n.logger.Warn("Failed to send certificate email",
				zap.String("certificate_id", cert.ID),
				zap.String("email", cert.VolunteerEmail),
				zap.Error(err))
			n.metrics.NotificationOutcome(metrics.ChannelEmail, metrics.OutcomeFailed)
			errs = append(errs, fmt.Sprintf("email failed: %v", err))
		} else {
			result.EmailOK = true
			n.metrics.NotificationOutcome(metrics.ChannelEmail, metrics.OutcomeSent)
			n.logger.Debug("Certificate email sent",
				zap.String("certificate_id", cert.ID),
				zap.String("email", cert.VolunteerEmail))
		}
	} else {
		n.metrics.NotificationOutcome(metrics.ChannelEmail, metrics.OutcomeSkipped)
	}

	result.Error = strings.Join(errs, "; ")
	return result
}

func (n *Notifier) sendInApp(ctx context.Context, cert db.Certificate) error {
	return n.notifications.InsertNotification(ctx, db.Notification{
		ID:            uuid.New().String(),
		UserID:        cert.UserID,
		Type:          NotificationTypeCertificate,
		Title:         "Certificate Ready",
		Body:          fmt.Sprintf("Your certificate for %s (%s hours) is ready to view.", cert.ProjectTitle, FormatHours(cert.DurationMinutes)),
		CertificateID: cert.ID,
		Data: map[string]string{
			"certificateId": cert.ID,
			"projectId":     cert.ProjectID,
			"url":           n.renderer.CertificateURL(cert.ID),
		},
		CreatedAt: n.clock(),
	})
}

func (n *Notifier) sendEmail(cert db.Certificate) error {
	email, err := n.renderer.Render(cert)
	if err != nil {
		return err
	}
	return n.email.SendHTMLEmail(n.from, cert.VolunteerEmail, email.Subject, email.HTML)
}
