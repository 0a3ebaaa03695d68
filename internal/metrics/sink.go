package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations must not block or propagate errors.
type Sink interface {
	// Job metrics
	JobStarted()
	JobCompleted(duration time.Duration, sessionsScanned, sessionsSucceeded int, err error)
	JobSkipped(reason string)

	// Session metrics
	SessionOutcome(outcome string)
	CertificatesIssued(count int)

	// Notification metrics
	NotificationOutcome(channel, outcome string)
}

// Session outcome constants for SessionOutcome.
const (
	SessionPublished     = "published"
	SessionNoValidHours  = "no_valid_hours"
	SessionPersistFailed = "persist_failed"
	SessionAlreadyDone   = "already_published"
)

// Channel and outcome constants for NotificationOutcome.
const (
	ChannelEmail = "email"
	ChannelInApp = "in_app"

	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Skip reasons for JobSkipped.
const (
	SkipDisabled   = "disabled"
	SkipInProgress = "in_progress"
)
