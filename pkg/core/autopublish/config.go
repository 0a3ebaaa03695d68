package autopublish

import "time"

// Config holds auto-publish job settings.
type Config struct {
	// MinAge is how long after check-out a signup becomes eligible.
	// Gives organizers time to correct attendance. Default: 48h.
	MinAge time.Duration

	// MaxAge is the oldest check-out considered in a run. Default: 72h.
	MaxAge time.Duration

	// MaxSessionDuration is the longest accepted check-in to check-out interval. Default: 24h.
	MaxSessionDuration time.Duration

	// NotifyConcurrency bounds the notification fan-out within a session. Default: 4.
	NotifyConcurrency int

	// InterSessionDelay is slept after a session that sent email. Default: 1s.
	InterSessionDelay time.Duration

	// SiteURL is the base URL used for certificate links.
	SiteURL string

	// FromAddress is the sender of certificate emails.
	FromAddress string

	// DefaultLocation formats event times for projects without a time zone. Default: UTC.
	DefaultLocation *time.Location
}

// DefaultConfig returns the default auto-publish configuration.
func DefaultConfig() Config {
	return Config{
		MinAge:             48 * time.Hour,
		MaxAge:             72 * time.Hour,
		MaxSessionDuration: MaxSessionDuration,
		NotifyConcurrency:  4,
		InterSessionDelay:  time.Second,
		DefaultLocation:    time.UTC,
	}
}
