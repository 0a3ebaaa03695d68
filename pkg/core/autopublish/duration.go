package autopublish

import (
	"math"
	"time"
)

// MaxSessionDuration is the longest check-in to check-out interval accepted as one session
const MaxSessionDuration = 24 * time.Hour

// DurationResult is the outcome of validating a check-in/check-out pair
type DurationResult struct {
	Valid   bool
	Minutes int
}

// ValidateDuration decides whether the interval between check-in and check-out is a plausible
// volunteering session and returns its length in whole minutes.
// A missing instant, a negative interval or one longer than limit is invalid.
// A non-positive limit falls back to MaxSessionDuration.
func ValidateDuration(checkIn, checkOut *time.Time, limit time.Duration) DurationResult {
	if limit <= 0 {
		limit = MaxSessionDuration
	}
	if checkIn == nil || checkOut == nil || checkIn.IsZero() || checkOut.IsZero() {
		return DurationResult{}
	}

	d := checkOut.Sub(*checkIn)
	if d < 0 || d > limit {
		return DurationResult{}
	}

	return DurationResult{Valid: true, Minutes: int(math.Round(d.Minutes()))}
}
