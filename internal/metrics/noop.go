package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) JobStarted()                                                     {}
func (n *NoopSink) JobCompleted(d time.Duration, scanned, succeeded int, err error) {}
func (n *NoopSink) JobSkipped(reason string)                                        {}
func (n *NoopSink) SessionOutcome(outcome string)                                   {}
func (n *NoopSink) CertificatesIssued(count int)                                    {}
func (n *NoopSink) NotificationOutcome(channel, outcome string)                     {}
