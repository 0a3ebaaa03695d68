package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Job metrics
	runsTotal         prometheus.Counter
	runErrorsTotal    prometheus.Counter
	runsSkippedTotal  *prometheus.CounterVec
	runDuration       prometheus.Histogram
	sessionsScanned   prometheus.Counter
	sessionsSucceeded prometheus.Counter
	lastRunTimestamp  prometheus.Gauge

	// Session metrics
	sessionOutcomesTotal *prometheus.CounterVec
	certificatesTotal    prometheus.Counter

	// Notification metrics
	notificationsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewPrometheusSink creates a new Prometheus metrics sink registered on reg.
func NewPrometheusSink(reg prometheus.Registerer, logger *zap.Logger) *PrometheusSink {
	s := &PrometheusSink{logger: logger}
	s.initJobMetrics(reg)
	s.initSessionMetrics(reg)
	s.initNotificationMetrics(reg)
	return s
}

func (s *PrometheusSink) initJobMetrics(reg prometheus.Registerer) {
	s.runsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopublish_runs_total",
		Help: "Total number of auto-publish job runs started.",
	})
	s.runErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopublish_run_errors_total",
		Help: "Total number of auto-publish runs aborted by a scan failure.",
	})
	s.runsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autopublish_runs_skipped_total",
		Help: "Total number of triggers that did not run the job.",
	}, []string{"reason"})
	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autopublish_run_duration_seconds",
		Help:    "Duration of each auto-publish run in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
	s.sessionsScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopublish_sessions_scanned_total",
		Help: "Total number of candidate sessions found by the scanner.",
	})
	s.sessionsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopublish_sessions_succeeded_total",
		Help: "Total number of sessions published.",
	})
	s.lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopublish_last_run_timestamp_seconds",
		Help: "Unix time of the last completed run.",
	})

	s.register(reg, s.runsTotal, "autopublish_runs_total")
	s.register(reg, s.runErrorsTotal, "autopublish_run_errors_total")
	s.register(reg, s.runsSkippedTotal, "autopublish_runs_skipped_total")
	s.register(reg, s.runDuration, "autopublish_run_duration_seconds")
	s.register(reg, s.sessionsScanned, "autopublish_sessions_scanned_total")
	s.register(reg, s.sessionsSucceeded, "autopublish_sessions_succeeded_total")
	s.register(reg, s.lastRunTimestamp, "autopublish_last_run_timestamp_seconds")
}

func (s *PrometheusSink) initSessionMetrics(reg prometheus.Registerer) {
	s.sessionOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autopublish_session_outcomes_total",
		Help: "Total number of processed sessions by outcome.",
	}, []string{"outcome"})
	s.certificatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopublish_certificates_issued_total",
		Help: "Total number of certificates issued.",
	})

	s.register(reg, s.sessionOutcomesTotal, "autopublish_session_outcomes_total")
	s.register(reg, s.certificatesTotal, "autopublish_certificates_issued_total")
}

func (s *PrometheusSink) initNotificationMetrics(reg prometheus.Registerer) {
	s.notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autopublish_notifications_total",
		Help: "Total number of volunteer notifications by channel and outcome.",
	}, []string{"channel", "outcome"})

	s.register(reg, s.notificationsTotal, "autopublish_notifications_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warn("Failed to register metric", zap.String("metric", name), zap.Error(err))
	}
}

// Job metrics implementation

func (s *PrometheusSink) JobStarted() {
	s.runsTotal.Inc()
}

func (s *PrometheusSink) JobCompleted(duration time.Duration, sessionsScanned, sessionsSucceeded int, err error) {
	s.runDuration.Observe(duration.Seconds())
	s.sessionsScanned.Add(float64(sessionsScanned))
	s.sessionsSucceeded.Add(float64(sessionsSucceeded))
	s.lastRunTimestamp.SetToCurrentTime()
	if err != nil {
		s.runErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) JobSkipped(reason string) {
	s.runsSkippedTotal.WithLabelValues(reason).Inc()
}

// Session metrics implementation

func (s *PrometheusSink) SessionOutcome(outcome string) {
	s.sessionOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) CertificatesIssued(count int) {
	s.certificatesTotal.Add(float64(count))
}

// Notification metrics implementation

func (s *PrometheusSink) NotificationOutcome(channel, outcome string) {
	s.notificationsTotal.WithLabelValues(channel, outcome).Inc()
}
