package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/internal/metrics"
	"github.com/jakechorley/volunteer-hours/pkg/core/autopublish"
)

// JobRunner is the auto-publish job as seen by the HTTP trigger
type JobRunner interface {
	Run(ctx context.Context, now time.Time) (*autopublish.JobReport, error)
	Window(now time.Time) autopublish.Window
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ScheduleInfo describes the in-process schedule, when one is configured
type ScheduleInfo interface {
	NextRun(now time.Time) time.Time
	Describe() string
}

type Handler struct {
	job      JobRunner
	enabled  bool
	db       HealthChecker
	schedule ScheduleInfo
	metrics  metrics.Sink
	logger   *zap.Logger
	clock    func() time.Time
}

func NewHandler(job JobRunner, enabled bool, sink metrics.Sink, logger *zap.Logger) *Handler {
	return &Handler{
		job:     job,
		enabled: enabled,
		metrics: sink,
		logger:  logger,
		clock:   time.Now,
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithSchedule reports the in-process schedule on the status endpoint
func (h *Handler) WithSchedule(s ScheduleInfo) *Handler {
	h.schedule = s
	return h
}

// RunAutoPublish handles POST /api/cron/auto-publish
func (h *Handler) RunAutoPublish(c *gin.Context) {
	if !h.enabled {
		h.metrics.JobSkipped(metrics.SkipDisabled)
		c.JSON(http.StatusOK, RunResponse{Message: "auto-publish disabled", Results: []SessionResultResponse{}})
		return
	}

	// A caller that gives up waiting must not abort a run halfway through a session
	ctx := context.WithoutCancel(c.Request.Context())

	report, err := h.job.Run(ctx, h.clock())
	switch {
	case errors.Is(err, autopublish.ErrRunInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case err != nil:
		h.logger.Error("Auto-publish run failed", zap.Error(err))
		resp := toRunResponse(report)
		resp.Error = err.Error()
		c.JSON(http.StatusInternalServerError, resp)
	default:
		c.JSON(http.StatusOK, toRunResponse(report))
	}
}

// Status handles GET /api/cron/auto-publish
func (h *Handler) Status(c *gin.Context) {
	now := h.clock()
	w := h.job.Window(now)
	resp := StatusResponse{
		Status:  "ok",
		Enabled: h.enabled,
		Window:  WindowResponse{From: w.From.UTC(), To: w.To.UTC()},
	}
	if h.schedule != nil {
		resp.Schedule = h.schedule.Describe()
		if next := h.schedule.NextRun(now); !next.IsZero() {
			next = next.UTC()
			resp.NextRun = &next
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /health. ?verbose=true also pings the database.
func (h *Handler) Health(c *gin.Context) {
	if c.Query("verbose") != "true" || h.db == nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, resp)
}
