package api

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	Router *gin.Engine
}

// NewServer mounts the cron trigger, health and, when gatherer is non-nil, metrics endpoints
func NewServer(h *Handler, cronSecret string, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	engine := gin.New()
	s := &Server{Router: engine}

	engine.Use(gin.Recovery())
	engine.Use(requestid.New())
	engine.Use(RequestLogger(logger))

	cron := engine.Group("/api/cron", CronAuth(cronSecret))
	{
		cron.POST("/auto-publish", h.RunAutoPublish)
		cron.GET("/auto-publish", h.Status)
	}

	engine.GET("/health", h.Health)

	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return s
}
