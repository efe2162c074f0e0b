package api

import (
	"github.com/gin-gonic/gin"

	"github.com/aurumdesk/riskgate/internal/metrics"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/v1")
	{
		v1.POST("/evaluate", s.handleEvaluate)
	}

	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Root endpoint
	s.router.GET("/", s.handleRoot)
}
