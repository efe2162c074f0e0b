package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/aurumdesk/riskgate/internal/pipeline"
)

// Root handler
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "AurumDesk Risk Gate",
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleEvaluate runs the risk pipeline over a proposed plan. A gate
// breach is a valid outcome: the full result is returned either way, with
// 409 Conflict marking a vetoed plan.
func (s *Server) handleEvaluate(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if req.Plan == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan is required"})
		return
	}

	if req.RequestID == "" {
		req.RequestID = c.GetString(requestIDKey)
	}

	result, err := s.evaluator.Evaluate(c.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("Evaluation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation failed: " + err.Error()})
		return
	}

	status := http.StatusOK
	if result.Breached() {
		status = http.StatusConflict
	}

	c.JSON(status, result)
}
