package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/aurumdesk/riskgate/internal/pipeline"
)

// Evaluator runs one plan evaluation. Satisfied by *pipeline.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Server represents the gate evaluation REST server
type Server struct {
	router    *gin.Engine
	evaluator Evaluator
	addr      string
	server    *http.Server
}

// Config contains server configuration
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RatePerSecond  float64
	RateBurst      int
	Evaluator      Evaluator
}

// NewServer creates a new evaluation server
func NewServer(config Config) *Server {
	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(RateLimitMiddleware(config.RatePerSecond, config.RateBurst))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	server := &Server{
		router:    router,
		evaluator: config.Evaluator,
		addr:      addr,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting gate evaluation server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping gate evaluation server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// LoggerMiddleware is a custom logging middleware for Gin
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		// Process request
		c.Next()

		// Log request
		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		logEvent := log.Info().
			Str("method", method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", clientIP).
			Str("request_id", c.GetString(requestIDKey))

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")
	}
}
