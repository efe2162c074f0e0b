package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/aurumdesk/riskgate/internal/api"
	"github.com/aurumdesk/riskgate/internal/config"
	"github.com/aurumdesk/riskgate/internal/db"
	"github.com/aurumdesk/riskgate/internal/metrics"
	"github.com/aurumdesk/riskgate/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to ./configs/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().Str("environment", cfg.App.Environment).Msg("Starting gate evaluation server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	database, err := db.New(ctx, cfg.Database.GetDSN(), cfg.Database.PoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close()

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, continuing without series cache")
			redisClient = nil
		}
		defer func() {
			if redisClient != nil {
				_ = redisClient.Close()
			}
		}()
	}

	evaluator := pipeline.New(cfg, database.Pool(), redisClient)

	if cfg.Monitoring.EnableMetrics {
		go serveMetrics(cfg.Monitoring.PrometheusPort)
	}

	server := api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RatePerSecond:  cfg.Server.RatePerSecond,
		RateBurst:      cfg.Server.RateBurst,
		Evaluator:      evaluator,
	})

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
		os.Exit(1)
	}

	log.Info().Msg("Server stopped successfully")
}

// serveMetrics exposes Prometheus metrics on a dedicated port, separate
// from the evaluation API.
func serveMetrics(port int) {
	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("Starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server stopped")
	}
}
