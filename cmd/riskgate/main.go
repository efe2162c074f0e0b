// Workflow runner: evaluates one proposed trading plan against compliance
// and the hard risk gate, printing the full result as JSON.
//
// Exit codes: 0 pass, 2 gate breach, 1 any other failure.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/aurumdesk/riskgate/internal/config"
	"github.com/aurumdesk/riskgate/internal/db"
	"github.com/aurumdesk/riskgate/internal/pipeline"
)

const (
	exitPass    = 0
	exitFailure = 1
	exitBreach  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file (defaults to ./configs/config.yaml)")
	planPath := flag.String("plan", "-", "Path to the proposed plan JSON, or - for stdin")
	outPath := flag.String("out", "-", "Path to write the result JSON, or - for stdout")
	playbookPath := flag.String("playbook", "", "Optional scenario/correlation playbook YAML")
	requestID := flag.String("request-id", "", "Correlation ID recorded in the audit trail")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return exitFailure
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	if *playbookPath != "" {
		if err := cfg.LoadPlaybook(*playbookPath); err != nil {
			log.Error().Err(err).Str("path", *playbookPath).Msg("Failed to load playbook")
			return exitFailure
		}
	}

	plan, err := readPlan(*planPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read plan")
		return exitFailure
	}

	ctx := context.Background()

	database, err := db.New(ctx, cfg.Database.GetDSN(), cfg.Database.PoolSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		return exitFailure
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

	result, err := evaluator.Evaluate(ctx, pipeline.Request{
		Plan:      plan,
		RequestID: *requestID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Evaluation failed")
		return exitFailure
	}

	if err := writeResult(*outPath, result); err != nil {
		log.Error().Err(err).Msg("Failed to write result")
		return exitFailure
	}

	if result.Breached() {
		log.Error().Str("summary", result.Gate.Summary()).Msg("Hard risk gate blocked the plan")
		return exitBreach
	}

	log.Info().Str("symbol", result.Symbol).Msg("Plan passed the hard risk gate")
	return exitPass
}

func readPlan(path string) (map[string]any, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open plan file: %w", err)
		}
		defer file.Close()
		reader = file
	}

	var plan map[string]any
	if err := json.NewDecoder(reader).Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan JSON: %w", err)
	}
	return plan, nil
}

func writeResult(path string, result *pipeline.Result) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	encoded = append(encoded, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}
