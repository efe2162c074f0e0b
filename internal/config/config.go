// Package config loads and validates the application configuration from
// YAML files and environment variables. Validation is fail-fast: a process
// with malformed limits never starts.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/aurumdesk/riskgate/internal/compliance"
	"github.com/aurumdesk/riskgate/internal/gate"
	"github.com/aurumdesk/riskgate/internal/risk"
	"github.com/aurumdesk/riskgate/internal/riskmath"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Desk        DeskConfig        `mapstructure:"desk"`
	HardGate    HardGateConfig    `mapstructure:"hard_gate"`
	Compliance  compliance.Config `mapstructure:"compliance"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Scenarios   []ScenarioConfig  `mapstructure:"scenarios"`
	Server      ServerConfig      `mapstructure:"server"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Audit       AuditConfig       `mapstructure:"audit"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DatabaseConfig contains PostgreSQL/TimescaleDB settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings. Redis is optional: an empty host
// disables the series cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLSec   int    `mapstructure:"ttl_sec"`
}

// DeskConfig contains the desk's instrument and soft risk limits.
type DeskConfig struct {
	Symbol            string  `mapstructure:"symbol"`
	MaxPositionOz     float64 `mapstructure:"max_position_oz"`
	StressVaRMillions float64 `mapstructure:"stress_var_millions"`
	DailyDrawdownPct  float64 `mapstructure:"daily_drawdown_pct"`
	HistoryDays       int     `mapstructure:"history_days"`
}

// HardGateConfig contains the hard gate thresholds. Pointer fields left
// unset fall back through the cascade the gate resolves at evaluation.
type HardGateConfig struct {
	Enabled                bool     `mapstructure:"enabled"`
	MaxPositionUtilization *float64 `mapstructure:"max_position_utilization"`
	MaxSingleOrderOz       *float64 `mapstructure:"max_single_order_oz"`
	RequireStopLoss        bool     `mapstructure:"require_stop_loss"`
	MaxStressLossMillions  *float64 `mapstructure:"max_stress_loss_millions"`
	CorrelationThreshold   *float64 `mapstructure:"correlation_threshold"`
}

// CorrelationConfig contains the rolling-correlation settings.
type CorrelationConfig struct {
	Window  int                `mapstructure:"window"`
	Targets []CorrelationEntry `mapstructure:"targets"`
}

// CorrelationEntry is one configured benchmark.
type CorrelationEntry struct {
	Symbol string `mapstructure:"symbol" yaml:"symbol"`
	Label  string `mapstructure:"label" yaml:"label"`
	Window int    `mapstructure:"window" yaml:"window"`
}

// ScenarioConfig is one configured scenario shock.
type ScenarioConfig struct {
	Label     string  `mapstructure:"label" yaml:"label"`
	PctChange float64 `mapstructure:"pct_change" yaml:"pct_change"`
}

// ServerConfig contains the evaluation service settings.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	RatePerSecond  float64  `mapstructure:"rate_per_second"`
	RateBurst      int      `mapstructure:"rate_burst"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// AuditConfig contains audit trail settings
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("RISKGATE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "riskgate")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "riskgate")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_sec", 300)

	// Desk defaults
	v.SetDefault("desk.symbol", "XAUUSD")
	v.SetDefault("desk.max_position_oz", 5000.0)
	v.SetDefault("desk.stress_var_millions", 3.0)
	v.SetDefault("desk.daily_drawdown_pct", 3.0)
	v.SetDefault("desk.history_days", 120)

	// Hard gate defaults; unset thresholds cascade at evaluation time
	v.SetDefault("hard_gate.enabled", true)
	v.SetDefault("hard_gate.require_stop_loss", true)

	// Compliance defaults
	v.SetDefault("compliance.allowed_instruments", []string{"XAUUSD"})
	v.SetDefault("compliance.restricted_instruments", []string{})
	v.SetDefault("compliance.allowed_counterparties", []string{})
	v.SetDefault("compliance.restricted_counterparties", []string{})
	v.SetDefault("compliance.max_single_order_oz", 2000.0)
	v.SetDefault("compliance.require_stop_loss", true)
	v.SetDefault("compliance.require_take_profit", true)

	// Correlation defaults
	v.SetDefault("correlation.window", 20)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8082)
	v.SetDefault("server.rate_per_second", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)

	// Audit defaults
	v.SetDefault("audit.enabled", true)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetServerAddr returns the evaluation service address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Limits returns the desk's soft limits as the risk package consumes them.
func (c *Config) Limits() risk.Limits {
	return risk.Limits{
		MaxPositionOz:     c.Desk.MaxPositionOz,
		StressVaRMillions: c.Desk.StressVaRMillions,
		DailyDrawdownPct:  c.Desk.DailyDrawdownPct,
	}
}

// GateSettings assembles the hard gate settings, wiring in the fallback
// limits the gate cascades through.
func (c *Config) GateSettings() gate.Settings {
	return gate.Settings{
		Enabled:                    c.HardGate.Enabled,
		MaxPositionUtilization:     c.HardGate.MaxPositionUtilization,
		MaxSingleOrderOz:           c.HardGate.MaxSingleOrderOz,
		RequireStopLoss:            c.HardGate.RequireStopLoss,
		MaxStressLossMillions:      c.HardGate.MaxStressLossMillions,
		CorrelationThreshold:       c.HardGate.CorrelationThreshold,
		ComplianceMaxSingleOrderOz: c.Compliance.MaxSingleOrderOz,
		MaxPositionOz:              c.Desk.MaxPositionOz,
		StressVaRMillions:          c.Desk.StressVaRMillions,
	}
}

// CorrelationTargets returns the configured benchmarks, defaulting each
// target's window to the global correlation window.
func (c *Config) CorrelationTargets() []risk.CorrelationTarget {
	if len(c.Correlation.Targets) == 0 {
		return nil
	}
	targets := make([]risk.CorrelationTarget, 0, len(c.Correlation.Targets))
	for _, entry := range c.Correlation.Targets {
		window := entry.Window
		if window == 0 {
			window = c.Correlation.Window
		}
		targets = append(targets, risk.CorrelationTarget{
			Symbol: entry.Symbol,
			Label:  entry.Label,
			Window: window,
		})
	}
	return targets
}

// ScenarioShocks returns the configured scenario shocks, or nil so the
// snapshot builder applies its defaults.
func (c *Config) ScenarioShocks() []riskmath.ScenarioShock {
	if len(c.Scenarios) == 0 {
		return nil
	}
	shocks := make([]riskmath.ScenarioShock, 0, len(c.Scenarios))
	for _, entry := range c.Scenarios {
		shocks = append(shocks, riskmath.ScenarioShock{
			Label:     entry.Label,
			PctChange: entry.PctChange,
		})
	}
	return shocks
}
