package config

import (
	"fmt"
	"strings"
)

// ValidationError describes one rejected configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every failed check so a misconfigured
// process reports the full picture at once.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return "config validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks the configuration for values the pipeline cannot run
// with. Configuration errors are fatal at load, never silently defaulted.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Desk.Symbol == "" {
		errs = append(errs, ValidationError{"desk.symbol", "must not be empty"})
	}
	if c.Desk.MaxPositionOz <= 0 {
		errs = append(errs, ValidationError{"desk.max_position_oz", "must be positive"})
	}
	if c.Desk.StressVaRMillions <= 0 {
		errs = append(errs, ValidationError{"desk.stress_var_millions", "must be positive"})
	}
	if c.Desk.DailyDrawdownPct <= 0 {
		errs = append(errs, ValidationError{"desk.daily_drawdown_pct", "must be positive"})
	}
	if c.Desk.HistoryDays <= 0 {
		errs = append(errs, ValidationError{"desk.history_days", "must be positive"})
	}

	if c.HardGate.MaxPositionUtilization != nil && *c.HardGate.MaxPositionUtilization <= 0 {
		errs = append(errs, ValidationError{"hard_gate.max_position_utilization", "must be positive when set"})
	}
	if c.HardGate.MaxSingleOrderOz != nil && *c.HardGate.MaxSingleOrderOz <= 0 {
		errs = append(errs, ValidationError{"hard_gate.max_single_order_oz", "must be positive when set"})
	}
	if c.HardGate.MaxStressLossMillions != nil && *c.HardGate.MaxStressLossMillions <= 0 {
		errs = append(errs, ValidationError{"hard_gate.max_stress_loss_millions", "must be positive when set"})
	}
	if c.HardGate.CorrelationThreshold != nil {
		if *c.HardGate.CorrelationThreshold <= 0 || *c.HardGate.CorrelationThreshold > 1 {
			errs = append(errs, ValidationError{"hard_gate.correlation_threshold", "must be in (0, 1] when set"})
		}
	}

	if c.Compliance.MaxSingleOrderOz <= 0 {
		errs = append(errs, ValidationError{"compliance.max_single_order_oz", "must be positive"})
	}

	if c.Correlation.Window < 2 {
		errs = append(errs, ValidationError{"correlation.window", "must be at least 2"})
	}
	for i, target := range c.Correlation.Targets {
		if target.Symbol == "" {
			errs = append(errs, ValidationError{
				fmt.Sprintf("correlation.targets[%d].symbol", i), "must not be empty"})
		}
		if target.Window == 1 || target.Window < 0 {
			errs = append(errs, ValidationError{
				fmt.Sprintf("correlation.targets[%d].window", i), "must be 0 (inherit) or at least 2"})
		}
	}

	for i, scenario := range c.Scenarios {
		if scenario.Label == "" {
			errs = append(errs, ValidationError{
				fmt.Sprintf("scenarios[%d].label", i), "must not be empty"})
		}
	}

	if c.Database.Host == "" {
		errs = append(errs, ValidationError{"database.host", "must not be empty"})
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, ValidationError{"database.port", "must be a valid port"})
	}
	if c.Database.PoolSize <= 0 {
		errs = append(errs, ValidationError{"database.pool_size", "must be positive"})
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{"server.port", "must be a valid port"})
	}
	if c.Server.RatePerSecond <= 0 {
		errs = append(errs, ValidationError{"server.rate_per_second", "must be positive"})
	}
	if c.Server.RateBurst <= 0 {
		errs = append(errs, ValidationError{"server.rate_burst", "must be positive"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
