package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "riskgate", cfg.App.Name)
	assert.Equal(t, "XAUUSD", cfg.Desk.Symbol)
	assert.Equal(t, 5000.0, cfg.Desk.MaxPositionOz)
	assert.Equal(t, 3.0, cfg.Desk.StressVaRMillions)
	assert.Equal(t, 3.0, cfg.Desk.DailyDrawdownPct)
	assert.True(t, cfg.HardGate.Enabled)
	assert.True(t, cfg.HardGate.RequireStopLoss)
	assert.Nil(t, cfg.HardGate.MaxPositionUtilization)
	assert.Equal(t, []string{"XAUUSD"}, cfg.Compliance.AllowedInstruments)
	assert.Equal(t, 2000.0, cfg.Compliance.MaxSingleOrderOz)
	assert.Equal(t, 20, cfg.Correlation.Window)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
desk:
  symbol: XAGUSD
  max_position_oz: 8000
hard_gate:
  max_position_utilization: 0.95
  correlation_threshold: 0.9
compliance:
  max_single_order_oz: 1500
scenarios:
  - label: crash_5pct
    pct_change: -0.05
correlation:
  targets:
    - symbol: "^GSPC"
      label: "S&P 500 Index"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "XAGUSD", cfg.Desk.Symbol)
	assert.Equal(t, 8000.0, cfg.Desk.MaxPositionOz)
	require.NotNil(t, cfg.HardGate.MaxPositionUtilization)
	assert.Equal(t, 0.95, *cfg.HardGate.MaxPositionUtilization)
	assert.Equal(t, 1500.0, cfg.Compliance.MaxSingleOrderOz)

	shocks := cfg.ScenarioShocks()
	require.Len(t, shocks, 1)
	assert.Equal(t, "crash_5pct", shocks[0].Label)
	assert.Equal(t, -0.05, shocks[0].PctChange)

	targets := cfg.CorrelationTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "^GSPC", targets[0].Symbol)
	assert.Equal(t, 20, targets[0].Window, "targets inherit the global window")
}

func TestValidateRejectsBadLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
desk:
  max_position_oz: -100
  stress_var_millions: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "desk.max_position_oz")
	assert.Contains(t, err.Error(), "desk.stress_var_millions")
}

func TestValidateRejectsBadGateThresholds(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.HardGate.CorrelationThreshold = ptr(1.5)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hard_gate.correlation_threshold")

	cfg.HardGate.CorrelationThreshold = ptr(0.9)
	assert.NoError(t, cfg.Validate())
}

func TestGateSettingsWiresFallbacks(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	settings := cfg.GateSettings()

	assert.True(t, settings.Enabled)
	assert.Equal(t, 2000.0, settings.ComplianceMaxSingleOrderOz)
	assert.Equal(t, 5000.0, settings.MaxPositionOz)
	assert.Equal(t, 3.0, settings.StressVaRMillions)
}

func TestLimits(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	limits := cfg.Limits()

	assert.Equal(t, 5000.0, limits.MaxPositionOz)
	assert.Equal(t, 3.0, limits.StressVaRMillions)
	assert.Equal(t, 3.0, limits.DailyDrawdownPct)
}

func TestScenarioShocksEmptyMeansDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Nil(t, cfg.ScenarioShocks())
	assert.Nil(t, cfg.CorrelationTargets())
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "gate",
		Password: "secret", Database: "riskgate", SSLMode: "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=gate password=secret dbname=riskgate sslmode=require",
		db.GetDSN())
}
