package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumdesk/riskgate/internal/audit"
	"github.com/aurumdesk/riskgate/internal/config"
	"github.com/aurumdesk/riskgate/internal/gate"
	"github.com/aurumdesk/riskgate/internal/market"
	"github.com/aurumdesk/riskgate/internal/risk"
	"github.com/aurumdesk/riskgate/internal/state"
)

type stubStates struct {
	stored state.State
	err    error
	calls  int
}

func (s *stubStates) Load(ctx context.Context, symbol string) (state.State, error) {
	s.calls++
	if s.err != nil {
		return state.State{}, s.err
	}
	return s.stored, nil
}

type stubProvider struct {
	series map[string]market.Series
	err    error
	calls  int
}

func (p *stubProvider) CloseSeries(ctx context.Context, symbol string, days int) (market.Series, error) {
	p.calls++
	if p.err != nil {
		return market.Series{}, p.err
	}
	return p.series[symbol], nil
}

func testConfig() *config.Config {
	return &config.Config{
		Desk: config.DeskConfig{
			Symbol:            "XAUUSD",
			MaxPositionOz:     5000,
			StressVaRMillions: 3.0,
			DailyDrawdownPct:  3.0,
			HistoryDays:       120,
		},
		HardGate: config.HardGateConfig{
			Enabled:         true,
			RequireStopLoss: true,
		},
		Correlation: config.CorrelationConfig{Window: 20},
	}
}

func flatSeries(n int, price float64) market.Series {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = price
	}
	return market.Series{Prices: prices}
}

func planWithOrder(sizeOz float64) map[string]any {
	order := map[string]any{
		"instrument": "XAUUSD",
		"side":       "buy",
		"size_oz":    sizeOz,
		"type":       "STOP_LIMIT",
		"stop":       1890.0,
		"target":     1950.0,
	}
	return map[string]any{
		"orders": []any{order},
		"details": map[string]any{
			"execution_checklist": map[string]any{
				"orders": []any{order},
			},
			"risk_compliance_signoff": map[string]any{
				"risk_metrics": map[string]any{
					"position_utilization":            0.3,
					"stress_test_worst_loss_millions": -1.0,
				},
			},
		},
	}
}

func newTestEvaluator(cfg *config.Config, states *stubStates, provider *stubProvider) *Evaluator {
	return NewWithDeps(cfg, states, provider, audit.NewLogger(nil, false))
}

func TestEvaluateBuildsSnapshotAndPasses(t *testing.T) {
	states := &stubStates{stored: state.State{
		Position: state.Position{Symbol: "XAUUSD", NetOz: 1000},
	}}
	provider := &stubProvider{series: map[string]market.Series{
		"XAUUSD": flatSeries(60, 1900),
	}}

	evaluator := newTestEvaluator(testConfig(), states, provider)
	result, err := evaluator.Evaluate(context.Background(), Request{Plan: planWithOrder(500)})

	require.NoError(t, err)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, "XAUUSD", result.Symbol)
	assert.Equal(t, 1000.0, result.Snapshot.CurrentPositionOz)
	assert.NotEmpty(t, result.RequestID)
	assert.True(t, result.Compliance.Clean())
	assert.False(t, result.Breached())
	assert.Equal(t, 1, states.calls)
}

func TestEvaluateUsesInlineSnapshot(t *testing.T) {
	states := &stubStates{err: errors.New("unreachable")}
	provider := &stubProvider{err: errors.New("unreachable")}

	snapshot := &risk.Snapshot{
		Symbol:            "XAUUSD",
		CurrentPositionOz: 2000,
		LimitPositionOz:   5000,
	}

	evaluator := newTestEvaluator(testConfig(), states, provider)
	result, err := evaluator.Evaluate(context.Background(), Request{
		Plan:     planWithOrder(500),
		Snapshot: snapshot,
	})

	require.NoError(t, err)
	assert.Same(t, snapshot, result.Snapshot)
	assert.Equal(t, 0, states.calls)
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, 500.0, result.Compliance.NetExposureOz)
	assert.Equal(t, 2500.0, result.Compliance.ProjectedPositionOz)
}

func TestEvaluateGateBreachIsNotAnError(t *testing.T) {
	states := &stubStates{stored: state.State{
		Position: state.Position{Symbol: "XAUUSD", NetOz: 0},
	}}
	provider := &stubProvider{series: map[string]market.Series{
		"XAUUSD": flatSeries(60, 1900),
	}}

	evaluator := newTestEvaluator(testConfig(), states, provider)
	result, err := evaluator.Evaluate(context.Background(), Request{Plan: planWithOrder(8000)})

	require.NoError(t, err)
	assert.True(t, result.Breached())

	codes := make([]string, 0, len(result.Gate.Violations))
	for _, violation := range result.Gate.Violations {
		codes = append(codes, violation.Code)
	}
	assert.Contains(t, codes, gate.CodeSingleOrderExposure)
}

func TestEvaluateStateLoadError(t *testing.T) {
	states := &stubStates{err: errors.New("connection refused")}
	provider := &stubProvider{}

	evaluator := newTestEvaluator(testConfig(), states, provider)
	_, err := evaluator.Evaluate(context.Background(), Request{Plan: planWithOrder(500)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load portfolio state")
}

func TestEvaluateHistoryError(t *testing.T) {
	states := &stubStates{stored: state.DefaultState("XAUUSD")}
	provider := &stubProvider{err: errors.New("query timeout")}

	evaluator := newTestEvaluator(testConfig(), states, provider)
	_, err := evaluator.Evaluate(context.Background(), Request{Plan: planWithOrder(500)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load price history")
}

func TestEvaluatePreservesRequestID(t *testing.T) {
	states := &stubStates{stored: state.DefaultState("XAUUSD")}
	provider := &stubProvider{series: map[string]market.Series{
		"XAUUSD": flatSeries(30, 1900),
	}}

	evaluator := newTestEvaluator(testConfig(), states, provider)
	result, err := evaluator.Evaluate(context.Background(), Request{
		Plan:      planWithOrder(500),
		RequestID: "req-42",
	})

	require.NoError(t, err)
	assert.Equal(t, "req-42", result.RequestID)
}

func TestEvaluateComplianceViolationsFlowThrough(t *testing.T) {
	cfg := testConfig()
	cfg.Compliance.AllowedInstruments = []string{"XAUUSD"}

	plan := planWithOrder(500)
	plan["orders"] = []any{map[string]any{
		"instrument": "XPDUSD",
		"side":       "buy",
		"size_oz":    500.0,
		"stop":       1890.0,
	}}

	states := &stubStates{stored: state.DefaultState("XAUUSD")}
	provider := &stubProvider{series: map[string]market.Series{
		"XAUUSD": flatSeries(30, 1900),
	}}

	evaluator := newTestEvaluator(cfg, states, provider)
	result, err := evaluator.Evaluate(context.Background(), Request{Plan: plan})

	require.NoError(t, err)
	assert.False(t, result.Compliance.Clean())
	assert.Contains(t, result.Compliance.Violations, "instrument_not_approved")
}
