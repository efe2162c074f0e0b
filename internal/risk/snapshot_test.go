package risk

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumdesk/riskgate/internal/market"
	"github.com/aurumdesk/riskgate/internal/riskmath"
)

func baseLimits() Limits {
	return Limits{MaxPositionOz: 5000, StressVaRMillions: 3.0, DailyDrawdownPct: 3.0}
}

func risingSeries(n int, start, step float64) market.Series {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + float64(i)*step
	}
	return market.Series{Prices: prices}
}

func TestBuildSnapshotEmptyHistory(t *testing.T) {
	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           market.Series{},
		Limits:            baseLimits(),
		CurrentPositionOz: 1000,
		PnLTodayMillions:  -0.2,
	})

	assert.False(t, snapshot.DrawdownAlert)
	assert.Equal(t, 5000.0, snapshot.LimitPositionOz)
	assert.Nil(t, snapshot.RealizedVolAnnualized)
	assert.Nil(t, snapshot.HistoricalVaR99)
	assert.Nil(t, snapshot.PortfolioVaRMillions)
	assert.Nil(t, snapshot.DrawdownThresholdMillions)
	assert.Nil(t, snapshot.LatestPrice)
	assert.Empty(t, snapshot.ScenarioOutcomes)
	assert.Empty(t, snapshot.CrossAssetCorrelations)
	assert.Empty(t, snapshot.RiskAlerts)

	require.NotNil(t, snapshot.PositionUtilization)
	assert.InDelta(t, 0.2, *snapshot.PositionUtilization, 1e-9)
}

func TestBuildSnapshotComputesMarketMetrics(t *testing.T) {
	history := market.Series{Prices: []float64{1900, 1910, 1890, 1925, 1905, 1930, 1915, 1940}}

	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           history,
		Limits:            baseLimits(),
		CurrentPositionOz: 1000,
		PnLTodayMillions:  0.1,
	})

	require.NotNil(t, snapshot.LatestPrice)
	assert.Equal(t, 1940.0, *snapshot.LatestPrice)

	require.NotNil(t, snapshot.RealizedVolAnnualized)
	assert.Greater(t, *snapshot.RealizedVolAnnualized, 0.0)

	require.NotNil(t, snapshot.HistoricalVaR99)
	assert.Less(t, *snapshot.HistoricalVaR99, 0.0)

	require.NotNil(t, snapshot.PortfolioVaRMillions)
	assert.Greater(t, *snapshot.PortfolioVaRMillions, 0.0)

	require.NotNil(t, snapshot.DrawdownThresholdMillions)
	assert.InDelta(t, -0.09, *snapshot.DrawdownThresholdMillions, 1e-9)
	assert.False(t, snapshot.DrawdownAlert)

	// Default shocks produce one outcome each, in input order.
	require.Len(t, snapshot.ScenarioOutcomes, len(DefaultScenarioShocks))
	assert.Equal(t, "minus_2pct", snapshot.ScenarioOutcomes[0].Label)
	assert.InDelta(t, 1940.0*0.98, snapshot.ScenarioOutcomes[0].ProjectedPrice, 1e-9)
	require.NotNil(t, snapshot.ScenarioOutcomes[0].ProjectedPnLMillions)
	assert.InDelta(t, (1940.0*0.98-1940.0)*1000/1e6, *snapshot.ScenarioOutcomes[0].ProjectedPnLMillions, 1e-9)
}

func TestBuildSnapshotDrawdownAlert(t *testing.T) {
	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           risingSeries(10, 1900, 5),
		Limits:            baseLimits(),
		CurrentPositionOz: 100,
		PnLTodayMillions:  -0.5,
	})

	// Threshold is -(3/100)*3.0 = -0.09; -0.5 breaches it.
	assert.True(t, snapshot.DrawdownAlert)
	assert.Contains(t, snapshot.RiskAlerts, AlertDrawdownLimitBreached)
}

func TestBuildSnapshotPositionAlerts(t *testing.T) {
	input := SnapshotInput{
		Symbol:            "XAUUSD",
		History:           risingSeries(10, 1900, 5),
		Limits:            baseLimits(),
		CurrentPositionOz: 6000,
		PnLTodayMillions:  0,
	}
	snapshot := BuildSnapshot(input)
	assert.Contains(t, snapshot.RiskAlerts, AlertPositionLimitExceeded)
	assert.NotContains(t, snapshot.RiskAlerts, AlertPositionLimitWarning)

	input.CurrentPositionOz = 4600
	snapshot = BuildSnapshot(input)
	assert.Contains(t, snapshot.RiskAlerts, AlertPositionLimitWarning)
	assert.NotContains(t, snapshot.RiskAlerts, AlertPositionLimitExceeded)
}

func TestBuildSnapshotScenarioLossAlert(t *testing.T) {
	// At 5000oz and 1900 price, a -2% shock costs 5000*38 = 0.19M; shrink
	// the stress limit so the scenario loss exceeds it.
	limits := Limits{MaxPositionOz: 10000, StressVaRMillions: 0.1, DailyDrawdownPct: 1.0}

	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           risingSeries(30, 1900, 0),
		Limits:            limits,
		CurrentPositionOz: 5000,
		PnLTodayMillions:  0.5,
	})

	assert.Contains(t, snapshot.RiskAlerts, AlertScenarioLossExceedsLimit)

	// The alert is appended once even when several scenarios breach.
	count := 0
	for _, alert := range snapshot.RiskAlerts {
		if alert == AlertScenarioLossExceedsLimit {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBuildSnapshotZeroPositionLimit(t *testing.T) {
	limits := Limits{MaxPositionOz: 0, StressVaRMillions: 3.0, DailyDrawdownPct: 3.0}

	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           market.Series{},
		Limits:            limits,
		CurrentPositionOz: 1000,
	})

	assert.Nil(t, snapshot.PositionUtilization, "utilization undefined when limit is zero")
}

func TestBuildSnapshotNewsAdjustmentRecorded(t *testing.T) {
	news := &NewsSnapshot{Score: -0.6, Confidence: 1.2, Classification: "bearish", ScoreTrend: -0.2}

	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           risingSeries(10, 1900, 5),
		Limits:            baseLimits(),
		CurrentPositionOz: 1000,
		News:              news,
	})

	require.NotNil(t, snapshot.NewsAdjustment)
	assert.Less(t, snapshot.NewsAdjustment.Scale, 1.0)
	assert.Equal(t, baseLimits(), snapshot.BaseLimits)
	assert.Less(t, snapshot.AdjustedLimits.MaxPositionOz, snapshot.BaseLimits.MaxPositionOz)
	assert.Equal(t, snapshot.AdjustedLimits.MaxPositionOz, snapshot.LimitPositionOz)
}

func TestBuildSnapshotCrossAssetCorrelations(t *testing.T) {
	base := risingSeries(30, 1900, 2)
	peer := risingSeries(30, 100, 1)

	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           base,
		Limits:            baseLimits(),
		CurrentPositionOz: 100,
		Benchmarks:        map[string]market.Series{"^GSPC": peer},
		CorrelationTargets: []CorrelationTarget{
			{Symbol: "^GSPC", Label: "S&P 500 Index", Window: 10},
			{Symbol: "TLT", Label: "Long-Term Treasuries ETF", Window: 10},
		},
		CorrelationWindow: 10,
	})

	// TLT has no series and is skipped; GSPC correlates perfectly.
	require.Len(t, snapshot.CrossAssetCorrelations, 1)
	diag := snapshot.CrossAssetCorrelations[0]
	assert.Equal(t, "^GSPC", diag.Symbol)
	assert.Equal(t, 10, diag.Window)
	assert.Equal(t, 30, diag.Observations)
	assert.InDelta(t, 1.0, diag.Value, 1e-9)
}

func TestBuildSnapshotInsufficientBenchmarkObservations(t *testing.T) {
	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           risingSeries(5, 1900, 2),
		Limits:            baseLimits(),
		CurrentPositionOz: 100,
		Benchmarks:        map[string]market.Series{"^GSPC": risingSeries(5, 100, 1)},
		CorrelationTargets: []CorrelationTarget{
			{Symbol: "^GSPC", Label: "S&P 500 Index", Window: 20},
		},
		CorrelationWindow: 20,
	})

	assert.Empty(t, snapshot.CrossAssetCorrelations)
}

func TestSnapshotNeverSerializesNaN(t *testing.T) {
	// A constant price series makes stdev zero and VaR zero, and a
	// zero-variance benchmark makes the correlation denominator zero.
	flat := risingSeries(30, 1900, 0)

	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           flat,
		Limits:            baseLimits(),
		CurrentPositionOz: 1000,
		Benchmarks:        map[string]market.Series{"^GSPC": flat},
		CorrelationTargets: []CorrelationTarget{
			{Symbol: "^GSPC", Label: "S&P 500 Index", Window: 10},
		},
		CorrelationWindow: 10,
	})

	payload, err := json.Marshal(snapshot)
	require.NoError(t, err, "NaN would make Marshal fail")
	assert.False(t, strings.Contains(string(payload), "NaN"))
	assert.Empty(t, snapshot.CrossAssetCorrelations, "zero-variance correlation is omitted")
}

func TestBuildSnapshotSingleDataPoint(t *testing.T) {
	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           market.Series{Prices: []float64{1900}},
		Limits:            baseLimits(),
		CurrentPositionOz: 100,
		ScenarioShocks:    []riskmath.ScenarioShock{{Label: "flat", PctChange: 0}},
	})

	assert.Nil(t, snapshot.RealizedVolAnnualized, "volatility needs at least two data points")
	assert.Nil(t, snapshot.HistoricalVaR99)
	require.Len(t, snapshot.ScenarioOutcomes, 1)
	assert.Equal(t, 1900.0, snapshot.ScenarioOutcomes[0].ProjectedPrice)
}

func TestVolatilityAnnualization(t *testing.T) {
	history := market.Series{Prices: []float64{100, 101, 100, 102, 101, 103}}
	returns := history.Returns()

	snapshot := BuildSnapshot(SnapshotInput{
		Symbol:            "XAUUSD",
		History:           history,
		Limits:            baseLimits(),
		CurrentPositionOz: 0,
	})

	require.NotNil(t, snapshot.RealizedVolAnnualized)
	expected := math.Sqrt(252) * riskmath.SampleStdDev(returns)
	assert.InDelta(t, expected, *snapshot.RealizedVolAnnualized, 1e-12)
}
