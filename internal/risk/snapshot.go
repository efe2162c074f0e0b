package risk

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/aurumdesk/riskgate/internal/market"
	"github.com/aurumdesk/riskgate/internal/riskmath"
)

// Risk alert codes raised by snapshot construction.
const (
	AlertPositionLimitExceeded    = "position_limit_exceeded"
	AlertPositionLimitWarning     = "position_limit_warning"
	AlertDrawdownLimitBreached    = "drawdown_limit_breached"
	AlertVaRLimitExceeded         = "var_limit_exceeded"
	AlertVaRLimitWarning          = "var_limit_warning"
	AlertScenarioLossExceedsLimit = "scenario_loss_exceeds_limit"
)

// Trading days per year, used to annualize daily volatility.
const tradingDaysPerYear = 252

// ScenarioOutcome is the projected price and PnL for one scenario shock.
type ScenarioOutcome struct {
	Label                string   `json:"label"`
	ProjectedPrice       float64  `json:"projected_price"`
	ProjectedPnLMillions *float64 `json:"projected_pnl_millions,omitempty"`
}

// CorrelationDiagnostic is the latest rolling correlation against one
// configured benchmark.
type CorrelationDiagnostic struct {
	Symbol       string  `json:"symbol"`
	Label        string  `json:"label"`
	Window       int     `json:"window"`
	Value        float64 `json:"value"`
	Observations int     `json:"observations"`
}

// Snapshot is the computed risk artifact for one evaluation cycle. It is
// produced fresh per run and never mutated after construction. Every
// numeric field is either a finite value or an explicit nil; NaN never
// reaches the snapshot.
type Snapshot struct {
	Symbol                    string                  `json:"symbol"`
	CurrentPositionOz         float64                 `json:"current_position_oz"`
	LimitPositionOz           float64                 `json:"limit_position_oz"`
	PositionUtilization       *float64                `json:"position_utilization"`
	StressVaRLimitMillions    float64                 `json:"stress_var_limit_millions"`
	PnLTodayMillions          float64                 `json:"pnl_today_millions"`
	DrawdownAlert             bool                    `json:"drawdown_alert"`
	DrawdownThresholdMillions *float64                `json:"drawdown_threshold_millions"`
	RealizedVolAnnualized     *float64                `json:"realized_vol_annualized"`
	HistoricalVaR99           *float64                `json:"historical_var_99"`
	PortfolioVaRMillions      *float64                `json:"portfolio_var_millions"`
	VaRLimitUtilization       *float64                `json:"var_limit_utilization"`
	ScenarioOutcomes          []ScenarioOutcome       `json:"scenario_outcomes"`
	CrossAssetCorrelations    []CorrelationDiagnostic `json:"cross_asset_correlations"`
	RiskAlerts                []string                `json:"risk_alerts"`
	LatestPrice               *float64                `json:"latest_price"`
	BaseLimits                Limits                  `json:"base_limits"`
	AdjustedLimits            Limits                  `json:"adjusted_limits"`
	NewsAdjustment            *NewsAdjustment         `json:"news_adjustment"`
}

// SnapshotInput carries everything BuildSnapshot needs. Benchmarks are
// supplied by the caller (or assembled by a Builder); BuildSnapshot itself
// performs no I/O.
type SnapshotInput struct {
	Symbol             string
	History            market.Series
	Limits             Limits
	CurrentPositionOz  float64
	PnLTodayMillions   float64
	Benchmarks         map[string]market.Series
	CorrelationTargets []CorrelationTarget
	CorrelationWindow  int
	ScenarioShocks     []riskmath.ScenarioShock
	News               *NewsSnapshot
}

// finiteOrNil converts NaN and infinities into an absent value so they can
// never serialize into the audit trail.
func finiteOrNil(value float64) *float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}

// BuildSnapshot computes realized and hypothetical risk metrics for the
// desk. Empty price history yields a snapshot with all market-derived
// fields absent and no drawdown alert: with no data to evaluate against,
// the conservative choice here is to leave alerting to the hard gate's own
// checks rather than fabricate one.
func BuildSnapshot(input SnapshotInput) *Snapshot {
	targets := input.CorrelationTargets
	if targets == nil {
		targets = DefaultCorrelationTargets
	}
	shocks := input.ScenarioShocks
	if shocks == nil {
		shocks = DefaultScenarioShocks
	}
	window := input.CorrelationWindow
	if window < 2 {
		window = 20
	}

	effectiveLimits := input.Limits
	var newsAdjustment *NewsAdjustment
	if input.News != nil {
		adjusted, meta := AdjustLimitsWithNews(input.Limits, *input.News)
		effectiveLimits = adjusted
		newsAdjustment = &meta
	}

	snapshot := &Snapshot{
		Symbol:                 input.Symbol,
		CurrentPositionOz:      input.CurrentPositionOz,
		LimitPositionOz:        effectiveLimits.MaxPositionOz,
		StressVaRLimitMillions: effectiveLimits.StressVaRMillions,
		PnLTodayMillions:       input.PnLTodayMillions,
		ScenarioOutcomes:       []ScenarioOutcome{},
		CrossAssetCorrelations: []CorrelationDiagnostic{},
		RiskAlerts:             []string{},
		BaseLimits:             input.Limits,
		AdjustedLimits:         effectiveLimits,
		NewsAdjustment:         newsAdjustment,
	}

	if input.History.Empty() {
		log.Warn().Str("symbol", input.Symbol).Msg("No price history, risk snapshot degraded to limits only")
	} else {
		latest := input.History.Latest()
		snapshot.LatestPrice = &latest

		returns := input.History.Returns()
		if len(returns) > 0 {
			snapshot.RealizedVolAnnualized = finiteOrNil(math.Sqrt(tradingDaysPerYear) * riskmath.SampleStdDev(returns))

			varValue, err := riskmath.HistoricalVaR(returns, 0.99)
			if err == nil {
				snapshot.HistoricalVaR99 = finiteOrNil(varValue)
			}
		}

		threshold := -effectiveLimits.DailyDrawdownPct / 100 * effectiveLimits.StressVaRMillions
		snapshot.DrawdownThresholdMillions = &threshold
		snapshot.DrawdownAlert = input.PnLTodayMillions <= threshold

		for _, projection := range riskmath.ApplyScenario(input.History.Prices, shocks) {
			outcome := ScenarioOutcome{
				Label:          projection.Label,
				ProjectedPrice: projection.ProjectedLevel,
			}
			pnl := (projection.ProjectedLevel - latest) * input.CurrentPositionOz / 1e6
			outcome.ProjectedPnLMillions = finiteOrNil(pnl)
			snapshot.ScenarioOutcomes = append(snapshot.ScenarioOutcomes, outcome)
		}

		if snapshot.HistoricalVaR99 != nil {
			portfolioVaR := math.Abs(*snapshot.HistoricalVaR99) * latest * input.CurrentPositionOz / 1e6
			snapshot.PortfolioVaRMillions = finiteOrNil(portfolioVaR)
		}

		snapshot.CrossAssetCorrelations = computeCrossAssetCorrelations(
			input.History.Prices, input.Benchmarks, targets, window)
	}

	if effectiveLimits.MaxPositionOz != 0 {
		utilization := input.CurrentPositionOz / effectiveLimits.MaxPositionOz
		snapshot.PositionUtilization = finiteOrNil(utilization)
	}

	if snapshot.PortfolioVaRMillions != nil && effectiveLimits.StressVaRMillions != 0 {
		varUtilization := *snapshot.PortfolioVaRMillions / effectiveLimits.StressVaRMillions
		snapshot.VaRLimitUtilization = finiteOrNil(varUtilization)
	}

	snapshot.RiskAlerts = deriveAlerts(snapshot, effectiveLimits)
	return snapshot
}

// deriveAlerts evaluates the alerting rules against the adjusted limits.
// Each rule triggers independently; the scenario rule stops at the first
// breaching outcome.
func deriveAlerts(snapshot *Snapshot, limits Limits) []string {
	alerts := []string{}

	if snapshot.PositionUtilization != nil {
		switch {
		case *snapshot.PositionUtilization > 1.0:
			alerts = append(alerts, AlertPositionLimitExceeded)
		case *snapshot.PositionUtilization >= 0.9:
			alerts = append(alerts, AlertPositionLimitWarning)
		}
	}

	if snapshot.DrawdownAlert {
		alerts = append(alerts, AlertDrawdownLimitBreached)
	}

	if snapshot.VaRLimitUtilization != nil {
		switch {
		case *snapshot.VaRLimitUtilization > 1.0:
			alerts = append(alerts, AlertVaRLimitExceeded)
		case *snapshot.VaRLimitUtilization >= 0.8:
			alerts = append(alerts, AlertVaRLimitWarning)
		}
	}

	for _, outcome := range snapshot.ScenarioOutcomes {
		if outcome.ProjectedPnLMillions != nil && *outcome.ProjectedPnLMillions < -limits.StressVaRMillions {
			alerts = append(alerts, AlertScenarioLossExceedsLimit)
			break
		}
	}

	return alerts
}

// computeCrossAssetCorrelations calculates the latest rolling correlation
// against each configured benchmark, skipping targets whose series are
// missing or lack sufficient aligned observations.
func computeCrossAssetCorrelations(
	base []float64,
	benchmarks map[string]market.Series,
	targets []CorrelationTarget,
	window int,
) []CorrelationDiagnostic {
	diagnostics := []CorrelationDiagnostic{}
	if len(base) == 0 || len(targets) == 0 {
		return diagnostics
	}

	for _, target := range targets {
		peer, ok := benchmarks[target.Symbol]
		if !ok || peer.Empty() {
			continue
		}

		effectiveWindow := max(2, window)
		alignedBase, alignedPeer := riskmath.AlignPairs(base, peer.Prices)
		if len(alignedBase) == 0 {
			continue
		}

		corr, err := riskmath.RollingCorrelation(alignedBase, alignedPeer, effectiveWindow)
		if err != nil {
			log.Warn().Err(err).Str("symbol", target.Symbol).Msg("Correlation computation failed, skipping target")
			continue
		}

		value, ok := lastFinite(corr)
		if !ok {
			continue
		}

		diagnostics = append(diagnostics, CorrelationDiagnostic{
			Symbol:       target.Symbol,
			Label:        target.Label,
			Window:       effectiveWindow,
			Value:        value,
			Observations: len(alignedBase),
		})
	}

	return diagnostics
}

// lastFinite returns the most recent non-NaN value of a series.
func lastFinite(values []float64) (float64, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i], true
		}
	}
	return 0, false
}
