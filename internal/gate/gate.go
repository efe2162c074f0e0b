// Package gate enforces the desk's hard risk limits against a final,
// already-negotiated trade plan. It is the last deterministic authority
// before execution: every check runs, all violations are collected, and a
// breached report vetoes the plan regardless of any upstream approval.
package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aurumdesk/riskgate/internal/metrics"
	"github.com/aurumdesk/riskgate/internal/plan"
	"github.com/aurumdesk/riskgate/internal/risk"
)

// Violation codes, one per hard check.
const (
	CodePositionUtilization = "POSITION_UTILIZATION"
	CodeSingleOrderExposure = "SINGLE_ORDER_EXPOSURE"
	CodeStopLossMissing     = "STOP_LOSS_MISSING"
	CodeStressLossLimit     = "STRESS_LOSS_LIMIT"
	CodeDailyDrawdown       = "DAILY_DRAWDOWN"
	CodeRiskAlert           = "RISK_ALERT"
	CodeCorrelationLimit    = "CORRELATION_LIMIT"
)

// fatalAlerts are the snapshot alert codes that block execution on their
// own; warning-level alerts pass through the gate.
var fatalAlerts = map[string]struct{}{
	risk.AlertPositionLimitExceeded:    {},
	risk.AlertDrawdownLimitBreached:    {},
	risk.AlertVaRLimitExceeded:         {},
	risk.AlertScenarioLossExceedsLimit: {},
}

// Settings configures the hard gate. Pointer fields distinguish "not
// configured" from an explicit zero; unset limits resolve through the
// fallback fields the same way the desk's soft limits cascade.
type Settings struct {
	Enabled                bool     `mapstructure:"enabled" json:"enabled"`
	MaxPositionUtilization *float64 `mapstructure:"max_position_utilization" json:"max_position_utilization"`
	MaxSingleOrderOz       *float64 `mapstructure:"max_single_order_oz" json:"max_single_order_oz"`
	RequireStopLoss        bool     `mapstructure:"require_stop_loss" json:"require_stop_loss"`
	MaxStressLossMillions  *float64 `mapstructure:"max_stress_loss_millions" json:"max_stress_loss_millions"`
	CorrelationThreshold   *float64 `mapstructure:"correlation_threshold" json:"correlation_threshold"`

	// Fallbacks for unset hard limits.
	ComplianceMaxSingleOrderOz float64 `mapstructure:"-" json:"-"`
	MaxPositionOz              float64 `mapstructure:"-" json:"-"`
	StressVaRMillions          float64 `mapstructure:"-" json:"-"`
}

// utilizationLimit resolves the position utilization ceiling, defaulting
// to 100% of the desk limit.
func (s Settings) utilizationLimit() float64 {
	if s.MaxPositionUtilization != nil {
		return *s.MaxPositionUtilization
	}
	return 1.0
}

// singleOrderLimit resolves the per-ticket ceiling, cascading through the
// compliance single-order limit and finally the desk position limit.
func (s Settings) singleOrderLimit() float64 {
	if s.MaxSingleOrderOz != nil {
		return *s.MaxSingleOrderOz
	}
	if s.ComplianceMaxSingleOrderOz != 0 {
		return s.ComplianceMaxSingleOrderOz
	}
	return s.MaxPositionOz
}

// stressLossLimit resolves the stress loss ceiling, defaulting to the
// desk's stress VaR limit.
func (s Settings) stressLossLimit() float64 {
	if s.MaxStressLossMillions != nil {
		return *s.MaxStressLossMillions
	}
	return s.StressVaRMillions
}

// Violation describes one breached hard limit.
type Violation struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Metric  *float64       `json:"metric,omitempty"`
	Limit   *float64       `json:"limit,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Report is the gate's evaluation outcome. EvaluatedMetrics records every
// input the checks considered, including absent ones, so a blocked plan
// can be audited without re-running the gate.
type Report struct {
	Breached         bool           `json:"breached"`
	Violations       []Violation    `json:"violations"`
	EvaluatedMetrics map[string]any `json:"evaluated_metrics"`
}

// Summary renders the violations as a single line for logs and errors.
func (r *Report) Summary() string {
	if len(r.Violations) == 0 {
		return "No hard risk breaches detected."
	}
	parts := make([]string, 0, len(r.Violations))
	for _, violation := range r.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", violation.Code, violation.Message))
	}
	return strings.Join(parts, "; ")
}

// BreachError is returned when the gate blocks execution. It carries the
// full report and the workflow result that was vetoed, so callers can
// audit what would have executed.
type BreachError struct {
	Report        *Report
	PartialResult map[string]any
}

func (e *BreachError) Error() string {
	return "hard risk gate breached: " + e.Report.Summary()
}

// Enforce evaluates the final workflow response and the pre-computed risk
// snapshot against the hard limits. All checks run; violations accumulate
// rather than short-circuit. snapshot may be nil, in which case the
// snapshot-derived checks are skipped as unevaluable. Enforce is pure
// over its inputs and safe to call repeatedly.
func Enforce(response map[string]any, snapshot *risk.Snapshot, settings Settings) *Report {
	if !settings.Enabled {
		return &Report{Violations: []Violation{}, EvaluatedMetrics: map[string]any{}}
	}

	start := time.Now()
	violations := []Violation{}
	evaluated := map[string]any{}

	riskMetrics := plan.ExtractRiskMetrics(response)
	orders := plan.CollectOrders(response)

	// Position utilization: the plan's own sign-off number wins, the
	// snapshot fills in when the plan omits it.
	utilization := riskMetrics.PositionUtilization
	if utilization == nil && snapshot != nil {
		utilization = snapshot.PositionUtilization
	}
	utilizationLimit := settings.utilizationLimit()
	evaluated["position_utilization"] = utilization
	evaluated["position_utilization_limit"] = utilizationLimit

	if utilization != nil && *utilization > utilizationLimit {
		violations = append(violations, Violation{
			Code:    CodePositionUtilization,
			Message: "Proposed plan exceeds hard position utilization limit",
			Metric:  utilization,
			Limit:   &utilizationLimit,
		})
	}

	// Single order sizing.
	largestOrder := plan.LargestExposure(orders)
	singleOrderLimit := settings.singleOrderLimit()
	evaluated["largest_order_oz"] = largestOrder
	evaluated["single_order_limit_oz"] = singleOrderLimit

	if largestOrder != nil && *largestOrder > singleOrderLimit {
		violations = append(violations, Violation{
			Code:    CodeSingleOrderExposure,
			Message: "Largest ticket size exceeds hard limit",
			Metric:  largestOrder,
			Limit:   &singleOrderLimit,
		})
	}

	// Stop-loss coverage.
	hasStopProtection := plan.HasStopProtection(orders)
	evaluated["has_stop_protection"] = hasStopProtection
	if settings.RequireStopLoss && !hasStopProtection {
		violations = append(violations, Violation{
			Code:    CodeStopLossMissing,
			Message: "No stop-loss protection detected for execution orders",
			Details: map[string]any{"orders_checked": len(orders)},
		})
	}

	// Stress loss against the configured ceiling. Only losses count;
	// a positive worst case never blocks.
	stressLoss := riskMetrics.StressTestWorstLossMillions
	stressLimit := settings.stressLossLimit()
	evaluated["stress_test_worst_loss_millions"] = stressLoss
	evaluated["stress_loss_limit_millions"] = stressLimit

	if stressLoss != nil && *stressLoss < 0 && -*stressLoss > stressLimit {
		magnitude := -*stressLoss
		violations = append(violations, Violation{
			Code:    CodeStressLossLimit,
			Message: "Stress scenario loss exceeds configured maximum",
			Metric:  &magnitude,
			Limit:   &stressLimit,
		})
	}

	// Daily drawdown floor from the snapshot.
	var pnlToday, drawdownFloor *float64
	if snapshot != nil {
		value := snapshot.PnLTodayMillions
		pnlToday = &value
		drawdownFloor = snapshot.DrawdownThresholdMillions
	}
	evaluated["pnl_today_millions"] = pnlToday
	evaluated["drawdown_threshold_millions"] = drawdownFloor

	if pnlToday != nil && drawdownFloor != nil && *pnlToday <= *drawdownFloor {
		violations = append(violations, Violation{
			Code:    CodeDailyDrawdown,
			Message: "Daily PnL breaches drawdown floor",
			Metric:  pnlToday,
			Limit:   drawdownFloor,
		})
	}

	// Fatal alerts already raised by the snapshot build.
	blocking := []string{}
	if snapshot != nil {
		for _, alert := range snapshot.RiskAlerts {
			if _, fatal := fatalAlerts[alert]; fatal {
				blocking = append(blocking, alert)
			}
		}
	}
	evaluated["blocking_alerts"] = blocking
	for _, alert := range blocking {
		violations = append(violations, Violation{
			Code:    CodeRiskAlert,
			Message: fmt.Sprintf("Underlying risk snapshot flagged '%s'", alert),
		})
	}

	// Cross-asset correlation ceiling; skipped when no threshold is set.
	evaluated["correlation_threshold"] = settings.CorrelationThreshold
	breachedPairs := []map[string]any{}
	if settings.CorrelationThreshold != nil && snapshot != nil {
		threshold := *settings.CorrelationThreshold
		for _, diagnostic := range snapshot.CrossAssetCorrelations {
			value := diagnostic.Value
			if value < 0 {
				value = -value
			}
			if value < threshold {
				continue
			}
			label := diagnostic.Label
			if label == "" {
				label = diagnostic.Symbol
			}
			breachedPairs = append(breachedPairs, map[string]any{
				"label": label,
				"value": diagnostic.Value,
			})
			metric := diagnostic.Value
			violations = append(violations, Violation{
				Code:    CodeCorrelationLimit,
				Message: fmt.Sprintf("Correlation %s %.2f exceeds threshold %.2f", label, diagnostic.Value, threshold),
				Metric:  &metric,
				Limit:   settings.CorrelationThreshold,
			})
		}
	}
	evaluated["correlation_breaches"] = breachedPairs

	report := &Report{
		Breached:         len(violations) > 0,
		Violations:       violations,
		EvaluatedMetrics: evaluated,
	}

	codes := make([]string, 0, len(violations))
	for _, violation := range violations {
		codes = append(codes, violation.Code)
		log.Error().
			Str("code", violation.Code).
			Str("message", violation.Message).
			Msg("Hard risk limit breached")
	}
	metrics.RecordGateOutcome(report.Breached, codes, time.Since(start).Seconds())

	return report
}
