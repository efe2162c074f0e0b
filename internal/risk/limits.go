// Package risk builds the per-cycle risk snapshot for the desk: position
// utilization, realized volatility, historical VaR, scenario projections,
// cross-asset correlations and coded risk alerts, evaluated against
// configuration limits optionally scaled by news sentiment.
package risk

import (
	"strings"

	"github.com/aurumdesk/riskgate/internal/riskmath"
)

// Limits are the key risk guardrails supplied by configuration. Two
// variants coexist per snapshot: the base limits from configuration and
// the effective limits after the news-sentiment adjustment. The adjusted
// variant is always derived, never persisted as authoritative.
type Limits struct {
	MaxPositionOz     float64 `json:"max_position_oz" mapstructure:"max_position_oz"`
	StressVaRMillions float64 `json:"stress_var_millions" mapstructure:"stress_var_millions"`
	DailyDrawdownPct  float64 `json:"daily_drawdown_pct" mapstructure:"daily_drawdown_pct"`
}

// CorrelationTarget configures one cross-asset correlation diagnostic.
type CorrelationTarget struct {
	Symbol string `json:"symbol" yaml:"symbol" mapstructure:"symbol"`
	Label  string `json:"label" yaml:"label" mapstructure:"label"`
	Window int    `json:"window" yaml:"window" mapstructure:"window"`
}

// DefaultCorrelationTargets are the desk's standard benchmarks.
var DefaultCorrelationTargets = []CorrelationTarget{
	{Symbol: "DX-Y.NYB", Label: "US Dollar Index (DXY)", Window: 20},
	{Symbol: "^GSPC", Label: "S&P 500 Index", Window: 20},
	{Symbol: "TLT", Label: "Long-Term Treasuries ETF", Window: 20},
}

// DefaultScenarioShocks are the desk's standard instantaneous price moves.
var DefaultScenarioShocks = []riskmath.ScenarioShock{
	{Label: "minus_2pct", PctChange: -0.02},
	{Label: "minus_1pct", PctChange: -0.01},
	{Label: "plus_1pct", PctChange: 0.01},
	{Label: "plus_2pct", PctChange: 0.02},
}

// NewsSnapshot is the sentiment payload supplied by the (external) news
// feed collaborator.
type NewsSnapshot struct {
	Score          float64 `json:"score"`
	Confidence     float64 `json:"confidence"`
	Classification string  `json:"classification"`
	ScoreTrend     float64 `json:"score_trend"`
}

// NewsAdjustment records how and why the limits were scaled, so downstream
// consumers can audit the adjustment. Advisory risk-appetite tuning, not a
// hard override.
type NewsAdjustment struct {
	Classification string  `json:"classification"`
	Score          float64 `json:"score"`
	Confidence     float64 `json:"confidence"`
	Trend          float64 `json:"trend"`
	Scale          float64 `json:"scale"`
}

// Bounds on the news-driven limit scale.
const (
	newsMinScale = 0.5
	newsMaxScale = 1.2

	// The drawdown percentage never tightens below this floor.
	drawdownPctFloor = 0.5
)

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// AdjustLimitsWithNews scales the risk limits based on headline-driven
// sentiment. Higher confidence tightens limits, while a strongly bullish
// (bearish) bias can marginally expand (tighten) exposures within bounds.
func AdjustLimitsWithNews(limits Limits, news NewsSnapshot) (Limits, NewsAdjustment) {
	classification := normalizeClassification(news.Classification)

	confidenceClamped := clamp(news.Confidence, 0, 2)
	scoreClamped := clamp(news.Score, -1, 1)
	trendClamped := clamp(news.ScoreTrend, -1, 1)

	directionalBias := 1.0 + (scoreClamped+0.3*trendClamped)*0.25
	switch classification {
	case "bearish":
		abs := scoreClamped
		if abs < 0 {
			abs = -abs
		}
		directionalBias -= 0.1 * (abs + 0.2*confidenceClamped)
	case "bullish":
		directionalBias += 0.1 * max(0.0, scoreClamped)
	}

	tightening := 1.0 - 0.25*confidenceClamped
	scale := clamp(directionalBias*tightening, newsMinScale, newsMaxScale)

	adjusted := Limits{
		MaxPositionOz:     limits.MaxPositionOz * scale,
		StressVaRMillions: limits.StressVaRMillions * scale,
		DailyDrawdownPct:  max(drawdownPctFloor, limits.DailyDrawdownPct*scale),
	}

	meta := NewsAdjustment{
		Classification: classification,
		Score:          news.Score,
		Confidence:     news.Confidence,
		Trend:          news.ScoreTrend,
		Scale:          scale,
	}

	return adjusted, meta
}

func normalizeClassification(value string) string {
	if value == "" {
		return "neutral"
	}
	return strings.ToLower(value)
}
