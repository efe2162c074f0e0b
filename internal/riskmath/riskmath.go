// Package riskmath provides pure numeric primitives for risk evaluation:
// rolling correlation, historical Value-at-Risk and deterministic scenario
// projection. Functions here are stateless and perform no I/O; callers are
// responsible for converting NaN sentinels into null/omitted fields before
// anything is serialized.
package riskmath

import (
	"fmt"
	"math"
	"slices"
)

// ScenarioShock is a named deterministic percentage shock applied to the
// latest price level during scenario analysis.
type ScenarioShock struct {
	Label     string  `json:"label" yaml:"label" mapstructure:"label"`
	PctChange float64 `json:"pct_change" yaml:"pct_change" mapstructure:"pct_change"`
}

// ScenarioProjection pairs a shock label with the projected price level.
type ScenarioProjection struct {
	Label          string
	ProjectedLevel float64
}

// AlignPairs truncates both series to their common length and drops every
// position where either value is NaN. The surviving pairs keep their
// relative order.
func AlignPairs(seriesA, seriesB []float64) ([]float64, []float64) {
	n := min(len(seriesA), len(seriesB))
	alignedA := make([]float64, 0, n)
	alignedB := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(seriesA[i]) || math.IsNaN(seriesB[i]) {
			continue
		}
		alignedA = append(alignedA, seriesA[i])
		alignedB = append(alignedB, seriesB[i])
	}
	return alignedA, alignedB
}

// RollingCorrelation computes the trailing-window Pearson correlation of two
// series after aligning them pairwise. Positions without a full window, or
// where either window has zero variance, hold NaN. An empty slice (not an
// error) is returned when no aligned observations exist.
func RollingCorrelation(seriesA, seriesB []float64, window int) ([]float64, error) {
	if window <= 1 {
		return nil, fmt.Errorf("window must be greater than 1, got %d", window)
	}

	alignedA, alignedB := AlignPairs(seriesA, seriesB)
	if len(alignedA) == 0 {
		return []float64{}, nil
	}

	result := make([]float64, len(alignedA))
	for i := range result {
		if i < window-1 {
			result[i] = math.NaN()
			continue
		}
		result[i] = pearson(alignedA[i-window+1:i+1], alignedB[i-window+1:i+1])
	}
	return result, nil
}

// pearson computes the Pearson correlation of two equal-length slices.
// Returns NaN for degenerate (zero variance) windows.
func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA := sumA / n
	meanB := sumB / n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varA*varB)
}

// HistoricalVaR computes the empirical (1-confidence)-quantile of the return
// distribution using linear interpolation between order statistics. The
// result is signed: a negative value represents a loss. Empty input yields
// NaN rather than an error so callers can degrade the metric to null.
func HistoricalVaR(returns []float64, confidence float64) (float64, error) {
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("confidence must be between 0 and 1, got %v", confidence)
	}

	clean := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return math.NaN(), nil
	}

	slices.Sort(clean)
	return quantile(clean, 1-confidence), nil
}

// quantile interpolates linearly over a sorted sample, matching the default
// percentile convention of common numeric libraries.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// ApplyScenario projects the last value of levels through every shock,
// preserving shock order. An empty levels slice yields an empty result.
func ApplyScenario(levels []float64, shocks []ScenarioShock) []ScenarioProjection {
	if len(levels) == 0 {
		return []ScenarioProjection{}
	}
	latest := levels[len(levels)-1]
	projections := make([]ScenarioProjection, 0, len(shocks))
	for _, shock := range shocks {
		projections = append(projections, ScenarioProjection{
			Label:          shock.Label,
			ProjectedLevel: latest * (1 + shock.PctChange),
		})
	}
	return projections
}

// SampleStdDev calculates the sample standard deviation (Bessel's
// correction). Fewer than two values yields NaN.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}
