// Package market supplies the price-history collaborators consumed by the
// risk snapshot builder: a TimescaleDB-backed close-series store, an
// optional Redis cache and a circuit-breaker wrapper for benchmark fetches.
package market

import "time"

// Series holds a close-price series in ascending time order.
type Series struct {
	Prices []float64   `json:"prices"`
	Times  []time.Time `json:"times,omitempty"`
}

// Empty reports whether the series holds no observations.
func (s Series) Empty() bool {
	return len(s.Prices) == 0
}

// Latest returns the most recent close. Callers must check Empty first.
func (s Series) Latest() float64 {
	return s.Prices[len(s.Prices)-1]
}

// Returns computes daily percentage returns, skipping steps where the
// previous close is non-positive.
func (s Series) Returns() []float64 {
	if len(s.Prices) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(s.Prices)-1)
	for i := 1; i < len(s.Prices); i++ {
		if s.Prices[i-1] > 0 {
			returns = append(returns, (s.Prices[i]-s.Prices[i-1])/s.Prices[i-1])
		}
	}
	return returns
}
