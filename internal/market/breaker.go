package market

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/aurumdesk/riskgate/internal/metrics"
)

// Benchmark breaker settings. Benchmarks are advisory inputs, so the
// breaker trips quickly and recovers fast: a flapping history source
// degrades to skipped correlation targets instead of repeated slow calls.
const (
	benchmarkMinRequests     = 5
	benchmarkFailureRatio    = 0.6
	benchmarkOpenTimeout     = 15 * time.Second
	benchmarkHalfOpenMaxReqs = 3
	benchmarkCountInterval   = 10 * time.Second
)

// GuardedProvider wraps a Provider with a circuit breaker.
type GuardedProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedProvider creates a circuit-breaker-guarded provider.
func NewGuardedProvider(inner Provider) *GuardedProvider {
	settings := gobreaker.Settings{
		Name:        "benchmark-history",
		MaxRequests: benchmarkHalfOpenMaxReqs,
		Interval:    benchmarkCountInterval,
		Timeout:     benchmarkOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= benchmarkMinRequests && failureRatio >= benchmarkFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Benchmark circuit breaker state changed")
			metrics.SetBreakerState(name, to.String())
		},
	}

	return &GuardedProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// CloseSeries executes the fetch through the breaker. An open breaker
// surfaces as an error, which snapshot assembly treats as a skipped target.
func (p *GuardedProvider) CloseSeries(ctx context.Context, symbol string, days int) (Series, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.inner.CloseSeries(ctx, symbol, days)
	})
	if err != nil {
		metrics.RecordBenchmarkFetch(symbol, false)
		return Series{}, err
	}
	metrics.RecordBenchmarkFetch(symbol, true)
	return result.(Series), nil
}
