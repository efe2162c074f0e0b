package market

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardedProviderPassThrough(t *testing.T) {
	inner := &countingProvider{series: Series{Prices: []float64{1900, 1910}}}
	guarded := NewGuardedProvider(inner)

	series, err := guarded.CloseSeries(context.Background(), "XAUUSD", 30)

	require.NoError(t, err)
	assert.Len(t, series.Prices, 2)
	assert.Equal(t, 1, inner.calls)
}

func TestGuardedProviderPropagatesErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("store unavailable")}
	guarded := NewGuardedProvider(inner)

	_, err := guarded.CloseSeries(context.Background(), "XAUUSD", 30)

	assert.Error(t, err)
}

func TestGuardedProviderOpensAfterFailures(t *testing.T) {
	inner := &countingProvider{err: errors.New("store unavailable")}
	guarded := NewGuardedProvider(inner)
	ctx := context.Background()

	for i := 0; i < benchmarkMinRequests; i++ {
		_, err := guarded.CloseSeries(ctx, "XAUUSD", 30)
		assert.Error(t, err)
	}

	callsBeforeOpen := inner.calls

	// Breaker is open now: calls fail fast without reaching the store.
	_, err := guarded.CloseSeries(ctx, "XAUUSD", 30)
	assert.Error(t, err)
	assert.Equal(t, callsBeforeOpen, inner.calls)
}
