package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesReturns(t *testing.T) {
	series := Series{Prices: []float64{100, 110, 99}}

	returns := series.Returns()

	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)
}

func TestSeriesReturnsSkipsNonPositiveBase(t *testing.T) {
	series := Series{Prices: []float64{100, 0, 50, 55}}

	returns := series.Returns()

	// The step off a zero price is dropped, the rest survive.
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[1], 1e-9)
}

func TestSeriesEmptyAndLatest(t *testing.T) {
	assert.True(t, Series{}.Empty())

	series := Series{Prices: []float64{1900, 1925}}
	assert.False(t, series.Empty())
	assert.Equal(t, 1925.0, series.Latest())
}
