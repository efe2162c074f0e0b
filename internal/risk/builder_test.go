package risk

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumdesk/riskgate/internal/market"
)

type stubProvider struct {
	mu       sync.Mutex
	series   map[string]market.Series
	err      map[string]error
	requests []string
	lookback int
}

func (p *stubProvider) CloseSeries(_ context.Context, symbol string, days int) (market.Series, error) {
	p.mu.Lock()
	p.requests = append(p.requests, symbol)
	p.lookback = days
	p.mu.Unlock()
	if err := p.err[symbol]; err != nil {
		return market.Series{}, err
	}
	return p.series[symbol], nil
}

func TestBuilderFetchesBenchmarks(t *testing.T) {
	provider := &stubProvider{
		series: map[string]market.Series{
			"^GSPC": risingSeries(30, 100, 1),
		},
		err: map[string]error{
			"DX-Y.NYB": errors.New("upstream unavailable"),
		},
	}
	targets := []CorrelationTarget{
		{Symbol: "^GSPC", Label: "S&P 500 Index", Window: 10},
		{Symbol: "DX-Y.NYB", Label: "US Dollar Index", Window: 10},
		{Symbol: "TLT", Label: "Long-Term Treasuries ETF", Window: 10},
	}

	builder := NewBuilder(provider, targets, nil, 10)
	snapshot := builder.Build(context.Background(), SnapshotInput{
		Symbol:            "XAUUSD",
		History:           risingSeries(30, 1900, 2),
		Limits:            baseLimits(),
		CurrentPositionOz: 100,
	})

	require.NotNil(t, snapshot)
	assert.Len(t, provider.requests, 3)

	// The failing target and the one with no data are omitted, not fatal.
	require.Len(t, snapshot.CrossAssetCorrelations, 1)
	assert.Equal(t, "^GSPC", snapshot.CrossAssetCorrelations[0].Symbol)
}

func TestBuilderLookbackCoversHistoryAndWindow(t *testing.T) {
	provider := &stubProvider{}
	builder := NewBuilder(provider, DefaultCorrelationTargets, nil, 20)

	builder.Build(context.Background(), SnapshotInput{
		Symbol:  "XAUUSD",
		History: risingSeries(100, 1900, 1),
		Limits:  baseLimits(),
	})
	assert.Equal(t, 120, provider.lookback)

	// Short histories still request a floor of 60 days.
	builder.Build(context.Background(), SnapshotInput{
		Symbol:  "XAUUSD",
		History: risingSeries(5, 1900, 1),
		Limits:  baseLimits(),
	})
	assert.Equal(t, 60, provider.lookback)
}

func TestBuilderSkipsFetchWhenBenchmarksSupplied(t *testing.T) {
	provider := &stubProvider{}
	builder := NewBuilder(provider, DefaultCorrelationTargets, nil, 10)

	builder.Build(context.Background(), SnapshotInput{
		Symbol:     "XAUUSD",
		History:    risingSeries(30, 1900, 1),
		Limits:     baseLimits(),
		Benchmarks: map[string]market.Series{},
	})

	assert.Empty(t, provider.requests)
}

func TestBuilderSkipsFetchWithEmptyHistory(t *testing.T) {
	provider := &stubProvider{}
	builder := NewBuilder(provider, DefaultCorrelationTargets, nil, 10)

	snapshot := builder.Build(context.Background(), SnapshotInput{
		Symbol: "XAUUSD",
		Limits: baseLimits(),
	})

	assert.Empty(t, provider.requests)
	assert.Empty(t, snapshot.CrossAssetCorrelations)
}

func TestBuilderNilProvider(t *testing.T) {
	builder := NewBuilder(nil, nil, nil, 0)

	snapshot := builder.Build(context.Background(), SnapshotInput{
		Symbol:  "XAUUSD",
		History: risingSeries(30, 1900, 1),
		Limits:  baseLimits(),
	})

	require.NotNil(t, snapshot)
	assert.Empty(t, snapshot.CrossAssetCorrelations)
}
