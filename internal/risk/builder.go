package risk

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/aurumdesk/riskgate/internal/market"
	"github.com/aurumdesk/riskgate/internal/metrics"
	"github.com/aurumdesk/riskgate/internal/riskmath"
)

// benchmarkFetchParallelism bounds concurrent benchmark series fetches.
const benchmarkFetchParallelism = 3

// Builder assembles snapshots, fetching benchmark series through a
// Provider when the caller did not supply them. Construct once per config
// and share; Build is safe for concurrent use.
type Builder struct {
	provider market.Provider
	targets  []CorrelationTarget
	shocks   []riskmath.ScenarioShock
	window   int
}

// NewBuilder creates a snapshot builder. provider may be nil, in which
// case correlation diagnostics are only computed from caller-supplied
// benchmark series.
func NewBuilder(provider market.Provider, targets []CorrelationTarget, shocks []riskmath.ScenarioShock, window int) *Builder {
	if targets == nil {
		targets = DefaultCorrelationTargets
	}
	if shocks == nil {
		shocks = DefaultScenarioShocks
	}
	if window < 2 {
		window = 20
	}
	return &Builder{provider: provider, targets: targets, shocks: shocks, window: window}
}

// Build computes a snapshot, assembling benchmark series first when
// needed. Individual benchmark fetch failures are logged and that target
// is simply omitted; they are never fatal to the snapshot.
func (b *Builder) Build(ctx context.Context, input SnapshotInput) *Snapshot {
	start := time.Now()

	if input.CorrelationTargets == nil {
		input.CorrelationTargets = b.targets
	}
	if input.ScenarioShocks == nil {
		input.ScenarioShocks = b.shocks
	}
	if input.CorrelationWindow < 2 {
		input.CorrelationWindow = b.window
	}

	if input.Benchmarks == nil && b.provider != nil && !input.History.Empty() {
		lookback := max(
			len(input.History.Prices)+input.CorrelationWindow,
			input.CorrelationWindow*3,
			60,
		)
		input.Benchmarks = b.fetchBenchmarks(ctx, input.CorrelationTargets, lookback)
	}

	snapshot := BuildSnapshot(input)

	metrics.RecordSnapshotBuild(time.Since(start).Seconds(), snapshot.RiskAlerts)
	log.Debug().
		Str("symbol", snapshot.Symbol).
		Int("scenarios", len(snapshot.ScenarioOutcomes)).
		Int("correlations", len(snapshot.CrossAssetCorrelations)).
		Strs("risk_alerts", snapshot.RiskAlerts).
		Msg("Risk snapshot built")

	return snapshot
}

// fetchBenchmarks downloads benchmark closes concurrently with bounded
// parallelism. Failures are collected as omissions, not errors.
func (b *Builder) fetchBenchmarks(ctx context.Context, targets []CorrelationTarget, lookbackDays int) map[string]market.Series {
	benchmarks := make(map[string]market.Series, len(targets))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(benchmarkFetchParallelism)

	for _, target := range targets {
		group.Go(func() error {
			series, err := b.provider.CloseSeries(groupCtx, target.Symbol, lookbackDays)
			if err != nil {
				log.Warn().Err(err).Str("symbol", target.Symbol).Msg("Benchmark series fetch failed, target omitted")
				return nil
			}
			if series.Empty() {
				log.Debug().Str("symbol", target.Symbol).Msg("Benchmark series empty, target omitted")
				return nil
			}
			mu.Lock()
			benchmarks[target.Symbol] = series
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait is for completion only.
	_ = group.Wait()
	return benchmarks
}
