package market

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Provider abstracts a source of benchmark close series for correlation
// diagnostics. Implementations may be database-backed, cached or guarded by
// a circuit breaker.
type Provider interface {
	CloseSeries(ctx context.Context, symbol string, days int) (Series, error)
}

// PoolInterface defines the database pool operations the store needs.
type PoolInterface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// HistoryStore loads close-price history from the candlesticks hypertable.
type HistoryStore struct {
	pool     PoolInterface
	interval string
}

// NewHistoryStore creates a history store over a database pool. A nil pool
// is a configuration error surfaced on first use.
func NewHistoryStore(pool PoolInterface) *HistoryStore {
	return &HistoryStore{pool: pool, interval: "1d"}
}

// NewHistoryStoreWithPool creates a history store from a pgxpool.Pool.
func NewHistoryStoreWithPool(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool, interval: "1d"}
}

// LoadCloseSeries loads the close series for a symbol over a trailing
// window of days. An empty result is returned without error: missing price
// history is a defined input state for the snapshot builder, not a failure.
func (s *HistoryStore) LoadCloseSeries(ctx context.Context, symbol string, interval string, days int) (Series, error) {
	if s.pool == nil {
		return Series{}, fmt.Errorf("no database pool available")
	}

	query := `
		SELECT close, open_time
		FROM candlesticks
		WHERE symbol = $1
			AND interval = $2
			AND open_time >= NOW() - INTERVAL '1 day' * $3
		ORDER BY open_time ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, interval, days)
	if err != nil {
		return Series{}, fmt.Errorf("failed to query close series: %w", err)
	}
	defer rows.Close()

	var series Series
	for rows.Next() {
		var price float64
		var openTime time.Time
		if err := rows.Scan(&price, &openTime); err != nil {
			return Series{}, fmt.Errorf("failed to scan close row: %w", err)
		}
		series.Prices = append(series.Prices, price)
		series.Times = append(series.Times, openTime)
	}
	if err := rows.Err(); err != nil {
		return Series{}, fmt.Errorf("error iterating close rows: %w", err)
	}

	if series.Empty() {
		log.Warn().Str("symbol", symbol).Str("interval", interval).Msg("No close history found")
		return series, nil
	}

	log.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("data_points", len(series.Prices)).
		Msg("Close series loaded from database")

	return series, nil
}

// LatestClose returns the most recent close for a symbol.
func (s *HistoryStore) LatestClose(ctx context.Context, symbol string, interval string) (float64, error) {
	if s.pool == nil {
		return 0, fmt.Errorf("no database pool available")
	}

	query := `
		SELECT close
		FROM candlesticks
		WHERE symbol = $1
			AND interval = $2
		ORDER BY open_time DESC
		LIMIT 1
	`

	var price float64
	err := s.pool.QueryRow(ctx, query, symbol, interval).Scan(&price)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("no price data found for symbol %s with interval %s", symbol, interval)
		}
		return 0, fmt.Errorf("failed to get latest close: %w", err)
	}

	return price, nil
}

// CloseSeries implements Provider using the store's default daily interval.
func (s *HistoryStore) CloseSeries(ctx context.Context, symbol string, days int) (Series, error) {
	return s.LoadCloseSeries(ctx, symbol, s.interval, days)
}
