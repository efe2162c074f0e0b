// Package state persists per-symbol portfolio position and PnL. Reads and
// writes for a symbol are serialized through a transaction-scoped advisory
// lock so the gate never evaluates against a position that is mid-update.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DefaultSymbol is the desk's primary instrument.
const DefaultSymbol = "XAUUSD"

// Position is the desk's net holding in one instrument.
type Position struct {
	Symbol      string   `json:"symbol"`
	NetOz       float64  `json:"net_oz"`
	AverageCost *float64 `json:"average_cost"`
}

// PnL is the day's profit and loss split.
type PnL struct {
	RealizedMillions   float64 `json:"realized_millions"`
	UnrealizedMillions float64 `json:"unrealized_millions"`
}

// State is the persisted portfolio state for one symbol.
type State struct {
	Position    Position   `json:"positions"`
	PnL         PnL        `json:"pnl"`
	LastUpdated *time.Time `json:"last_updated"`
}

// TotalPnLMillions is the combined realized and unrealized PnL, the figure
// the drawdown checks evaluate.
func (s State) TotalPnLMillions() float64 {
	return s.PnL.RealizedMillions + s.PnL.UnrealizedMillions
}

// DefaultState is the flat-book state used when a symbol has no stored row.
func DefaultState(symbol string) State {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return State{Position: Position{Symbol: symbol}}
}

// DBPool is the interface for database operations, satisfied by both
// pgxpool.Pool and mocks in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PortfolioStore loads and saves portfolio state rows.
type PortfolioStore struct {
	db DBPool
}

// NewPortfolioStore creates a store over a database pool.
func NewPortfolioStore(db DBPool) *PortfolioStore {
	return &PortfolioStore{db: db}
}

// NewPortfolioStoreWithPool creates a store from a pgxpool.Pool.
func NewPortfolioStoreWithPool(pool *pgxpool.Pool) *PortfolioStore {
	return &PortfolioStore{db: pool}
}

// Load reads the state for a symbol. A missing row yields the flat-book
// default, not an error. The read happens under the symbol's advisory lock
// so it cannot interleave with a concurrent Save.
func (s *PortfolioStore) Load(ctx context.Context, symbol string) (State, error) {
	if symbol == "" {
		symbol = DefaultSymbol
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return State{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockSymbol(ctx, tx, symbol); err != nil {
		return State{}, err
	}

	query := `
		SELECT net_oz, average_cost, realized_pnl_millions, unrealized_pnl_millions, updated_at
		FROM portfolio_state
		WHERE symbol = $1
	`

	loaded := DefaultState(symbol)
	var updatedAt *time.Time
	err = tx.QueryRow(ctx, query, symbol).Scan(
		&loaded.Position.NetOz,
		&loaded.Position.AverageCost,
		&loaded.PnL.RealizedMillions,
		&loaded.PnL.UnrealizedMillions,
		&updatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			log.Info().Str("symbol", symbol).Msg("No stored portfolio state, using flat-book defaults")
			if err := tx.Commit(ctx); err != nil {
				return State{}, fmt.Errorf("failed to commit transaction: %w", err)
			}
			return DefaultState(symbol), nil
		}
		return State{}, fmt.Errorf("failed to load portfolio state: %w", err)
	}
	loaded.LastUpdated = updatedAt

	if err := tx.Commit(ctx); err != nil {
		return State{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return loaded, nil
}

// Save upserts the state row for its symbol under the symbol's advisory
// lock.
func (s *PortfolioStore) Save(ctx context.Context, stored State) error {
	symbol := stored.Position.Symbol
	if symbol == "" {
		symbol = DefaultSymbol
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockSymbol(ctx, tx, symbol); err != nil {
		return err
	}

	query := `
		INSERT INTO portfolio_state (symbol, net_oz, average_cost, realized_pnl_millions, unrealized_pnl_millions, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			net_oz = EXCLUDED.net_oz,
			average_cost = EXCLUDED.average_cost,
			realized_pnl_millions = EXCLUDED.realized_pnl_millions,
			unrealized_pnl_millions = EXCLUDED.unrealized_pnl_millions,
			updated_at = NOW()
	`

	_, err = tx.Exec(ctx, query,
		symbol,
		stored.Position.NetOz,
		stored.Position.AverageCost,
		stored.PnL.RealizedMillions,
		stored.PnL.UnrealizedMillions,
	)
	if err != nil {
		return fmt.Errorf("failed to save portfolio state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debug().
		Str("symbol", symbol).
		Float64("net_oz", stored.Position.NetOz).
		Msg("Portfolio state saved")
	return nil
}

// lockSymbol takes the transaction-scoped advisory lock for a symbol. The
// lock releases automatically at commit or rollback.
func lockSymbol(ctx context.Context, tx pgx.Tx, symbol string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", symbol); err != nil {
		return fmt.Errorf("failed to acquire symbol lock: %w", err)
	}
	return nil
}
