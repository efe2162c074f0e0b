package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPortfolioStore(mock)

	avgCost := 1885.0
	updatedAt := time.Now().Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("XAUUSD").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT net_oz, average_cost").
		WithArgs("XAUUSD").
		WillReturnRows(pgxmock.NewRows([]string{"net_oz", "average_cost", "realized_pnl_millions", "unrealized_pnl_millions", "updated_at"}).
			AddRow(1200.0, &avgCost, 0.3, -0.1, &updatedAt))
	mock.ExpectCommit()

	loaded, err := store.Load(context.Background(), "XAUUSD")

	require.NoError(t, err)
	assert.Equal(t, "XAUUSD", loaded.Position.Symbol)
	assert.Equal(t, 1200.0, loaded.Position.NetOz)
	require.NotNil(t, loaded.Position.AverageCost)
	assert.Equal(t, 1885.0, *loaded.Position.AverageCost)
	assert.InDelta(t, 0.2, loaded.TotalPnLMillions(), 1e-9)
	require.NotNil(t, loaded.LastUpdated)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPortfolioStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("XAUUSD").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT net_oz, average_cost").
		WithArgs("XAUUSD").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	loaded, err := store.Load(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, DefaultState("XAUUSD"), loaded)
	assert.Equal(t, 0.0, loaded.Position.NetOz)
	assert.Nil(t, loaded.Position.AverageCost)
	assert.Nil(t, loaded.LastUpdated)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPortfolioStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("XAUUSD").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT net_oz, average_cost").
		WithArgs("XAUUSD").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err = store.Load(context.Background(), "XAUUSD")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load portfolio state")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPortfolioStore(mock)

	avgCost := 1890.0
	stored := State{
		Position: Position{Symbol: "XAUUSD", NetOz: 1500, AverageCost: &avgCost},
		PnL:      PnL{RealizedMillions: 0.4, UnrealizedMillions: -0.2},
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("XAUUSD").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO portfolio_state").
		WithArgs("XAUUSD", 1500.0, &avgCost, 0.4, -0.2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), stored))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveExecError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPortfolioStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("XAUUSD").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO portfolio_state").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err = store.Save(context.Background(), DefaultState("XAUUSD"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save portfolio state")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultState(t *testing.T) {
	flat := DefaultState("")

	assert.Equal(t, "XAUUSD", flat.Position.Symbol)
	assert.Equal(t, 0.0, flat.Position.NetOz)
	assert.Equal(t, 0.0, flat.TotalPnLMillions())
}
