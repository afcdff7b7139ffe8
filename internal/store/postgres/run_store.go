package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkorolev/statarb/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore backed by the given pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

const runSelectCols = `run_id, instrument_a, instrument_b, beta,
	window_bars, z_entry, z_exit, notional_per_leg, slippage_mode,
	total_trades, win_rate, average_pnl, pnl_std, sharpe, total_pnl,
	started_at, finished_at`

// Insert stores one completed backtest run. NaN summary statistics are
// persisted as NULL and come back as NaN on read.
func (s *RunStore) Insert(ctx context.Context, run domain.BacktestRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO backtest_runs (
			run_id, instrument_a, instrument_b, beta,
			window_bars, z_entry, z_exit, notional_per_leg, slippage_mode,
			total_trades, win_rate, average_pnl, pnl_std, sharpe, total_pnl,
			started_at, finished_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17
		)`,
		run.RunID, run.InstrumentA, run.InstrumentB, run.Beta,
		run.Window, run.ZEntry, run.ZExit, run.NotionalPerLeg, run.SlippageMode,
		run.Summary.TotalTrades,
		nullIfNaN(run.Summary.WinRate),
		nullIfNaN(run.Summary.AveragePnL),
		nullIfNaN(run.Summary.PnLStd),
		nullIfNaN(run.Summary.Sharpe),
		run.Summary.TotalPnL,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.RunID, err)
	}
	return nil
}

// GetByID returns one run record, or domain.ErrNotFound.
func (s *RunStore) GetByID(ctx context.Context, runID string) (domain.BacktestRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runSelectCols+` FROM backtest_runs WHERE run_id = $1`, runID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BacktestRun{}, fmt.Errorf("postgres: run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("postgres: get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRecent returns the most recently finished runs.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]domain.BacktestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+runSelectCols+` FROM backtest_runs ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.BacktestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (domain.BacktestRun, error) {
	var run domain.BacktestRun
	var winRate, avgPnL, pnlStd, sharpe *float64
	err := row.Scan(
		&run.RunID, &run.InstrumentA, &run.InstrumentB, &run.Beta,
		&run.Window, &run.ZEntry, &run.ZExit, &run.NotionalPerLeg, &run.SlippageMode,
		&run.Summary.TotalTrades, &winRate, &avgPnL, &pnlStd, &sharpe,
		&run.Summary.TotalPnL,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return domain.BacktestRun{}, err
	}
	run.Summary.WinRate = nanIfNull(winRate)
	run.Summary.AveragePnL = nanIfNull(avgPnL)
	run.Summary.PnLStd = nanIfNull(pnlStd)
	run.Summary.Sharpe = nanIfNull(sharpe)
	return run, nil
}
