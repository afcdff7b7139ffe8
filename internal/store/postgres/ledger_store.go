package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkorolev/statarb/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// InsertBatch stores the completed trades of one backtest run.
func (s *LedgerStore) InsertBatch(ctx context.Context, runID string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trades (
			run_id, entry_timestamp, exit_timestamp, direction,
			entry_price_a, entry_price_b, exit_price_a, exit_price_b,
			qty_a, qty_b, notional_per_leg, realized_pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, t := range trades {
		batch.Queue(query,
			runID, t.EntryTimestamp, t.ExitTimestamp, string(t.Direction),
			t.EntryPriceA, t.EntryPriceB, t.ExitPriceA, t.ExitPriceB,
			t.QtyA, t.QtyB, t.NotionalPerLeg, t.RealizedPnL,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByRun returns the trades of one run in exit order.
func (s *LedgerStore) ListByRun(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entry_timestamp, exit_timestamp, direction,
			entry_price_a, entry_price_b, exit_price_a, exit_price_b,
			qty_a, qty_b, notional_per_leg, realized_pnl
		FROM trades
		WHERE run_id = $1
		ORDER BY exit_timestamp ASC, id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	return scanTradeRows(rows)
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction string
		if err := rows.Scan(
			&t.EntryTimestamp, &t.ExitTimestamp, &direction,
			&t.EntryPriceA, &t.EntryPriceB, &t.ExitPriceA, &t.ExitPriceB,
			&t.QtyA, &t.QtyB, &t.NotionalPerLeg, &t.RealizedPnL,
		); err != nil {
			return nil, err
		}
		t.Direction = domain.Direction(direction)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
