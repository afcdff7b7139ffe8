package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkorolev/statarb/internal/domain"
)

// QuoteStore implements domain.QuoteStore using PostgreSQL.
type QuoteStore struct {
	pool *pgxpool.Pool
}

// NewQuoteStore creates a new QuoteStore backed by the given connection pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

const quoteSelectCols = `timestamp, instrument, bid_usd, ask_usd, mid_usd, spread_usd`

func scanQuoteRows(rows pgx.Rows) ([]domain.Quote, error) {
	var quotes []domain.Quote
	for rows.Next() {
		var q domain.Quote
		if err := rows.Scan(
			&q.Timestamp, &q.Instrument,
			&q.Bid, &q.Ask, &q.Mid, &q.Spread,
		); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// InsertBatch inserts normalized quotes using pgx Batch. Re-inserting the
// same (instrument, timestamp) is a no-op via ON CONFLICT DO NOTHING, so
// re-running normalization is idempotent.
func (s *QuoteStore) InsertBatch(ctx context.Context, quotes []domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO quotes (timestamp, instrument, bid_usd, ask_usd, mid_usd, spread_usd)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instrument, timestamp) DO NOTHING`

	for _, q := range quotes {
		batch.Queue(query, q.Timestamp, q.Instrument, q.Bid, q.Ask, q.Mid, q.Spread)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range quotes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert quote batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByInstrument returns quotes for one instrument in timestamp order with
// optional time filtering and pagination.
func (s *QuoteStore) ListByInstrument(ctx context.Context, instrument string, opts domain.ListOpts) ([]domain.Quote, error) {
	query := `SELECT ` + quoteSelectCols + ` FROM quotes WHERE instrument = $1`
	args := []any{instrument}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY timestamp ASC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list quotes for %s: %w", instrument, err)
	}
	defer rows.Close()

	return scanQuoteRows(rows)
}

// Instruments returns the distinct instrument ids present in the quote table.
func (s *QuoteStore) Instruments(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT instrument FROM quotes ORDER BY instrument")
	if err != nil {
		return nil, fmt.Errorf("postgres: list instruments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the total number of quote rows.
func (s *QuoteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM quotes").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count quotes: %w", err)
	}
	return n, nil
}
