package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkorolev/statarb/internal/domain"
)

// CandidateStore implements domain.CandidateStore using PostgreSQL.
type CandidateStore struct {
	pool *pgxpool.Pool
}

// NewCandidateStore creates a new CandidateStore backed by the given pool.
func NewCandidateStore(pool *pgxpool.Pool) *CandidateStore {
	return &CandidateStore{pool: pool}
}

// InsertBatch stores a ranked candidate list for one screening run. The slice
// order is the ranking and is persisted as the rank column.
func (s *CandidateStore) InsertBatch(ctx context.Context, runID string, candidates []domain.PairCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO pair_candidates (
			run_id, instrument_a, instrument_b,
			correlation, beta, residual_std, p_value, overlap, rank
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, instrument_a, instrument_b) DO NOTHING`

	for rank, c := range candidates {
		batch.Queue(query,
			runID, c.InstrumentA, c.InstrumentB,
			c.Correlation, c.Beta, c.ResidualStd, c.PValue, c.Overlap, rank,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range candidates {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert candidate batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByRun returns the candidates of one screening run in rank order.
func (s *CandidateStore) ListByRun(ctx context.Context, runID string) ([]domain.PairCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT instrument_a, instrument_b, correlation, beta, residual_std, p_value, overlap
		FROM pair_candidates
		WHERE run_id = $1
		ORDER BY rank ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list candidates for run %s: %w", runID, err)
	}
	defer rows.Close()

	var candidates []domain.PairCandidate
	for rows.Next() {
		var c domain.PairCandidate
		if err := rows.Scan(
			&c.InstrumentA, &c.InstrumentB,
			&c.Correlation, &c.Beta, &c.ResidualStd, &c.PValue, &c.Overlap,
		); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
