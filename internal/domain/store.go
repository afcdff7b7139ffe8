package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// QuoteStore persists the normalized quote table.
type QuoteStore interface {
	InsertBatch(ctx context.Context, quotes []Quote) error
	ListByInstrument(ctx context.Context, instrument string, opts ListOpts) ([]Quote, error)
	Instruments(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// CandidateStore persists screener output per screening run.
type CandidateStore interface {
	InsertBatch(ctx context.Context, runID string, candidates []PairCandidate) error
	ListByRun(ctx context.Context, runID string) ([]PairCandidate, error)
}

// LedgerStore persists the trade ledger of a backtest run.
type LedgerStore interface {
	InsertBatch(ctx context.Context, runID string, trades []Trade) error
	ListByRun(ctx context.Context, runID string) ([]Trade, error)
}

// RunStore persists backtest run records and their summaries.
type RunStore interface {
	Insert(ctx context.Context, run BacktestRun) error
	GetByID(ctx context.Context, runID string) (BacktestRun, error)
	ListRecent(ctx context.Context, limit int) ([]BacktestRun, error)
}

// CandidateCache caches the ranked candidate table so downstream consumers
// can read the latest screening result without hitting the database.
type CandidateCache interface {
	SetRanked(ctx context.Context, candidates []PairCandidate, ttl time.Duration) error
	GetRanked(ctx context.Context) ([]PairCandidate, error)
}

// RunBus publishes run lifecycle events (screen finished, backtest finished)
// for external reporting collaborators.
type RunBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads artifact objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver uploads a run's artifact files to cold storage.
type Archiver interface {
	ArchiveRun(ctx context.Context, runID string, dir string) (int, error)
}
