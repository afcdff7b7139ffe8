package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkorolev/statarb/internal/domain"
)

const rankedCandidatesKey = "screener:candidates:ranked"

// CandidateCache implements domain.CandidateCache using a single Redis key
// holding the JSON-serialized ranked candidate list. Readers always see the
// whole table of the latest completed screening, never a partial update.
type CandidateCache struct {
	rdb *redis.Client
}

// NewCandidateCache creates a CandidateCache backed by the given Client.
func NewCandidateCache(c *Client) *CandidateCache {
	return &CandidateCache{rdb: c.Underlying()}
}

// SetRanked replaces the cached candidate table. The slice order is the
// ranking and is preserved through serialization.
func (cc *CandidateCache) SetRanked(ctx context.Context, candidates []domain.PairCandidate, ttl time.Duration) error {
	data, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("redis: marshal candidates: %w", err)
	}
	if err := cc.rdb.Set(ctx, rankedCandidatesKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set ranked candidates: %w", err)
	}
	return nil
}

// GetRanked returns the cached candidate table, or domain.ErrNotFound when
// the key is missing or expired.
func (cc *CandidateCache) GetRanked(ctx context.Context) ([]domain.PairCandidate, error) {
	data, err := cc.rdb.Get(ctx, rankedCandidatesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: ranked candidates: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get ranked candidates: %w", err)
	}

	var candidates []domain.PairCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("redis: unmarshal candidates: %w", err)
	}
	return candidates, nil
}

// Compile-time interface check.
var _ domain.CandidateCache = (*CandidateCache)(nil)
