// Package screener scans a universe of instruments for cointegrated pairs.
// Every directed pair passes three gates in order: minimum return overlap,
// minimum return correlation, and residual stationarity of the price-level
// regression. Gating order matters: no statistic is computed on a sample
// below the overlap floor.
package screener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkorolev/statarb/internal/domain"
	"github.com/dkorolev/statarb/internal/returns"
	"github.com/dkorolev/statarb/internal/stats"
)

// Config holds the screening thresholds. See config.ScreenerConfig for the
// TOML surface these map from.
type Config struct {
	MinCorrelation    float64
	MinOverlap        int
	SignificanceLevel float64
	ADFLags           int
	Workers           int
	MaxInstruments    int
}

// Screener evaluates instrument pairs for cointegration.
type Screener struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Screener with the given thresholds.
func New(cfg Config, logger *slog.Logger) *Screener {
	return &Screener{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "screener")),
	}
}

// pairJob identifies one directed pair to evaluate.
type pairJob struct {
	a, b string
}

// Screen evaluates every directed pair (A,B), A≠B, against the return matrix
// and the instruments' mid-price series, and returns the candidates passing
// all gates, ranked deterministically (correlation magnitude descending,
// p-value ascending, then instrument ids). Pair evaluations run on a bounded
// worker pool; the final sort makes the output independent of scheduling.
func (s *Screener) Screen(ctx context.Context, matrix domain.ReturnMatrix, prices map[string]domain.PriceSeries) ([]domain.PairCandidate, error) {
	ids := matrix.Instruments()
	if s.cfg.MaxInstruments > 0 && len(ids) > s.cfg.MaxInstruments {
		s.logger.WarnContext(ctx, "universe exceeds configured size, scan is quadratic",
			slog.Int("instruments", len(ids)),
			slog.Int("max_instruments", s.cfg.MaxInstruments),
		)
	}

	jobs := make([]pairJob, 0, len(ids)*(len(ids)-1))
	for _, a := range ids {
		for _, b := range ids {
			if a != b {
				jobs = append(jobs, pairJob{a: a, b: b})
			}
		}
	}

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	started := time.Now()
	results := make([]*domain.PairCandidate, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cand, err := s.evaluate(job, matrix, prices)
			if err != nil {
				// Soft exclusions are expected; real data errors abort.
				if isExclusion(err) {
					s.logger.Debug("pair excluded",
						slog.String("pair", job.a+"/"+job.b),
						slog.String("reason", err.Error()),
					)
					return nil
				}
				return fmt.Errorf("screener: pair %s/%s: %w", job.a, job.b, err)
			}
			if cand != nil {
				results[i] = cand
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]domain.PairCandidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].RankBefore(candidates[j])
	})

	s.logger.InfoContext(ctx, "screening finished",
		slog.Int("instruments", len(ids)),
		slog.Int("pairs_evaluated", len(jobs)),
		slog.Int("candidates", len(candidates)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return candidates, nil
}

// evaluate runs the three gates for one directed pair. It returns nil when
// the pair passes the overlap and correlation gates but is not cointegrated
// at the configured significance level.
func (s *Screener) evaluate(job pairJob, matrix domain.ReturnMatrix, prices map[string]domain.PriceSeries) (*domain.PairCandidate, error) {
	ra, okA := matrix.Series[job.a]
	rb, okB := matrix.Series[job.b]
	if !okA || !okB {
		return nil, fmt.Errorf("missing return series: %w", domain.ErrInsufficientHistory)
	}

	// Gate 1: overlap. No statistics run below the floor.
	times, retA, retB := returns.Overlap(ra, rb)
	if len(times) < s.cfg.MinOverlap {
		return nil, fmt.Errorf("overlap %d below minimum %d: %w",
			len(times), s.cfg.MinOverlap, domain.ErrInsufficientOverlap)
	}

	// Gate 2: return correlation.
	corr, err := stats.Pearson(retA, retB)
	if err != nil {
		return nil, err
	}
	if corr <= s.cfg.MinCorrelation && corr >= -s.cfg.MinCorrelation {
		return nil, nil
	}

	// Gate 3: cointegration. The regression runs on price LEVELS over the
	// same overlapping timestamps; returns would destroy the spread.
	priceA, err := alignPrices(prices[job.a], times)
	if err != nil {
		return nil, err
	}
	priceB, err := alignPrices(prices[job.b], times)
	if err != nil {
		return nil, err
	}

	fit, err := stats.OLS(priceA, priceB)
	if err != nil {
		return nil, err
	}

	adf, err := stats.ADF(fit.Residuals, s.cfg.ADFLags)
	if err != nil {
		return nil, err
	}
	if adf.PValue >= s.cfg.SignificanceLevel {
		return nil, nil
	}

	return &domain.PairCandidate{
		InstrumentA: job.a,
		InstrumentB: job.b,
		Correlation: corr,
		Beta:        fit.Beta,
		ResidualStd: fit.ResidualStd,
		PValue:      adf.PValue,
		Overlap:     len(times),
	}, nil
}

// alignPrices extracts the mid prices of one instrument at exactly the given
// timestamps. A timestamp with a return but no price is malformed input.
func alignPrices(series domain.PriceSeries, times []time.Time) ([]float64, error) {
	byTime := make(map[time.Time]float64, series.Len())
	for _, p := range series.Points {
		byTime[p.Timestamp] = p.Value
	}

	out := make([]float64, len(times))
	for i, ts := range times {
		v, ok := byTime[ts]
		if !ok {
			return nil, &domain.DataError{
				Instrument: series.Instrument,
				Timestamp:  ts,
				Reason:     "return present without a matching mid price",
			}
		}
		out[i] = v
	}
	return out, nil
}

// isExclusion reports whether err is a soft per-pair exclusion rather than a
// data-integrity failure.
func isExclusion(err error) bool {
	return errors.Is(err, domain.ErrInsufficientOverlap) ||
		errors.Is(err, domain.ErrDegenerateStatistic) ||
		errors.Is(err, domain.ErrInsufficientHistory)
}
