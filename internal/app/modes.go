package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkorolev/statarb/internal/dataset"
	"github.com/dkorolev/statarb/internal/domain"
	"github.com/dkorolev/statarb/internal/engine"
	"github.com/dkorolev/statarb/internal/notify"
	"github.com/dkorolev/statarb/internal/report"
	"github.com/dkorolev/statarb/internal/returns"
	"github.com/dkorolev/statarb/internal/screener"
	"github.com/dkorolev/statarb/internal/signal"
	"github.com/dkorolev/statarb/internal/stats"
)

// runEventChannel is the Redis Pub/Sub channel for run lifecycle events.
const runEventChannel = "statarb:runs"

// runEvent is the payload published on the run bus after each pipeline stage.
type runEvent struct {
	RunID       string    `json:"run_id"`
	Event       string    `json:"event"`
	InstrumentA string    `json:"instrument_a,omitempty"`
	InstrumentB string    `json:"instrument_b,omitempty"`
	Candidates  int       `json:"candidates,omitempty"`
	Trades      int       `json:"trades,omitempty"`
	At          time.Time `json:"at"`
}

// NormalizeMode loads the raw tick and FX tables, normalizes quotes to USD,
// and persists the result as a CSV (and to Postgres when enabled).
func (a *App) NormalizeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting normalize mode")
	_, err := a.runNormalize(ctx, deps)
	return err
}

// ScreenMode loads the normalized quote table and ranks cointegrated pair
// candidates.
func (a *App) ScreenMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting screen mode")

	quotes, err := dataset.ReadNormalizedCSV(a.cfg.Data.NormalizedCSV)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	_, err = a.runScreen(ctx, deps, runID, quotes)
	return err
}

// BacktestMode loads the normalized quote table, selects the pair to trade,
// and runs the strategy engine over it. When no pair is configured the
// screener runs first and the top-ranked candidate is traded.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backtest mode")

	quotes, err := dataset.ReadNormalizedCSV(a.cfg.Data.NormalizedCSV)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	return a.runBacktest(ctx, deps, runID, quotes, nil)
}

// FullMode runs the whole pipeline: normalize, screen, and backtest the
// top-ranked candidate, sharing one run id across all artifacts.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	quotes, err := a.runNormalize(ctx, deps)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	candidates, err := a.runScreen(ctx, deps, runID, quotes)
	if err != nil {
		return err
	}
	return a.runBacktest(ctx, deps, runID, quotes, candidates)
}

func (a *App) runNormalize(ctx context.Context, deps *Dependencies) (map[string][]domain.Quote, error) {
	raw, err := dataset.ReadQuotesCSV(a.cfg.Data.QuotesCSV)
	if err != nil {
		return nil, err
	}
	fx, err := dataset.ReadFXCSV(a.cfg.Data.FXRatesCSV)
	if err != nil {
		return nil, err
	}

	normalizer := dataset.NewNormalizer(a.cfg.Data.ConvertPrefixes, a.logger)
	quotes, err := normalizer.Normalize(raw, fx)
	if err != nil {
		return nil, err
	}

	writer, err := dataset.NewArtifactWriter(a.cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	if _, err := writer.WriteNormalizedCSV("normalized_quotes.csv", quotes); err != nil {
		return nil, err
	}
	// The configured path doubles as the input of the screen/backtest modes.
	if err := dataset.WriteNormalizedCSVTo(a.cfg.Data.NormalizedCSV, quotes); err != nil {
		return nil, err
	}

	if deps.QuoteStore != nil {
		total := 0
		for _, qs := range quotes {
			if err := deps.QuoteStore.InsertBatch(ctx, qs); err != nil {
				return nil, err
			}
			total += len(qs)
		}
		a.logger.InfoContext(ctx, "normalized quotes persisted", slog.Int("rows", total))
	}
	return quotes, nil
}

func (a *App) runScreen(ctx context.Context, deps *Dependencies, runID string, quotes map[string][]domain.Quote) ([]domain.PairCandidate, error) {
	prices := dataset.PriceTable(quotes)
	series := make([]domain.PriceSeries, 0, len(prices))
	for _, s := range prices {
		series = append(series, s)
	}

	matrix, err := returns.Compute(series)
	if err != nil {
		return nil, err
	}

	scr := screener.New(screener.Config{
		MinCorrelation:    a.cfg.Screener.MinCorrelation,
		MinOverlap:        a.cfg.Screener.MinOverlap,
		SignificanceLevel: a.cfg.Screener.SignificanceLevel,
		ADFLags:           a.cfg.Screener.ADFLags,
		Workers:           a.cfg.Screener.Workers,
		MaxInstruments:    a.cfg.Screener.MaxInstruments,
	}, a.logger)

	candidates, err := scr.Screen(ctx, matrix, prices)
	if err != nil {
		return nil, err
	}

	writer, err := dataset.NewArtifactWriter(a.cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	if _, err := writer.WriteCandidatesCSV(fmt.Sprintf("candidates_%s.csv", runID), candidates); err != nil {
		return nil, err
	}

	if deps.CandidateStore != nil {
		if err := deps.CandidateStore.InsertBatch(ctx, runID, candidates); err != nil {
			return nil, err
		}
	}
	if deps.CandidateCache != nil {
		if err := deps.CandidateCache.SetRanked(ctx, candidates, deps.CacheTTL); err != nil {
			a.logger.WarnContext(ctx, "candidate cache update failed", slog.String("error", err.Error()))
		}
	}

	a.publishEvent(ctx, deps, runEvent{
		RunID:      runID,
		Event:      notify.EventScreenComplete,
		Candidates: len(candidates),
		At:         time.Now().UTC(),
	})
	if err := deps.Notifier.ScreenComplete(ctx, runID, candidates); err != nil {
		a.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}
	return candidates, nil
}

func (a *App) runBacktest(ctx context.Context, deps *Dependencies, runID string, quotes map[string][]domain.Quote, candidates []domain.PairCandidate) error {
	startedAt := time.Now().UTC()

	pairA, pairB, beta, err := a.selectPair(ctx, deps, quotes, candidates)
	if err != nil {
		return err
	}

	builder := signal.NewBuilder(a.cfg.Signal.Window, a.logger)
	series, err := builder.Build(pairA, pairB, quotes[pairA], quotes[pairB], beta)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Config{
		ZEntry:          a.cfg.Strategy.ZEntry,
		ZExit:           a.cfg.Strategy.ZExit,
		NotionalPerLeg:  a.cfg.Strategy.NotionalPerLeg,
		SlippageMode:    a.cfg.Strategy.SlippageMode,
		TickSizeA:       a.cfg.Strategy.TickSizeA * a.cfg.Strategy.TickValueA,
		TickSizeB:       a.cfg.Strategy.TickSizeB * a.cfg.Strategy.TickValueB,
		ForceCloseAtEnd: a.cfg.Strategy.ForceCloseAtEnd,
	}, a.logger)
	if err != nil {
		return err
	}

	ledger, err := eng.Run(series)
	if err != nil {
		return err
	}

	run := domain.BacktestRun{
		RunID:          runID,
		InstrumentA:    pairA,
		InstrumentB:    pairB,
		Beta:           beta,
		Window:         a.cfg.Signal.Window,
		ZEntry:         a.cfg.Strategy.ZEntry,
		ZExit:          a.cfg.Strategy.ZExit,
		NotionalPerLeg: a.cfg.Strategy.NotionalPerLeg,
		SlippageMode:   a.cfg.Strategy.SlippageMode,
		StartedAt:      startedAt,
		FinishedAt:     time.Now().UTC(),
		Summary:        report.Summarize(ledger, a.cfg.Report.AnnualizationFactor),
	}

	writer, err := dataset.NewArtifactWriter(a.cfg.Artifacts.Dir)
	if err != nil {
		return err
	}
	if _, err := writer.WriteSignalsCSV(series); err != nil {
		return err
	}
	if _, err := writer.WritePnLCSV(ledger); err != nil {
		return err
	}
	if _, err := writer.WriteRunJSON(run); err != nil {
		return err
	}

	if deps.RunStore != nil {
		if err := deps.RunStore.Insert(ctx, run); err != nil {
			return err
		}
	}
	if deps.LedgerStore != nil {
		if err := deps.LedgerStore.InsertBatch(ctx, runID, ledger.Trades); err != nil {
			return err
		}
	}
	if deps.Archiver != nil {
		uploaded, err := deps.Archiver.ArchiveRun(ctx, runID, writer.Dir())
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "artifacts archived",
			slog.String("run_id", runID),
			slog.Int("objects", uploaded),
		)
	}

	a.publishEvent(ctx, deps, runEvent{
		RunID:       runID,
		Event:       notify.EventBacktestComplete,
		InstrumentA: pairA,
		InstrumentB: pairB,
		Trades:      ledger.Len(),
		At:          time.Now().UTC(),
	})
	if err := deps.Notifier.BacktestComplete(ctx, run); err != nil {
		a.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}

	a.logger.InfoContext(ctx, "backtest summary",
		slog.String("run_id", runID),
		slog.String("pair", pairA+"/"+pairB),
		slog.Int("trades", run.Summary.TotalTrades),
		slog.Float64("total_pnl", run.Summary.TotalPnL),
	)
	return nil
}

// selectPair resolves the pair to trade: the configured pair if set,
// otherwise the top-ranked candidate from this run, the cache, or a fresh
// screening, in that order of preference.
func (a *App) selectPair(ctx context.Context, deps *Dependencies, quotes map[string][]domain.Quote, candidates []domain.PairCandidate) (string, string, float64, error) {
	if a.cfg.Signal.PairA != "" {
		beta, err := a.hedgeRatio(quotes, a.cfg.Signal.PairA, a.cfg.Signal.PairB)
		if err != nil {
			return "", "", 0, err
		}
		return a.cfg.Signal.PairA, a.cfg.Signal.PairB, beta, nil
	}

	if len(candidates) == 0 && deps.CandidateCache != nil {
		cached, err := deps.CandidateCache.GetRanked(ctx)
		if err == nil {
			candidates = cached
		}
	}
	if len(candidates) == 0 {
		fresh, err := a.runScreen(ctx, deps, uuid.NewString(), quotes)
		if err != nil {
			return "", "", 0, err
		}
		candidates = fresh
	}
	if len(candidates) == 0 {
		return "", "", 0, fmt.Errorf("app: no tradable pair: screening produced no candidates")
	}

	top := candidates[0]
	return top.InstrumentA, top.InstrumentB, top.Beta, nil
}

// hedgeRatio fits price_A on price_B over their common timestamps to get the
// beta for an explicitly configured pair.
func (a *App) hedgeRatio(quotes map[string][]domain.Quote, pairA, pairB string) (float64, error) {
	qa, qb := quotes[pairA], quotes[pairB]
	if len(qa) == 0 || len(qb) == 0 {
		return 0, fmt.Errorf("app: pair %s/%s: %w", pairA, pairB, domain.ErrNotFound)
	}

	byTime := make(map[time.Time]float64, len(qb))
	for _, q := range qb {
		byTime[q.Timestamp] = q.Mid
	}
	var ya, xb []float64
	for _, q := range qa {
		if mb, ok := byTime[q.Timestamp]; ok {
			ya = append(ya, q.Mid)
			xb = append(xb, mb)
		}
	}

	fit, err := stats.OLS(ya, xb)
	if err != nil {
		return 0, fmt.Errorf("app: hedge ratio %s/%s: %w", pairA, pairB, err)
	}
	return fit.Beta, nil
}

func (a *App) publishEvent(ctx context.Context, deps *Dependencies, ev runEvent) {
	if deps.RunBus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		a.logger.WarnContext(ctx, "marshal run event failed", slog.String("error", err.Error()))
		return
	}
	if err := deps.RunBus.Publish(ctx, runEventChannel, payload); err != nil {
		a.logger.WarnContext(ctx, "publish run event failed", slog.String("error", err.Error()))
	}
}
