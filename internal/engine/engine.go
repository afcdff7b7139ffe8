// Package engine runs the stateful spread-trading backtest over a
// SignalSeries. The engine is a three-state machine over the position
// (flat, long spread, short spread) driven bar by bar; at most one position
// is open at a time and only realized P&L is tracked.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/dkorolev/statarb/internal/domain"
)

// Slippage mode names accepted by Config.
const (
	SlippageSpread = "spread"
	SlippageTick   = "tick"
)

// Config holds the strategy parameters for one backtest.
type Config struct {
	ZEntry          float64
	ZExit           float64
	NotionalPerLeg  float64
	SlippageMode    string
	TickSizeA       float64
	TickSizeB       float64
	ForceCloseAtEnd bool
}

// Engine executes the entry/exit state machine over a signal series.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New validates the config and returns an Engine.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	switch cfg.SlippageMode {
	case SlippageSpread, SlippageTick:
	default:
		return nil, fmt.Errorf("engine: unknown slippage mode %q", cfg.SlippageMode)
	}
	if cfg.ZEntry <= 0 {
		return nil, fmt.Errorf("engine: z_entry must be positive, got %v", cfg.ZEntry)
	}
	if cfg.NotionalPerLeg <= 0 {
		return nil, fmt.Errorf("engine: notional_per_leg must be positive, got %v", cfg.NotionalPerLeg)
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "engine")),
	}, nil
}

// position carries the open-trade bookkeeping between bars.
type position struct {
	state       domain.PositionState
	entryBar    domain.SignalBar
	entryPriceA float64
	entryPriceB float64
	qtyA        float64
	qtyB        float64
}

// Run walks the series and returns the ledger of closed trades. Bars with an
// undefined z-score never trigger a transition but an open position is still
// carried through them.
func (e *Engine) Run(series domain.SignalSeries) (domain.TradeLedger, error) {
	ledger := domain.TradeLedger{
		InstrumentA: series.InstrumentA,
		InstrumentB: series.InstrumentB,
	}

	pos := position{state: domain.Flat}
	for _, bar := range series.Bars {
		if !bar.ZValid {
			continue
		}
		next, trade := e.step(pos, bar)
		if trade != nil {
			ledger.Append(*trade)
		}
		pos = next
	}

	if pos.state != domain.Flat {
		if e.cfg.ForceCloseAtEnd && len(series.Bars) > 0 {
			// Fills need only quotes, so the final bar prices the
			// close even when its z-score is undefined.
			last := series.Bars[len(series.Bars)-1]
			trade := e.close(pos, last)
			ledger.Append(trade)
			pos = position{state: domain.Flat}
		} else {
			e.logger.Info("position open at end of series, excluded from ledger",
				slog.String("pair", series.InstrumentA+"/"+series.InstrumentB),
				slog.String("state", pos.state.String()),
			)
		}
	}

	e.logger.Info("backtest complete",
		slog.String("pair", series.InstrumentA+"/"+series.InstrumentB),
		slog.Int("trades", ledger.Len()),
	)
	return ledger, nil
}

// step applies one bar to the state machine. Exactly one transition can fire
// per bar; an exit never chains into a same-bar re-entry.
func (e *Engine) step(pos position, bar domain.SignalBar) (position, *domain.Trade) {
	z := bar.ZScore
	switch pos.state {
	case domain.Flat:
		switch {
		case z < -e.cfg.ZEntry:
			return e.open(domain.LongSpread, bar), nil
		case z > e.cfg.ZEntry:
			return e.open(domain.ShortSpread, bar), nil
		}
	case domain.LongSpread:
		if z >= e.cfg.ZExit {
			trade := e.close(pos, bar)
			return position{state: domain.Flat}, &trade
		}
	case domain.ShortSpread:
		if z <= e.cfg.ZExit {
			trade := e.close(pos, bar)
			return position{state: domain.Flat}, &trade
		}
	}
	return pos, nil
}

// open fills both legs at slippage-adjusted prices and sizes each leg to the
// configured notional at its own entry price.
func (e *Engine) open(state domain.PositionState, bar domain.SignalBar) position {
	var priceA, priceB float64
	if state == domain.LongSpread {
		// Long spread: buy A, sell B.
		priceA = e.buyPrice(bar.AskA, bar.QuotedSpreadA, e.cfg.TickSizeA)
		priceB = e.sellPrice(bar.BidB, bar.QuotedSpreadB, e.cfg.TickSizeB)
	} else {
		// Short spread: sell A, buy B.
		priceA = e.sellPrice(bar.BidA, bar.QuotedSpreadA, e.cfg.TickSizeA)
		priceB = e.buyPrice(bar.AskB, bar.QuotedSpreadB, e.cfg.TickSizeB)
	}
	return position{
		state:       state,
		entryBar:    bar,
		entryPriceA: priceA,
		entryPriceB: priceB,
		qtyA:        e.cfg.NotionalPerLeg / priceA,
		qtyB:        e.cfg.NotionalPerLeg / priceB,
	}
}

// close fills the offsetting legs at slippage-adjusted prices and books the
// realized P&L of both legs.
func (e *Engine) close(pos position, bar domain.SignalBar) domain.Trade {
	var exitA, exitB, pnl float64
	var direction domain.Direction
	if pos.state == domain.LongSpread {
		direction = domain.DirectionLong
		// Unwind: sell A, buy B.
		exitA = e.sellPrice(bar.BidA, bar.QuotedSpreadA, e.cfg.TickSizeA)
		exitB = e.buyPrice(bar.AskB, bar.QuotedSpreadB, e.cfg.TickSizeB)
		pnl = pos.qtyA*(exitA-pos.entryPriceA) + pos.qtyB*(pos.entryPriceB-exitB)
	} else {
		direction = domain.DirectionShort
		// Unwind: buy A, sell B.
		exitA = e.buyPrice(bar.AskA, bar.QuotedSpreadA, e.cfg.TickSizeA)
		exitB = e.sellPrice(bar.BidB, bar.QuotedSpreadB, e.cfg.TickSizeB)
		pnl = pos.qtyA*(pos.entryPriceA-exitA) + pos.qtyB*(exitB-pos.entryPriceB)
	}
	return domain.Trade{
		EntryTimestamp: pos.entryBar.Timestamp,
		ExitTimestamp:  bar.Timestamp,
		Direction:      direction,
		EntryPriceA:    pos.entryPriceA,
		EntryPriceB:    pos.entryPriceB,
		ExitPriceA:     exitA,
		ExitPriceB:     exitB,
		QtyA:           pos.qtyA,
		QtyB:           pos.qtyB,
		NotionalPerLeg: e.cfg.NotionalPerLeg,
		RealizedPnL:    pnl,
	}
}

// buyPrice is the slippage-adjusted fill for a buy: pay the ask plus the
// penalty. In spread mode the penalty is the full quoted bid/ask width; in
// tick mode it is one tick.
func (e *Engine) buyPrice(ask, quotedSpread, tickSize float64) float64 {
	if e.cfg.SlippageMode == SlippageTick {
		return ask + tickSize
	}
	return ask + quotedSpread
}

// sellPrice is the slippage-adjusted fill for a sell: receive the bid minus
// the penalty.
func (e *Engine) sellPrice(bid, quotedSpread, tickSize float64) float64 {
	if e.cfg.SlippageMode == SlippageTick {
		return bid - tickSize
	}
	return bid - quotedSpread
}
