package domain

import "time"

// PositionState is the strategy engine's position in the spread. Exactly one
// state is active at any bar.
type PositionState int

const (
	// Flat means no open position.
	Flat PositionState = iota
	// LongSpread means long instrument A, short instrument B.
	LongSpread
	// ShortSpread means short instrument A, long instrument B.
	ShortSpread
)

// String returns the lower-case state name.
func (s PositionState) String() string {
	switch s {
	case Flat:
		return "flat"
	case LongSpread:
		return "long_spread"
	case ShortSpread:
		return "short_spread"
	default:
		return "unknown"
	}
}

// Direction is the direction of a completed round-trip trade.
type Direction string

const (
	DirectionLong  Direction = "long_spread"
	DirectionShort Direction = "short_spread"
)

// Trade is one completed round trip on the spread: both legs opened at entry,
// both closed at exit, P&L realized once at close. Trades are immutable after
// creation and appended to the ledger in exit order.
type Trade struct {
	EntryTimestamp time.Time
	ExitTimestamp  time.Time
	Direction      Direction

	EntryPriceA float64
	EntryPriceB float64
	ExitPriceA  float64
	ExitPriceB  float64

	QtyA float64
	QtyB float64

	NotionalPerLeg float64
	RealizedPnL    float64
}

// TradeLedger is the append-only sequence of completed trades produced by one
// backtest run.
type TradeLedger struct {
	InstrumentA string
	InstrumentB string
	Trades      []Trade
}

// Append adds a completed trade to the ledger.
func (l *TradeLedger) Append(t Trade) {
	l.Trades = append(l.Trades, t)
}

// Len returns the number of completed trades.
func (l *TradeLedger) Len() int { return len(l.Trades) }
