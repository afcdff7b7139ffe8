package domain

import (
	"encoding/json"
	"math"
	"time"
)

// EquityPoint is one step of the cumulative realized P&L curve, keyed by the
// exit timestamp of the trade that produced it.
type EquityPoint struct {
	Timestamp time.Time
	CumPnL    float64
}

// Summary is the aggregate performance record reduced from a trade ledger.
// For an empty ledger the counters are zero and the ratio statistics are NaN;
// callers must treat NaN as "undefined", not as a numeric result.
type Summary struct {
	TotalTrades int
	WinRate     float64
	AveragePnL  float64
	PnLStd      float64
	Sharpe      float64
	TotalPnL    float64

	EquityCurve []EquityPoint
}

// BacktestRun records one completed backtest: which pair was traded, the
// parameters in force, and the resulting summary. RunID is assigned at start
// and used to key artifacts, stored rows, and bus events.
type BacktestRun struct {
	RunID       string
	InstrumentA string
	InstrumentB string
	Beta        float64

	Window         int
	ZEntry         float64
	ZExit          float64
	NotionalPerLeg float64
	SlippageMode   string

	StartedAt  time.Time
	FinishedAt time.Time
	Summary    Summary
}

// summaryJSON mirrors Summary with pointer fields so undefined statistics
// serialize as null; encoding/json rejects NaN outright.
type summaryJSON struct {
	TotalTrades int           `json:"total_trades"`
	WinRate     *float64      `json:"win_rate"`
	AveragePnL  *float64      `json:"average_pnl"`
	PnLStd      *float64      `json:"pnl_std"`
	Sharpe      *float64      `json:"sharpe"`
	TotalPnL    float64       `json:"total_pnl"`
	EquityCurve []EquityPoint `json:"equity_curve,omitempty"`
}

func jsonStat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func statFromJSON(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// MarshalJSON serializes NaN statistics as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		TotalTrades: s.TotalTrades,
		WinRate:     jsonStat(s.WinRate),
		AveragePnL:  jsonStat(s.AveragePnL),
		PnLStd:      jsonStat(s.PnLStd),
		Sharpe:      jsonStat(s.Sharpe),
		TotalPnL:    s.TotalPnL,
		EquityCurve: s.EquityCurve,
	})
}

// UnmarshalJSON maps null statistics back to NaN.
func (s *Summary) UnmarshalJSON(data []byte) error {
	var aux summaryJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.TotalTrades = aux.TotalTrades
	s.WinRate = statFromJSON(aux.WinRate)
	s.AveragePnL = statFromJSON(aux.AveragePnL)
	s.PnLStd = statFromJSON(aux.PnLStd)
	s.Sharpe = statFromJSON(aux.Sharpe)
	s.TotalPnL = aux.TotalPnL
	s.EquityCurve = aux.EquityCurve
	return nil
}
