// Package notify pushes run lifecycle events to operator chat channels. The
// Notifier renders pipeline results (screening tables, backtest summaries,
// failures) into messages and fans them out to the configured senders,
// filtered by event name.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dkorolev/statarb/internal/domain"
)

// Run lifecycle event names. The config's notify.events list filters
// against these.
const (
	EventScreenComplete   = "screen_complete"
	EventBacktestComplete = "backtest_complete"
	EventRunFailed        = "run_failed"
)

// Message is one rendered notification. Senders decide how to lay the parts
// out for their channel.
type Message struct {
	Event string
	Title string
	Body  string
}

// Sender delivers rendered messages over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Name identifies the channel in logs and error messages.
	Name() string
}

// Notifier renders run events and dispatches them to all senders whose
// event filter admits them.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// named in the events list are forwarded; an empty list admits everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// ScreenComplete reports a finished screening run with its ranked candidates.
func (n *Notifier) ScreenComplete(ctx context.Context, runID string, candidates []domain.PairCandidate) error {
	msg := Message{Event: EventScreenComplete, Title: "Screening complete"}
	if len(candidates) == 0 {
		msg.Body = fmt.Sprintf("run %s: no pairs passed the gates", runID)
	} else {
		top := candidates[0]
		msg.Body = fmt.Sprintf("run %s: %d candidate pairs, top %s (corr %.3f, p %.4f)",
			runID, len(candidates), top.Key(), top.Correlation, top.PValue)
	}
	return n.deliver(ctx, msg)
}

// BacktestComplete reports a finished backtest. Undefined statistics render
// as "n/a" rather than NaN.
func (n *Notifier) BacktestComplete(ctx context.Context, run domain.BacktestRun) error {
	return n.deliver(ctx, Message{
		Event: EventBacktestComplete,
		Title: fmt.Sprintf("Backtest complete: %s/%s", run.InstrumentA, run.InstrumentB),
		Body: fmt.Sprintf("run %s: %d trades, total P&L %.2f, win rate %s, sharpe %s",
			run.RunID,
			run.Summary.TotalTrades,
			run.Summary.TotalPnL,
			formatStat(run.Summary.WinRate, "%.1f%%", 100),
			formatStat(run.Summary.Sharpe, "%.2f", 1)),
	})
}

// RunFailed reports a pipeline failure for the given mode.
func (n *Notifier) RunFailed(ctx context.Context, mode string, runErr error) error {
	return n.deliver(ctx, Message{
		Event: EventRunFailed,
		Title: "Pipeline run failed",
		Body:  fmt.Sprintf("mode %s: %v", mode, runErr),
	})
}

// deliver applies the event filter and fans the message out. Errors from
// individual senders are collected; one failing channel does not block the
// rest.
func (n *Notifier) deliver(ctx context.Context, msg Message) error {
	if len(n.allowed) > 0 && !n.allowed[msg.Event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", msg.Event))
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", msg.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", msg.Event),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func formatStat(v float64, format string, scale float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf(format, v*scale)
}
