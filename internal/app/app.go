// Package app provides the top-level lifecycle for the statarb research
// pipeline. It wires the optional infrastructure (Postgres, Redis, S3,
// notifications) and runs the selected pipeline mode to completion.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dkorolev/statarb/internal/config"
	"github.com/dkorolev/statarb/internal/notify"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, runs the selected mode to completion, and
// returns its error. Unlike a serving process, every mode is a batch job; Run
// returns as soon as the mode's pipeline has finished.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting pipeline",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "normalize":
		err = a.NormalizeMode(ctx, deps)
	case "screen":
		err = a.ScreenMode(ctx, deps)
	case "backtest":
		err = a.BacktestMode(ctx, deps)
	case "full":
		err = a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.reportFailure(ctx, deps, err)
	}
	return err
}

// reportFailure publishes a run_failed event and notifies operator channels.
// Failure reporting is best effort; Run still returns the original error.
func (a *App) reportFailure(ctx context.Context, deps *Dependencies, runErr error) {
	a.publishEvent(ctx, deps, runEvent{
		Event: notify.EventRunFailed,
		At:    time.Now().UTC(),
	})
	if err := deps.Notifier.RunFailed(ctx, a.cfg.Mode, runErr); err != nil {
		a.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
