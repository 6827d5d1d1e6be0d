package workers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
)

// TrackedLister lists every instrument some user tracks
type TrackedLister interface {
	TrackedCodes(ctx context.Context) ([]string, error)
}

// Updater runs the update workflow for one instrument
type Updater interface {
	Update(ctx context.Context, instrument string) (orchestrator.Snapshot, error)
	IsBusy(instrument string) bool
}

// AutoRefreshWorker updates every tracked instrument, one after another
type AutoRefreshWorker struct {
	tracked TrackedLister
	updater Updater
}

// NewAutoRefreshWorker creates new auto-refresh worker
func NewAutoRefreshWorker(tracked TrackedLister, updater Updater) *AutoRefreshWorker {
	return &AutoRefreshWorker{tracked: tracked, updater: updater}
}

// Name returns worker name
func (w *AutoRefreshWorker) Name() string {
	return "auto_refresh"
}

// Run performs one pass over tracked instruments. Instruments with a run
// already in flight are skipped; a failed run does not stop the pass.
func (w *AutoRefreshWorker) Run(ctx context.Context) error {
	codes, err := w.tracked.TrackedCodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracked instruments: %w", err)
	}

	var updated, skipped, failed int
	for _, code := range codes {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if w.updater.IsBusy(code) {
			skipped++
			continue
		}

		snap, err := w.updater.Update(ctx, code)
		switch {
		case errors.Is(err, orchestrator.ErrRunInProgress):
			skipped++
		case err != nil:
			failed++
			logger.Warn("auto refresh failed",
				zap.String("instrument", code),
				zap.String("message", snap.Message),
				zap.Error(err),
			)
		default:
			updated++
		}
	}

	logger.Info("auto refresh pass finished",
		zap.Int("instruments", len(codes)),
		zap.Int("updated", updated),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}
