package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/metrics"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// DefaultBatchSize is the number of documents sent to the scorer per call
const DefaultBatchSize = 5

// ErrRunInProgress is returned when an instrument already has an active run
var ErrRunInProgress = errors.New("update already in progress for this instrument")

// Ingestor pulls new raw documents for an instrument into the store
type Ingestor interface {
	FetchRaw(ctx context.Context, instrument string) (int, error)
}

// PendingSource lists documents that still need scoring
type PendingSource interface {
	PendingIDs(ctx context.Context, instrument string) ([]string, error)
}

// BatchScorer scores a batch of documents and marks them analyzed.
// A call either succeeds for every id or fails as a whole.
type BatchScorer interface {
	AnalyzeBatch(ctx context.Context, ids []string) (int, error)
}

// Cleaner removes duplicate rows and invalid analyses for an instrument
type Cleaner interface {
	Cleanup(ctx context.Context, instrument string) (*models.CleanupReport, error)
}

// Refresher rebuilds the merged and deduplicated views after new scores land
type Refresher interface {
	Refresh(ctx context.Context, instrument string) error
}

// Reporter receives every snapshot of a run
type Reporter interface {
	Report(snapshot Snapshot)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(snapshot Snapshot)

// Report calls f(snapshot)
func (f ReporterFunc) Report(snapshot Snapshot) {
	f(snapshot)
}

// Locker guards an instrument across processes. TryLock returns false when
// another process holds the instrument.
type Locker interface {
	TryLock(ctx context.Context, instrument string) (bool, error)
	Unlock(ctx context.Context, instrument string) error
}

// Config holds orchestrator tunables
type Config struct {
	BatchSize int
}

// Dependencies are the collaborators a run drives
type Dependencies struct {
	Ingestor  Ingestor
	Pending   PendingSource
	Scorer    BatchScorer
	Cleaner   Cleaner
	Refresher Refresher
	Reporters []Reporter
	Locker    Locker
}

// Orchestrator runs the fetch → discover → analyze → refresh workflow,
// at most one run per instrument at a time
type Orchestrator struct {
	deps      Dependencies
	batchSize int
	now       func() time.Time

	mu   sync.Mutex
	busy map[string]string
}

// New creates new orchestrator
func New(cfg Config, deps Dependencies) *Orchestrator {
	size := cfg.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	return &Orchestrator{
		deps:      deps,
		batchSize: size,
		now:       time.Now,
		busy:      make(map[string]string),
	}
}

// IsBusy reports whether the instrument has a run in flight in this process
func (o *Orchestrator) IsBusy(instrument string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.busy[instrument]
	return ok
}

// Update runs the workflow to completion and returns the final snapshot.
// The error is non-nil when the run failed or could not start.
func (o *Orchestrator) Update(ctx context.Context, instrument string) (Snapshot, error) {
	runID, err := o.acquire(ctx, instrument)
	if err != nil {
		return Snapshot{}, err
	}
	defer o.release(instrument)

	return o.run(ctx, runID, instrument, false)
}

// CleanupAndUpdate cleans the stored corpus first, then runs Update.
// A cleanup failure ends the run before anything is fetched.
func (o *Orchestrator) CleanupAndUpdate(ctx context.Context, instrument string) (Snapshot, error) {
	runID, err := o.acquire(ctx, instrument)
	if err != nil {
		return Snapshot{}, err
	}
	defer o.release(instrument)

	return o.run(ctx, runID, instrument, true)
}

// Start launches a run in the background and returns its id.
// The busy check happens before Start returns, so a second call for the
// same instrument gets ErrRunInProgress.
func (o *Orchestrator) Start(ctx context.Context, instrument string, withCleanup bool) (string, error) {
	runID, err := o.acquire(ctx, instrument)
	if err != nil {
		return "", err
	}

	go func() {
		defer o.release(instrument)
		if _, err := o.run(ctx, runID, instrument, withCleanup); err != nil {
			logger.Warn("background update ended with error",
				zap.String("instrument", instrument),
				zap.String("run_id", runID),
				zap.Error(err),
			)
		}
	}()

	return runID, nil
}

func (o *Orchestrator) acquire(ctx context.Context, instrument string) (string, error) {
	o.mu.Lock()
	if _, ok := o.busy[instrument]; ok {
		o.mu.Unlock()
		return "", ErrRunInProgress
	}
	runID := uuid.NewString()
	o.busy[instrument] = runID
	o.mu.Unlock()

	if o.deps.Locker == nil {
		return runID, nil
	}

	locked, err := o.deps.Locker.TryLock(ctx, instrument)
	if err != nil || !locked {
		o.mu.Lock()
		delete(o.busy, instrument)
		o.mu.Unlock()
		if err != nil {
			return "", fmt.Errorf("failed to lock instrument: %w", err)
		}
		return "", ErrRunInProgress
	}

	return runID, nil
}

func (o *Orchestrator) release(instrument string) {
	if o.deps.Locker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.deps.Locker.Unlock(ctx, instrument); err != nil {
			logger.Warn("failed to release instrument lock",
				zap.String("instrument", instrument),
				zap.Error(err),
			)
		}
		cancel()
	}

	o.mu.Lock()
	delete(o.busy, instrument)
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, runID, instrument string, withCleanup bool) (Snapshot, error) {
	job := newBatchJob(runID, instrument, o.now)
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	logger.Info("update run started",
		zap.String("instrument", instrument),
		zap.String("run_id", runID),
		zap.Bool("cleanup", withCleanup),
	)

	if withCleanup {
		job.transition(StateCleaning, "cleaning duplicate data...")
		o.report(job)

		report, err := o.deps.Cleaner.Cleanup(ctx, instrument)
		if err != nil {
			return o.fail(job, fmt.Errorf("cleanup failed: %w", err))
		}
		job.snap.Cleanup = report
		job.transition(StateCleaning, fmt.Sprintf("removed %d duplicates and %d foreign-language analyses",
			report.DeletedDuplicates, report.DeletedForeignSummaries))
		o.report(job)
	}

	job.transition(StateFetching, "fetching latest documents...")
	o.report(job)

	ingested, err := o.deps.Ingestor.FetchRaw(ctx, instrument)
	if err != nil {
		return o.fail(job, err)
	}
	job.snap.Ingested = ingested

	job.transition(StateDiscovering, "looking for unanalyzed documents...")
	o.report(job)

	pending, err := o.deps.Pending.PendingIDs(ctx, instrument)
	if err != nil {
		return o.fail(job, err)
	}

	if len(pending) == 0 {
		if err := o.refresh(ctx, job); err != nil {
			return o.fail(job, err)
		}
		job.finish(OutcomeNoop, "no new documents to analyze")
		return o.done(job)
	}

	job.enqueue(pending, o.batchSize)

	for i, batch := range job.batches {
		if err := ctx.Err(); err != nil {
			return o.fail(job, fmt.Errorf("update cancelled: %w", err))
		}

		job.transition(StateAnalyzing, fmt.Sprintf("analyzing %d/%d...", i+1, len(job.batches)))
		o.report(job)

		started := time.Now()
		if _, err := o.deps.Scorer.AnalyzeBatch(ctx, batch); err != nil {
			metrics.BatchDuration.WithLabelValues("error").Observe(time.Since(started).Seconds())
			return o.fail(job, fmt.Errorf("batch %d/%d failed: %w", i+1, len(job.batches), err))
		}
		metrics.BatchDuration.WithLabelValues("ok").Observe(time.Since(started).Seconds())
		metrics.DocumentsScored.Add(float64(len(batch)))

		job.complete(i, len(batch))
		o.report(job)

		logger.Debug("batch analyzed",
			zap.String("instrument", instrument),
			zap.Int("batch", i+1),
			zap.Int("batches", len(job.batches)),
			zap.Float64("progress", job.snap.Progress),
		)
	}

	if err := o.refresh(ctx, job); err != nil {
		return o.fail(job, err)
	}

	job.finish(OutcomeSucceeded, "update complete")
	return o.done(job)
}

func (o *Orchestrator) refresh(ctx context.Context, job *BatchJob) error {
	job.transition(StateRefreshing, "refreshing views...")
	o.report(job)

	if o.deps.Refresher == nil {
		return nil
	}
	if err := o.deps.Refresher.Refresh(ctx, job.snap.Instrument); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	return nil
}

func (o *Orchestrator) fail(job *BatchJob, err error) (Snapshot, error) {
	failedIn := job.snap.State
	job.fail(err)
	snap, _ := o.done(job)

	logger.Error("update run failed",
		zap.String("instrument", snap.Instrument),
		zap.String("run_id", snap.RunID),
		zap.String("state", string(failedIn)),
		zap.Int("completed", snap.Completed),
		zap.Int("total", snap.Total),
		zap.Error(err),
	)

	return snap, err
}

func (o *Orchestrator) done(job *BatchJob) (Snapshot, error) {
	o.report(job)
	snap := job.Snapshot()
	metrics.UpdateRuns.WithLabelValues(string(snap.Outcome)).Inc()

	if snap.Outcome != OutcomeFailed {
		logger.Info("update run finished",
			zap.String("instrument", snap.Instrument),
			zap.String("run_id", snap.RunID),
			zap.String("outcome", string(snap.Outcome)),
			zap.Int("ingested", snap.Ingested),
			zap.Int("analyzed", snap.Completed),
			zap.Duration("duration", snap.UpdatedAt.Sub(snap.StartedAt)),
		)
	}

	return snap, nil
}

func (o *Orchestrator) report(job *BatchJob) {
	snap := job.Snapshot()
	for _, r := range o.deps.Reporters {
		r.Report(snap)
	}
}
