package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
)

type staticTracked struct {
	codes []string
	err   error
}

func (s staticTracked) TrackedCodes(context.Context) ([]string, error) {
	return s.codes, s.err
}

type recordingUpdater struct {
	busy    map[string]bool
	fail    map[string]error
	updated []string
	cancel  context.CancelFunc
}

func (r *recordingUpdater) IsBusy(code string) bool {
	return r.busy[code]
}

func (r *recordingUpdater) Update(_ context.Context, code string) (orchestrator.Snapshot, error) {
	r.updated = append(r.updated, code)
	if r.cancel != nil {
		r.cancel()
	}
	if err := r.fail[code]; err != nil {
		return orchestrator.Snapshot{Outcome: orchestrator.OutcomeFailed, Message: err.Error()}, err
	}
	return orchestrator.Snapshot{Outcome: orchestrator.OutcomeSucceeded}, nil
}

func TestAutoRefresh_SkipsBusyAndContinuesAfterFailure(t *testing.T) {
	updater := &recordingUpdater{
		busy: map[string]bool{"000002": true},
		fail: map[string]error{
			"000001": errors.New("upstream timeout"),
			"000003": orchestrator.ErrRunInProgress,
		},
	}
	w := NewAutoRefreshWorker(staticTracked{codes: []string{"000001", "000002", "000003", "600519"}}, updater)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []string{"000001", "000003", "600519"}, updater.updated)
	assert.Equal(t, "auto_refresh", w.Name())
}

func TestAutoRefresh_ListError(t *testing.T) {
	w := NewAutoRefreshWorker(staticTracked{err: errors.New("db down")}, &recordingUpdater{})
	assert.ErrorContains(t, w.Run(context.Background()), "db down")
}

func TestAutoRefresh_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	updater := &recordingUpdater{cancel: cancel}
	w := NewAutoRefreshWorker(staticTracked{codes: []string{"000001", "600519"}}, updater)

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"000001"}, updater.updated)
}
