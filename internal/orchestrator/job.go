package orchestrator

import (
	"time"

	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// State is a step of the update workflow
type State string

const (
	StateIdle        State = "idle"
	StateCleaning    State = "cleaning"
	StateFetching    State = "fetching"
	StateDiscovering State = "discovering"
	StateAnalyzing   State = "analyzing"
	StateRefreshing  State = "refreshing"
)

// Outcome is how a run ended
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeNoop      Outcome = "noop"
	OutcomeFailed    Outcome = "failed"
)

// Snapshot is an immutable view of a run, published on every transition
type Snapshot struct {
	StartedAt    time.Time             `json:"started_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
	Cleanup      *models.CleanupReport `json:"cleanup,omitempty"`
	RunID        string                `json:"run_id"`
	Instrument   string                `json:"stock_code"`
	State        State                 `json:"state"`
	Outcome      Outcome               `json:"outcome"`
	Message      string                `json:"message"`
	Error        string                `json:"error,omitempty"`
	Progress     float64               `json:"progress"`
	Batch        int                   `json:"batch"`
	TotalBatches int                   `json:"total_batches"`
	Completed    int                   `json:"completed"`
	Total        int                   `json:"total"`
	Ingested     int                   `json:"ingested"`
}

// Terminal reports whether the run has finished
func (s Snapshot) Terminal() bool {
	return s.Outcome != OutcomeRunning
}

// Failed reports whether the run ended in error
func (s Snapshot) Failed() bool {
	return s.Outcome == OutcomeFailed
}

// BatchJob is the mutable state of one run. It lives only as long as the run.
type BatchJob struct {
	snap    Snapshot
	pending []string
	batches [][]string
	now     func() time.Time
}

func newBatchJob(runID, instrument string, now func() time.Time) *BatchJob {
	started := now()
	return &BatchJob{
		snap: Snapshot{
			RunID:      runID,
			Instrument: instrument,
			State:      StateIdle,
			Outcome:    OutcomeRunning,
			StartedAt:  started,
			UpdatedAt:  started,
		},
		now: now,
	}
}

func (j *BatchJob) transition(state State, message string) {
	j.snap.State = state
	j.snap.Message = message
	j.snap.UpdatedAt = j.now()
}

// enqueue snapshots the pending ids and splits them into batches
func (j *BatchJob) enqueue(ids []string, size int) {
	j.pending = ids
	j.batches = Partition(ids, size)
	j.snap.Total = len(ids)
	j.snap.TotalBatches = len(j.batches)
}

// complete records a finished batch and advances progress
func (j *BatchJob) complete(batch int, n int) {
	j.snap.Batch = batch + 1
	j.snap.Completed += n
	j.snap.Progress = Progress(j.snap.Completed, j.snap.Total)
	j.snap.UpdatedAt = j.now()
}

func (j *BatchJob) finish(outcome Outcome, message string) {
	finished := j.now()
	j.snap.State = StateIdle
	j.snap.Outcome = outcome
	j.snap.Message = message
	j.snap.UpdatedAt = finished
	j.snap.CompletedAt = &finished
}

func (j *BatchJob) fail(err error) {
	j.finish(OutcomeFailed, err.Error())
	j.snap.Error = err.Error()
}

// Snapshot returns a copy of the current run state
func (j *BatchJob) Snapshot() Snapshot {
	s := j.snap
	if s.Cleanup != nil {
		report := *s.Cleanup
		s.Cleanup = &report
	}
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		s.CompletedAt = &completed
	}
	return s
}

// Partition splits ids into consecutive batches of size; the last may be smaller
func Partition(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// Progress returns completed/total as a percentage capped at 100
func Progress(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return min(100, float64(completed)/float64(total)*100)
}
