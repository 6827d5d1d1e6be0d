package clickhouse

import (
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/metrics"
)

// RunEventReporter appends every run snapshot to the update_run_events table
type RunEventReporter struct {
	buffer metrics.Recorder
}

// NewRunEventReporter creates a reporter writing through a metrics recorder
func NewRunEventReporter(buffer metrics.Recorder) *RunEventReporter {
	return &RunEventReporter{buffer: buffer}
}

// Report implements orchestrator.Reporter
func (r *RunEventReporter) Report(s orchestrator.Snapshot) {
	event := &metrics.RunEventMetric{
		Timestamp:  s.UpdatedAt,
		RunID:      s.RunID,
		Instrument: s.Instrument,
		State:      string(s.State),
		Outcome:    string(s.Outcome),
		Message:    s.Message,
		Progress:   s.Progress,
		Completed:  s.Completed,
		Total:      s.Total,
		Ingested:   s.Ingested,
	}
	if err := r.buffer.Add(event); err != nil {
		logger.Warn("failed to buffer run event", zap.String("run_id", s.RunID), zap.Error(err))
	}
}
