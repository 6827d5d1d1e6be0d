package metrics

import "time"

// RunEventMetric is one progress snapshot of an update run
type RunEventMetric struct {
	Timestamp  time.Time
	RunID      string
	Instrument string
	State      string
	Outcome    string
	Message    string
	Progress   float64
	Completed  int
	Total      int
	Ingested   int
}

func (m *RunEventMetric) TableName() string {
	return "update_run_events"
}

func (m *RunEventMetric) Columns() []string {
	return []string{
		"timestamp", "run_id", "stock_code", "state", "outcome",
		"message", "progress", "completed", "total", "ingested",
	}
}

func (m *RunEventMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.RunID,
		m.Instrument,
		m.State,
		m.Outcome,
		m.Message,
		m.Progress,
		uint32(m.Completed),
		uint32(m.Total),
		uint32(m.Ingested),
	}
}

// UpstreamCallMetric records one call to an external data or model provider
type UpstreamCallMetric struct {
	Timestamp  time.Time
	Service    string
	Instrument string
	DurationMs int
	Success    bool
}

func (m *UpstreamCallMetric) TableName() string {
	return "upstream_calls"
}

func (m *UpstreamCallMetric) Columns() []string {
	return []string{"timestamp", "service", "stock_code", "duration_ms", "success"}
}

func (m *UpstreamCallMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.Service,
		m.Instrument,
		uint32(m.DurationMs),
		m.Success,
	}
}
