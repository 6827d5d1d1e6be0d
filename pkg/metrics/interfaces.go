package metrics

import "context"

// Row is one record of an analytics table. RunEventMetric and
// UpstreamCallMetric are the rows this service writes.
type Row interface {
	TableName() string
	// Columns returns column names in the order of Values
	Columns() []string
	Values() []interface{}
}

// Writer inserts a batch of rows that all belong to tableName
type Writer interface {
	Write(ctx context.Context, tableName string, rows []Row) error
}

// Recorder accepts rows for asynchronous writing
type Recorder interface {
	Add(row Row) error
}
