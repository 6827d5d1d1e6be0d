package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdateRuns counts finished update runs by outcome
	UpdateRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fusion",
		Name:      "update_runs_total",
		Help:      "Finished update runs by outcome.",
	}, []string{"outcome"})

	// RunsInFlight is the number of update runs currently executing
	RunsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fusion",
		Name:      "update_runs_in_flight",
		Help:      "Update runs currently executing.",
	})

	// BatchDuration observes scoring batch latency
	BatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fusion",
		Name:      "scoring_batch_duration_seconds",
		Help:      "Latency of one scoring batch call.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"status"})

	// DocumentsScored counts documents scored through the orchestrator
	DocumentsScored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fusion",
		Name:      "documents_scored_total",
		Help:      "Documents scored by completed batches.",
	})

	// DocumentsIngested counts new raw documents stored by ingestion
	DocumentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fusion",
		Name:      "documents_ingested_total",
		Help:      "New raw documents stored, by source kind.",
	}, []string{"source"})

	// UpstreamErrors counts failed calls to external services
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fusion",
		Name:      "upstream_errors_total",
		Help:      "Failed calls to external services.",
	}, []string{"service"})

	// HTTPRequests counts API requests by route and status code
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fusion",
		Name:      "http_requests_total",
		Help:      "API requests by method, route and status.",
	}, []string{"method", "route", "status"})
)
