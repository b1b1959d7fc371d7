// Package metrics provides Prometheus metrics for migration runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row outcomes used as the status label of RowsWrittenTotal
const (
	StatusInserted = "inserted"
	StatusSkipped  = "skipped"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

var (
	// ChunksReadTotal tracks chunks read from the source
	ChunksReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "extract",
			Name:      "chunks_total",
			Help:      "Total number of chunks read from the source database",
		},
		[]string{"table"},
	)

	// RowsReadTotal tracks rows read from the source
	RowsReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "extract",
			Name:      "rows_total",
			Help:      "Total number of rows read from the source database",
		},
		[]string{"table"},
	)

	// ExtractErrorsTotal tracks source read failures that cut a table short
	ExtractErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "extract",
			Name:      "errors_total",
			Help:      "Total number of source read failures",
		},
		[]string{"table"},
	)

	// RowsWrittenTotal tracks the outcome of every row handed to the pipeline
	RowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "load",
			Name:      "rows_total",
			Help:      "Total number of rows processed by outcome",
		},
		[]string{"table", "status"},
	)

	// WriteDuration tracks single row insert latency
	WriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "load",
			Name:      "write_duration_seconds",
			Help:      "Duration of destination inserts in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
		},
		[]string{"table"},
	)

	// TableDuration tracks how long each table took to migrate
	TableDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "load",
			Name:      "table_duration_seconds",
			Help:      "Duration of a table migration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"table"},
	)

	// VerificationsTotal tracks consistency check results
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "verify",
			Name:      "checks_total",
			Help:      "Total number of consistency checks by table and result",
		},
		[]string{"table", "result"},
	)
)
