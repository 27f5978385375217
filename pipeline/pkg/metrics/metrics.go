package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sensorlake_pipeline_build_info",
			Help: "Build information of the sensorlake pipeline",
		},
		[]string{"version", "commit", "date"},
	)

	RowsReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorlake_pipeline_rows_read_total",
			Help: "Total number of rows read from sources",
		},
		[]string{"source"},
	)

	RowsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorlake_pipeline_rows_dropped_total",
			Help: "Total number of rows removed by a cleaning stage",
		},
		[]string{"source", "stage"},
	)

	ValuesImputedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorlake_pipeline_values_imputed_total",
			Help: "Total number of missing values filled by imputation",
		},
		[]string{"source", "column"},
	)

	ValidationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorlake_pipeline_validation_errors_total",
			Help: "Total number of field validation failures",
		},
		[]string{"field", "rule"},
	)

	RowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorlake_pipeline_rows_written_total",
			Help: "Total number of rows written to a sink table",
		},
		[]string{"sink", "table"},
	)

	RowsEnrichedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorlake_pipeline_rows_enriched_total",
			Help: "Total number of rows joined against the device registry",
		},
		[]string{"result"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorlake_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorlake_pipeline_http_requests_total",
			Help: "Total number of HTTP requests to the metrics listener",
		},
		[]string{"method", "path", "status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sensorlake_pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 0.01s to ~82s
		},
	)
)
