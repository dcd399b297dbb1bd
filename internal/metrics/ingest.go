package metrics

import "github.com/prometheus/client_golang/prometheus"

// Index maintenance metrics, exposed by the ingest tool.
var (
	IngestItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imitune",
			Name:      "ingest_items_total",
			Help:      "Sounds handled by index maintenance runs",
		},
		[]string{"op", "outcome"}, // upsert|delete, ok|failed|skipped
	)

	IngestBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imitune",
			Name:      "ingest_batch_duration_seconds",
			Help:      "Per-batch write duration against the vector index",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op", "status"},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers index maintenance metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestItemsTotal)
	prometheus.MustRegister(IngestBatchDuration)
	ingestMetricsRegistered = true
}
