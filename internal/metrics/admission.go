package metrics

import "github.com/prometheus/client_golang/prometheus"

// Admission and collaborator Prometheus metrics.
var (
	AdmissionDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imitune",
			Name:      "admission_decisions_total",
			Help:      "Admission outcomes per endpoint",
		},
		[]string{"endpoint", "outcome"}, // continue, preflight, origin_denied, method_denied, rate_limited
	)

	RateLimitDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imitune",
			Name:      "ratelimit_degraded_total",
			Help:      "Requests admitted without a rate-limit verdict",
		},
		[]string{"endpoint", "reason"}, // unconfigured, error
	)

	CollaboratorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imitune",
			Name:      "collaborator_duration_seconds",
			Help:      "Outbound call duration per external collaborator",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"collaborator", "status"}, // vector_index|blob_store|ratelimit, ok|error
	)

	FeedbackOrphanedAudioTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imitune",
			Name:      "feedback_orphaned_audio_total",
			Help:      "Audio blobs written without a metadata record",
		},
	)
)

var admissionMetricsRegistered bool

// RegisterAdmissionMetrics registers admission and collaborator metrics. Must be called once from main.
func RegisterAdmissionMetrics() {
	if admissionMetricsRegistered {
		return
	}
	prometheus.MustRegister(AdmissionDecisionsTotal)
	prometheus.MustRegister(RateLimitDegradedTotal)
	prometheus.MustRegister(CollaboratorDuration)
	prometheus.MustRegister(FeedbackOrphanedAudioTotal)
	admissionMetricsRegistered = true
}

// StatusLabel maps an error to the collaborator status label.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
