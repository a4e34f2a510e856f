// mpesa-gateway/pkg/metrics/metrics.go
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Label "operation" lets one query compare the six M-Pesa families
	OperationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpesa",
			Name:      "requests_total",
			Help:      "Total gateway operations per family",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mpesa",
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration of gateway operations",
			// the upstream call dominates, so buckets reach well into seconds
			Buckets: []float64{
				0.05, 0.1, 0.2, 0.3, 0.5, 0.8,
				1.2, 2, 3, 5, 8, 13, 21, 30,
			},
		},
		[]string{"operation", "status"},
	)

	// Orchestration cycles, counted separately from HTTP requests: the
	// middleware owns requests_total, the orchestrator owns operations_total.
	OperationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpesa",
			Name:      "operations_total",
			Help:      "Orchestration cycles per family by outcome",
		},
		[]string{"operation", "status"},
	)

	OrchestrationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mpesa",
			Name:      "operation_duration_seconds",
			Help:      "Duration of the orchestration cycle, excluding HTTP overhead",
			Buckets: []float64{
				0.05, 0.1, 0.2, 0.3, 0.5, 0.8,
				1.2, 2, 3, 5, 8, 13, 21, 30,
			},
		},
		[]string{"operation", "status"},
	)

	AuditQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mpesa",
		Name:      "audit_queue_depth",
		Help:      "Audit records waiting for the drain worker",
	})

	AuditRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpesa",
			Name:      "audit_records_total",
			Help:      "Audit records by final disposition",
		},
		[]string{"outcome"}, // persisted / failed / fallback
	)
)

func init() {
	prometheus.MustRegister(OperationRequestsTotal, OperationDuration,
		OperationOutcomesTotal, OrchestrationDuration, AuditQueueDepth, AuditRecordsTotal)
}

// Helpers so handlers and the dispatcher stay tidy
func IncRequest(operation, status string) {
	OperationRequestsTotal.WithLabelValues(operation, status).Inc()
}
func ObserveDuration(operation, status string, seconds float64) {
	OperationDuration.WithLabelValues(operation, status).Observe(seconds)
}
func IncOperation(operation, status string) {
	OperationOutcomesTotal.WithLabelValues(operation, status).Inc()
}
func ObserveOperation(operation, status string, seconds float64) {
	OrchestrationDuration.WithLabelValues(operation, status).Observe(seconds)
}
func SetAuditQueueDepth(n int) {
	AuditQueueDepth.Set(float64(n))
}
func IncAudit(outcome string) {
	AuditRecordsTotal.WithLabelValues(outcome).Inc()
}
