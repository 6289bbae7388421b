// Package metrics holds the Prometheus collectors shared by the gateway, the auditor and
// the sync components.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medchain_ledger_sync_total",
		Help: "Dual-write sync outcomes by record kind and result.",
	}, []string{"kind", "result"})

	ledgerAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medchain_ledger_attempts_total",
		Help: "Ledger write attempts by transport and error class (OK on success).",
	}, []string{"transport", "class"})

	ledgerAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medchain_ledger_attempt_duration_seconds",
		Help:    "Duration of ledger write attempts, including the fallback try.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"op"})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medchain_verifications_total",
		Help: "Integrity checks by record kind and status.",
	}, []string{"kind", "status"})

	unsyncedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "medchain_unsynced_records",
		Help: "Records saved in the system of record whose last ledger sync failed or was cancelled.",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medchain_http_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medchain_http_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// RecordSync records the final outcome of a dual-write sync
func RecordSync(kind, result string) {
	ledgerSyncTotal.WithLabelValues(kind, result).Inc()
}

// RecordAttempt records one ledger write attempt
func RecordAttempt(op, transport, class string, seconds float64) {
	if class == "" {
		class = "OK"
	}
	ledgerAttemptsTotal.WithLabelValues(transport, class).Inc()
	ledgerAttemptDuration.WithLabelValues(op).Observe(seconds)
}

// RecordVerification records an integrity check result
func RecordVerification(kind, status string) {
	verificationsTotal.WithLabelValues(kind, status).Inc()
}

// SetUnsyncedRecords publishes the size of the saved-but-not-ledgered backlog
func SetUnsyncedRecords(n int) {
	unsyncedRecords.Set(float64(n))
}

// RecordHTTPRequest records one served HTTP request
func RecordHTTPRequest(method, path, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// Handler serves the default Prometheus registry
func Handler() http.Handler {
	return promhttp.Handler()
}
