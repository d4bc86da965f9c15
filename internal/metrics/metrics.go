// Package metrics provides Prometheus metrics for the wsio server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wsio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	storageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsio_storage_operations_total",
			Help: "Object storage operations by type and outcome",
		},
		[]string{"op", "outcome"},
	)

	storageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wsio_storage_operation_duration_seconds",
			Help:    "Object storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	credentialExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsio_credential_exchanges_total",
			Help: "Secure-token exchanges by outcome",
		},
		[]string{"outcome"},
	)

	indexDocumentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wsio_index_documents_total",
			Help: "Documents submitted to the search index",
		},
	)

	indexDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wsio_index_documents_dropped_total",
			Help: "Documents dropped because the indexing queue was full",
		},
	)

	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsio_auth_attempts_total",
			Help: "Authentication attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveHTTPRequest records one handled HTTP request.
func ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveStorageOp records one object storage operation.
func ObserveStorageOp(op string, d time.Duration, ok bool) {
	storageOpsTotal.WithLabelValues(op, outcome(ok)).Inc()
	storageOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// CountCredentialExchange records one secure-token exchange.
func CountCredentialExchange(ok bool) {
	credentialExchangesTotal.WithLabelValues(outcome(ok)).Inc()
}

// CountIndexed records documents handed to the search index.
func CountIndexed(n int) {
	indexDocumentsTotal.Add(float64(n))
}

// CountIndexDropped records documents dropped from a full indexing queue.
func CountIndexDropped(n int) {
	indexDroppedTotal.Add(float64(n))
}

// CountAuthAttempt records one authentication attempt.
func CountAuthAttempt(ok bool) {
	authAttemptsTotal.WithLabelValues(outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
