package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	filechainRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	filechainRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filechain_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	filechainUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_uploads_total",
		Help: "Total upload attempts by result.",
	}, []string{"result"})

	filechainLedgerEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filechain_ledger_entries_total",
		Help: "Total ledger entries appended through the API.",
	})

	filechainLedgerLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filechain_ledger_length",
		Help: "Number of entries in the ledger, including genesis.",
	})

	filechainVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_verifications_total",
		Help: "Total ledger verifications by result.",
	}, []string{"result"})

	filechainHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_health_checks_total",
		Help: "Total background integrity checks by check and result.",
	}, []string{"check", "result"})

	filechainStoreOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_store_operations_total",
		Help: "Total content store calls by operation and result.",
	}, []string{"op", "result"})

	filechainWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_webhook_deliveries_total",
		Help: "Total webhook deliveries by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		filechainRequestsTotal.WithLabelValues(method, path, status).Inc()
		filechainRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordUpload records an upload outcome. It matches upload.MetricsRecordFunc.
func RecordUpload(result string) {
	filechainUploadsTotal.WithLabelValues(result).Inc()
}

// RecordLedgerAppend records a ledger entry appended through the API.
func RecordLedgerAppend() {
	filechainLedgerEntriesTotal.Inc()
}

// RecordVerify records a ledger verification result.
func RecordVerify(valid bool) {
	if valid {
		filechainVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		filechainVerificationsTotal.WithLabelValues("invalid").Inc()
	}
}

// SetLedgerLength sets the ledger length gauge.
func SetLedgerLength(n int) {
	filechainLedgerLength.Set(float64(n))
}

// RecordStoreOp records a content store call. It matches contentstore.RecordFunc.
func RecordStoreOp(op, result string) {
	filechainStoreOpsTotal.WithLabelValues(op, result).Inc()
}

// RecordHealthCheck records a background check result. It matches
// health.MetricsRecordFunc.
func RecordHealthCheck(check string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	filechainHealthChecksTotal.WithLabelValues(check, result).Inc()
}

// RecordWebhookDelivery records a webhook delivery outcome. It matches
// webhooks.MetricsRecorder.
func RecordWebhookDelivery(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	filechainWebhookDeliveriesTotal.WithLabelValues(result).Inc()
}
