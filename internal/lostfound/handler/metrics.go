package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/lostfound/internal/itemledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	lfRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	lfRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lostfound_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	lfLedgerMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_ledger_mutations_total",
		Help: "Ledger mutations by operation and result.",
	}, []string{"op", "result"})

	lfLedgerEntriesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lostfound_ledger_entries_appended_total",
		Help: "Total ledger entries appended, genesis included.",
	})

	lfChainVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_chain_verifications_total",
		Help: "Chain integrity checks by verdict.",
	}, []string{"verdict"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		lfRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		lfRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordLedgerMutation counts one ledger mutation. It has the shape of
// itemledger.MutationFunc, so it can be passed to itemledger.WithMutationHook.
func RecordLedgerMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	lfLedgerMutationsTotal.WithLabelValues(op, result).Inc()
	if err == nil && (op == itemledger.OpAppend || op == itemledger.OpSeed) {
		lfLedgerEntriesAppended.Inc()
	}
}

// RecordChainVerification counts one integrity check.
func RecordChainVerification(valid bool) {
	if valid {
		lfChainVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		lfChainVerificationsTotal.WithLabelValues("broken").Inc()
	}
}

var _ itemledger.MutationFunc = RecordLedgerMutation
