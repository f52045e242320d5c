// Package metrics provides Prometheus instrumentation for the scoring pipeline.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransactionsLoaded counts transactions accepted by the loader.
	TransactionsLoaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lendscore",
		Name:      "transactions_loaded_total",
		Help:      "Total transactions accepted by the loader.",
	})

	// RecordsSkipped counts records dropped during loading by reason.
	RecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendscore",
			Name:      "records_skipped_total",
			Help:      "Total records dropped during loading by reason.",
		},
		[]string{"reason"},
	)

	// WalletsScored counts wallets that received a credit score.
	WalletsScored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lendscore",
		Name:      "wallets_scored_total",
		Help:      "Total wallets that received a credit score.",
	})

	// AnomaliesFlagged counts wallets flagged as anomalous by the model.
	AnomaliesFlagged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lendscore",
		Name:      "anomalies_flagged_total",
		Help:      "Total wallets flagged as anomalous by the model.",
	})

	// StageDuration observes pipeline stage latency by stage name.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lendscore",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"stage"},
	)

	// HTTPRequestsTotal counts dashboard HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendscore",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes dashboard request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lendscore",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		TransactionsLoaded,
		RecordsSkipped,
		WalletsScored,
		AnomaliesFlagged,
		StageDuration,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
