// Package metrics provides Prometheus instrumentation for the resale
// policy engine.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickettoken",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tickettoken",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ValidationsTotal counts resale validations by outcome.
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickettoken",
			Name:      "resale_validations_total",
			Help:      "Total resale validations by outcome (allowed/rejected).",
		},
		[]string{"outcome"},
	)

	// RejectionsTotal counts rejected resales by reason.
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickettoken",
			Name:      "resale_rejections_total",
			Help:      "Total rejected resales by reason.",
		},
		[]string{"reason"},
	)

	// TransfersRecordedTotal counts transfers appended to the history.
	TransfersRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tickettoken",
		Name:      "transfers_recorded_total",
		Help:      "Total transfers recorded.",
	})

	// FraudAssessmentsTotal counts fraud screenings by recommended action.
	FraudAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickettoken",
			Name:      "fraud_assessments_total",
			Help:      "Total fraud assessments by recommended action.",
		},
		[]string{"action"},
	)

	// ScalpingAssessmentsTotal counts scalping scorings by risk level.
	ScalpingAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickettoken",
			Name:      "scalping_assessments_total",
			Help:      "Total scalping assessments by risk level.",
		},
		[]string{"level"},
	)

	// BlocksCreatedTotal counts resale blocks placed on users.
	BlocksCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tickettoken",
		Name:      "resale_blocks_created_total",
		Help:      "Total resale blocks created.",
	})

	// PolicyCacheHits counts resolver cache hits and misses.
	PolicyCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickettoken",
			Name:      "policy_cache_requests_total",
			Help:      "Policy resolver cache requests by result (hit/miss).",
		},
		[]string{"result"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tickettoken", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tickettoken", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tickettoken", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tickettoken", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ValidationsTotal,
		RejectionsTotal,
		TransfersRecordedTotal,
		FraudAssessmentsTotal,
		ScalpingAssessmentsTotal,
		BlocksCreatedTotal,
		PolicyCacheHits,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// ObserveValidation records the outcome of one resale validation.
func ObserveValidation(allowed bool, reason string) {
	if allowed {
		ValidationsTotal.WithLabelValues("allowed").Inc()
		return
	}
	ValidationsTotal.WithLabelValues("rejected").Inc()
	RejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveFraud records the outcome of one fraud assessment.
func ObserveFraud(action string) {
	FraudAssessmentsTotal.WithLabelValues(action).Inc()
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
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
