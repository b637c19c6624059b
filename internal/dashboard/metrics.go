package dashboard

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmerrifield20/rtcmas/internal/response"
)

var (
	rtcmasRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcmas_http_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	rtcmasRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rtcmas_http_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	rtcmasIncidentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcmas_incidents_total",
		Help: "Total incidents processed by containment action.",
	}, []string{"action"})

	rtcmasRiskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rtcmas_incident_risk_score",
		Help:    "Distribution of incident risk scores.",
		Buckets: []float64{1, 2, 4, 6, 9, 12, 16},
	})

	rtcmasLedgerBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtcmas_ledger_blocks",
		Help: "Number of blocks in the incident ledger, genesis included.",
	})

	rtcmasAlertDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcmas_alert_deliveries_total",
		Help: "Total alert webhook delivery attempts by result.",
	}, []string{"status"})

	rtcmasHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtcmas_health_checks_total",
		Help: "Total health probe runs by probe and result.",
	}, []string{"probe", "result"})
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
		rtcmasRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		rtcmasRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordIncident records one processed incident. Its signature matches
// pipeline.MetricsRecorder.
func RecordIncident(action response.Action, riskScore int) {
	rtcmasIncidentsTotal.WithLabelValues(action.String()).Inc()
	rtcmasRiskScore.Observe(float64(riskScore))
}

// SetLedgerBlocks sets the ledger length gauge.
func SetLedgerBlocks(n int) {
	rtcmasLedgerBlocks.Set(float64(n))
}

// RecordAlertDelivery records an alert webhook delivery attempt.
func RecordAlertDelivery(success bool) {
	rtcmasAlertDeliveriesTotal.WithLabelValues(result(success)).Inc()
}

// RecordHealthCheck records a health probe result.
func RecordHealthCheck(probe string, success bool) {
	rtcmasHealthChecksTotal.WithLabelValues(probe, result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
