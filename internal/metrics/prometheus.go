// Package metrics exposes Prometheus metrics for the bridge daemon.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boymaas/atomic-bridge/bridge"
)

// Metrics holds all Prometheus metrics for the bridge daemon.
type Metrics struct {
	eventsTotal     *prometheus.CounterVec
	warningsTotal   *prometheus.CounterVec
	swapActions     *prometheus.CounterVec
	activeSwaps     *prometheus.GaugeVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_events_total",
				Help: "Externally visible coordinator events",
			},
			[]string{"side", "kind"},
		),
		warningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_warnings_total",
				Help: "Coordinator warnings",
			},
			[]string{"side", "kind"},
		),
		swapActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_swap_actions_total",
				Help: "Swap action outcomes by direction",
			},
			[]string{"direction", "outcome"},
		),
		activeSwaps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_active_swaps",
				Help: "In-flight swaps per direction",
			},
			[]string{"direction"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_http_requests_total",
				Help: "Total number of status API requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_http_request_duration_seconds",
				Help:    "Status API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}

	reg.MustRegister(
		m.eventsTotal,
		m.warningsTotal,
		m.swapActions,
		m.activeSwaps,
		m.requestsTotal,
		m.requestDuration,
	)
	return m
}

// RecordEvent counts one externally visible event.
func (m *Metrics) RecordEvent(side, kind string) {
	m.eventsTotal.WithLabelValues(side, kind).Inc()
}

// RecordWarning counts one coordinator warning.
func (m *Metrics) RecordWarning(side, kind string) {
	m.warningsTotal.WithLabelValues(side, kind).Inc()
}

// SetActiveSwaps updates the in-flight gauge for a direction.
func (m *Metrics) SetActiveSwaps(direction string, n int) {
	m.activeSwaps.WithLabelValues(direction).Set(float64(n))
}

// SwapEventHook returns a hook counting action outcomes; install it with
// bridge.WithSwapEventHook.
func (m *Metrics) SwapEventHook() bridge.SwapEventHook {
	return func(dir bridge.Direction, kind bridge.ActiveSwapEventKind, _ string, _ error) {
		m.swapActions.WithLabelValues(dir.String(), kind.String()).Inc()
	}
}

// Middleware returns a Gin middleware that records request metrics.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		m.requestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), status).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, c.FullPath()).Observe(duration)
	}
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
