package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the region manager and its
// HTTP surface.
type Metrics struct {
	// Region lifecycle
	RegionsActive    prometheus.Gauge
	RegionsCreated   prometheus.Counter
	RegionsDestroyed prometheus.Counter

	// Arena usage
	ArenaUsedBytes prometheus.Gauge

	// Payload I/O
	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter

	// Advisory lock
	LockWaitSeconds prometheus.Histogram

	// HTTP surface
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector on a dedicated registry so tests
// can build multiple collectors without duplicate-registration panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RegionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shmd_regions_active",
			Help: "Number of in-use shared memory regions",
		}),
		RegionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "shmd_regions_created_total",
			Help: "Total regions created",
		}),
		RegionsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Name: "shmd_regions_destroyed_total",
			Help: "Total regions destroyed",
		}),
		ArenaUsedBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shmd_arena_used_bytes",
			Help: "Arena bytes currently reserved, including alignment padding",
		}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "shmd_bytes_read_total",
			Help: "Total payload bytes copied out of regions",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "shmd_bytes_written_total",
			Help: "Total payload bytes copied into regions",
		}),
		LockWaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shmd_lock_wait_seconds",
			Help:    "Time spent acquiring region advisory locks",
			Buckets: []float64{.0001, .001, .01, .05, .1, .5, 1, 5},
		}),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shmd_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shmd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and durations per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := statusLabel(c.Writer.Status())
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
