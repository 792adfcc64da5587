package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/michellexbui/BirdBeaks/internal/models"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdbeaks_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "birdbeaks_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdbeaks_runs_total",
			Help: "Total number of interpolation runs by terminal status.",
		},
		[]string{"status"},
	)

	stepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "birdbeaks_step_duration_seconds",
			Help:    "Wall time spent interpolating one time step.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	cellsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdbeaks_cells_total",
			Help: "Total number of grid cells produced, by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(stepDurationSeconds)
	prometheus.MustRegister(cellsTotal)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration for each request
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(path, c.Request.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, c.Request.Method).Observe(duration)
	}
}

// ObserveRun records the terminal status of a run
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveStep records the wall time of one interpolated step and tallies
// its cell statuses
func ObserveStep(est *models.FieldEstimate, elapsed time.Duration) {
	stepDurationSeconds.Observe(elapsed.Seconds())
	for status, n := range est.CountByStatus() {
		cellsTotal.WithLabelValues(string(status)).Add(float64(n))
	}
}
