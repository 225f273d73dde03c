package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Tool metrics
var (
	ConvertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marimoproxy_converts_total",
			Help: "Total notebook conversions",
		},
		[]string{"result"},
	)

	ConvertDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marimoproxy_convert_duration_seconds",
			Help:    "Time spent in marimo convert",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
	)

	RestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marimoproxy_restarts_total",
			Help: "Total restart requests",
		},
		[]string{"result"},
	)
)

// Process metrics
var (
	SpawnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marimoproxy_spawns_total",
			Help: "Total marimo process spawns",
		},
		[]string{"result"},
	)

	SpawnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marimoproxy_spawn_duration_seconds",
			Help:    "Time from spawn until marimo accepts connections",
			Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
	)

	ProcessRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "marimoproxy_process_running",
			Help: "1 while a marimo process is tracked, 0 otherwise",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marimoproxy_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marimoproxy_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		ConvertsTotal,
		ConvertDuration,
		RestartsTotal,
		SpawnsTotal,
		SpawnDuration,
		ProcessRunning,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EchoMiddleware returns Echo middleware that instruments HTTP requests.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			HTTPRequestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Inc()
			HTTPRequestDuration.WithLabelValues(c.Request().Method, c.Path()).
				Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// StartMetricsServer starts a standalone HTTP server serving /metrics on the given address.
func StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			// metrics are non-critical, keep serving the proxy
			log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return srv
}
