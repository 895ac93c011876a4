package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_dashboard_requests_total",
			Help: "Total requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_dashboard_request_duration_seconds",
			Help:    "Request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	SourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_dashboard_source_fetches_total",
			Help: "Forecast fetches per source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	ForecastAvailability = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_dashboard_forecast_availability_total",
			Help: "Forecasts served per availability (live, demo, local_fallback).",
		},
		[]string{"availability"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_dashboard_cache_lookups_total",
			Help: "Forecast cache lookups by result.",
		},
		[]string{"result"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "weather_dashboard_active_sessions",
			Help: "Dashboard sessions currently held in memory.",
		},
	)

	DateCorrections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weather_dashboard_date_corrections_total",
			Help: "Selections that fell back to the first forecast day.",
		},
	)

	StaleResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weather_dashboard_stale_responses_total",
			Help: "Location fetches discarded because a newer request superseded them.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		SourceFetches,
		ForecastAvailability,
		CacheLookups,
		ActiveSessions,
		DateCorrections,
		StaleResponses,
	)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware counts requests per chi route pattern and records latency
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		RequestCounter.WithLabelValues(route, r.Method, strconv.Itoa(rw.status)).Inc()
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
