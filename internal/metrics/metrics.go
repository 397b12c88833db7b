package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes estimator metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	ReadingsTotal          prometheus.Counter
	EstimatesTotal         prometheus.Counter
	NonFiniteTotal         prometheus.Counter
	PendingObservations    prometheus.Gauge
	SolveDuration          prometheus.Histogram
	SettingsUpdates        *prometheus.CounterVec
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPDurationSeconds    *prometheus.HistogramVec
	StreamReconnectsTotal  prometheus.Counter
	BroadcastClientsActive prometheus.Gauge
}

// NewCollector registers the estimator metrics against reg. A nil reg uses
// the default registerer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		ReadingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trilat_readings_total",
			Help: "Beacon readings ingested by the observation buffer.",
		}),
		EstimatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trilat_estimates_total",
			Help: "Position estimates produced from completed batches.",
		}),
		NonFiniteTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trilat_nonfinite_estimates_total",
			Help: "Position estimates with a NaN or infinite coordinate.",
		}),
		PendingObservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trilat_pending_observations",
			Help: "Observations held in the in-progress batch.",
		}),
		SolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trilat_solve_duration_seconds",
			Help:    "Duration of a single trilateration solve.",
			Buckets: []float64{1e-8, 1e-7, 1e-6, 1e-5, 1e-4, 1e-3},
		}),
		SettingsUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trilat_settings_updates_total",
			Help: "Settings update requests by result.",
		}, []string{"result"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trilat_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "code"}),
		HTTPDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trilat_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		StreamReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trilat_stream_reconnects_total",
			Help: "Reconnections of the reading stream.",
		}),
		BroadcastClientsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trilat_broadcast_clients_active",
			Help: "Connected estimate stream clients.",
		}),
	}

	for name, col := range map[string]prometheus.Collector{
		"trilat_readings_total":            c.ReadingsTotal,
		"trilat_estimates_total":           c.EstimatesTotal,
		"trilat_nonfinite_estimates_total": c.NonFiniteTotal,
		"trilat_pending_observations":      c.PendingObservations,
		"trilat_solve_duration_seconds":    c.SolveDuration,
		"trilat_settings_updates_total":    c.SettingsUpdates,
		"trilat_http_requests_total":       c.HTTPRequestsTotal,
		"trilat_http_duration_seconds":     c.HTTPDurationSeconds,
		"trilat_stream_reconnects_total":   c.StreamReconnectsTotal,
		"trilat_broadcast_clients_active":  c.BroadcastClientsActive,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}

	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler serves the collector's gatherer in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Gatherer(), promhttp.HandlerOpts{})
}

func (c *Collector) ObserveReading() {
	if c == nil {
		return
	}
	c.ReadingsTotal.Inc()
}

func (c *Collector) ObserveEstimate(finite bool, solve time.Duration) {
	if c == nil {
		return
	}
	c.EstimatesTotal.Inc()
	if !finite {
		c.NonFiniteTotal.Inc()
	}
	c.SolveDuration.Observe(solve.Seconds())
}

func (c *Collector) SetPending(n int) {
	if c == nil {
		return
	}
	c.PendingObservations.Set(float64(n))
}

// ObserveSettingsUpdate counts a settings request; result is "applied",
// "unchanged" or "invalid".
func (c *Collector) ObserveSettingsUpdate(result string) {
	if c == nil {
		return
	}
	c.SettingsUpdates.WithLabelValues(result).Inc()
}

func (c *Collector) IncReconnects() {
	if c == nil {
		return
	}
	c.StreamReconnectsTotal.Inc()
}

func (c *Collector) SetBroadcastClients(n int) {
	if c == nil {
		return
	}
	c.BroadcastClientsActive.Set(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request count and duration for each request.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		code := strconv.Itoa(rw.statusCode)
		c.HTTPRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		c.HTTPDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(time.Since(start).Seconds())
	})
}
