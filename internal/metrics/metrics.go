package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	scans         *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	scanFailures  prometheus.Counter
	publishErrors prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the instruments on reg. Passing a fresh registry keeps tests
// isolated from the default one.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatehouse",
			Name:      "scans_total",
			Help:      "Card scans evaluated, by outcome and direction.",
		}, []string{"outcome", "direction"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gatehouse",
			Name:      "scan_duration_seconds",
			Help:      "Time spent evaluating a scan, including the store transaction.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 3},
		}),
		scanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatehouse",
			Name:      "scan_store_failures_total",
			Help:      "Scans rejected because the store was unavailable.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatehouse",
			Name:      "event_publish_errors_total",
			Help:      "Access events that could not be published.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatehouse",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gatehouse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.scans,
		m.scanDuration,
		m.scanFailures,
		m.publishErrors,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) ObserveScan(outcome, direction string, d time.Duration) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome, direction).Inc()
	m.scanDuration.Observe(d.Seconds())
}

func (m *Metrics) IncScanFailure() {
	if m == nil {
		return
	}
	m.scanFailures.Inc()
}

func (m *Metrics) IncPublishError() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
