package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/milan604/restfetch/pkg/fetch"
)

// PrometheusCollector is a fetch.Observer exporting call metrics. It is safe
// for concurrent use.
type PrometheusCollector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authRetries     *prometheus.CounterVec
	inFlight        prometheus.Gauge

	registry *prometheus.Registry
}

// NewPrometheusCollector registers the restfetch metrics on registry, or on
// a fresh registry when nil.
func NewPrometheusCollector(registry *prometheus.Registry) *PrometheusCollector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &PrometheusCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restfetch_requests_total",
				Help: "Total number of wrapper call attempts",
			},
			[]string{"method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "restfetch_request_duration_seconds",
				Help:    "Duration of wrapper call attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		authRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restfetch_auth_retries_total",
				Help: "Calls that received 401, by handler outcome",
			},
			[]string{"outcome"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "restfetch_in_flight_requests",
			Help: "Wrapper call attempts currently in flight",
		}),
		registry: registry,
	}
}

func (c *PrometheusCollector) StartCall(ctx context.Context, info fetch.CallInfo) (context.Context, func(int, error)) {
	start := time.Now()
	c.inFlight.Inc()
	return ctx, func(status int, _ error) {
		c.inFlight.Dec()
		c.requestDuration.WithLabelValues(info.Method).Observe(time.Since(start).Seconds())
		c.requestsTotal.WithLabelValues(info.Method, statusLabel(status)).Inc()
	}
}

func (c *PrometheusCollector) AuthRetry(_ context.Context, _ fetch.CallInfo, outcome fetch.AuthRetryOutcome) {
	c.authRetries.WithLabelValues(string(outcome)).Inc()
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// statusLabel is "error" for attempts that never got a response.
func statusLabel(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status)
}

var _ fetch.Observer = (*PrometheusCollector)(nil)
