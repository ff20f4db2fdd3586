package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campus_drive"

// Collector owns a private registry so tests can build as many collectors as they like.
type Collector struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	batchSize       *prometheus.HistogramVec
	batchRejections *prometheus.CounterVec
	locks           *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Applications moved by lifecycle operations.",
		}, []string{"operation"}),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of applications committed per batch operation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"operation"}),
		batchRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_rejections_total",
			Help:      "Batch operations refused before any row was touched.",
		}, []string{"reason"}),
		locks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locks_total",
			Help:      "Drives permanently locked.",
		}, []string{"reason"}),
	}
	c.registry.MustRegister(c.httpRequests, c.httpDuration, c.transitions, c.batchSize, c.batchRejections, c.locks)
	return c
}

func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) Transitions(operation string, count int) {
	if c == nil || count <= 0 {
		return
	}
	c.transitions.WithLabelValues(operation).Add(float64(count))
	c.batchSize.WithLabelValues(operation).Observe(float64(count))
}

func (c *Collector) BatchRejected(reason string) {
	if c == nil {
		return
	}
	c.batchRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) DriveLocked(reason string) {
	if c == nil {
		return
	}
	c.locks.WithLabelValues(reason).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
