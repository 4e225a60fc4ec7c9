// Package metrics holds the Prometheus instruments for dream processing and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dreamland"

// Processing results recorded by DreamProcessed.
const (
	ResultProcessed = "processed"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

// Collector owns a private registry and every instrument the service exports.
// All methods are safe on a nil *Collector, which records nothing.
type Collector struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	dreamsCreated    prometheus.Counter
	dreamsProcessed  *prometheus.CounterVec
	extractions      *prometheus.CounterVec
	reconcileSeconds prometheus.Histogram
	locationsMerged  prometheus.Counter
	locationsSplit   prometheus.Counter
	queueDropped     prometheus.Counter
}

// New creates a Collector with a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		dreamsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dreams_created_total",
			Help:      "Total number of dreams recorded",
		}),
		dreamsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dreams_processed_total",
			Help:      "Dream reconciliation attempts by result",
		}, []string{"result"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extractions by source (service or fallback)",
		}, []string{"source"}),
		reconcileSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent reconciling one dream into the world model",
			Buckets:   prometheus.DefBuckets,
		}),
		locationsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_merged_total",
			Help:      "Total number of manual location merges",
		}),
		locationsSplit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_split_total",
			Help:      "Total number of manual location splits",
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Processing requests dropped because the queue was full",
		}),
	}
	c.registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.dreamsCreated,
		c.dreamsProcessed,
		c.extractions,
		c.reconcileSeconds,
		c.locationsMerged,
		c.locationsSplit,
		c.queueDropped,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) DreamCreated() {
	if c != nil {
		c.dreamsCreated.Inc()
	}
}

func (c *Collector) DreamProcessed(result string) {
	if c != nil {
		c.dreamsProcessed.WithLabelValues(result).Inc()
	}
}

func (c *Collector) Extraction(source string) {
	if c != nil {
		c.extractions.WithLabelValues(source).Inc()
	}
}

func (c *Collector) ObserveReconcile(d time.Duration) {
	if c != nil {
		c.reconcileSeconds.Observe(d.Seconds())
	}
}

func (c *Collector) LocationsMerged() {
	if c != nil {
		c.locationsMerged.Inc()
	}
}

func (c *Collector) LocationsSplit() {
	if c != nil {
		c.locationsSplit.Inc()
	}
}

func (c *Collector) QueueDropped() {
	if c != nil {
		c.queueDropped.Inc()
	}
}

// Middleware records request count and latency labelled by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
