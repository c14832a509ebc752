// Package metrics exposes Prometheus instrumentation for the user list.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes used as the "outcome" label.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeStale  = "stale"
)

// Collector owns a private registry so that tests and multiple instances never
// collide on the global one. A nil *Collector is valid and records nothing.
type Collector struct {
	registry  *prometheus.Registry
	fetches   *prometheus.CounterVec
	latency   prometheus.Histogram
	storeSize prometheus.Gauge
	deleted   prometheus.Counter
}

// NewCollector creates and registers the user list metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "randomuser_page_fetch_total",
			Help: "page fetches by outcome.",
		}, []string{"kind", "outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "randomuser_page_fetch_seconds",
			Help:    "page fetch latency.",
			Buckets: prometheus.DefBuckets,
		}),
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "randomuser_store_users",
			Help: "users currently held in the list store.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "randomuser_users_deleted_total",
			Help: "users removed through confirmed deletes.",
		}),
	}
	c.registry.MustRegister(c.fetches, c.latency, c.storeSize, c.deleted)
	return c
}

// ObserveFetch records one page fetch. kind is "refresh" or "fetch_more".
func (c *Collector) ObserveFetch(kind, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.fetches.WithLabelValues(kind, outcome).Inc()
	c.latency.Observe(d.Seconds())
}

// SetStoreSize records how many users the list currently holds.
func (c *Collector) SetStoreSize(n int) {
	if c == nil {
		return
	}
	c.storeSize.Set(float64(n))
}

// AddDeleted counts users removed by a confirmed delete.
func (c *Collector) AddDeleted(n int) {
	if c == nil {
		return
	}
	c.deleted.Add(float64(n))
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
