// Package metrics holds the console's Prometheus collectors. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "asset_console"

type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	BackendRequests *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec

	Refreshes       *prometheus.CounterVec
	RefreshJoins    prometheus.Counter
	RefreshDuration prometheus.Gauge

	PushEvents *prometheus.CounterVec
	PushState  *prometheus.GaugeVec

	Mutations     *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Console API requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Console API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hierarchy_refreshes_total",
			Help:      "Hierarchy refresh round trips by resulting status.",
		}, []string{"status"}),
		RefreshJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hierarchy_refresh_joins_total",
			Help:      "Refresh calls that joined an in-flight round trip.",
		}),
		RefreshDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hierarchy_last_refresh_seconds",
			Help:      "Duration of the most recent refresh round trip.",
		}),
		PushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_events_total",
			Help:      "Push events received by category.",
		}, []string{"category"}),
		PushState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_connection_state",
			Help:      "1 for the current push connection state.",
		}, []string{"state"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Hierarchy and signal mutations by operation and result.",
		}, []string{"op", "result"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_dropped_total",
			Help:      "Bus events a slow subscriber missed.",
		}, []string{"type"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.BackendRequests,
		c.BackendDuration,
		c.Refreshes,
		c.RefreshJoins,
		c.RefreshDuration,
		c.PushEvents,
		c.PushState,
		c.Mutations,
		c.EventsDropped,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method string, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveBackend(op string, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.BackendRequests.WithLabelValues(op, outcome).Inc()
	c.BackendDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveRefresh(status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Refreshes.WithLabelValues(status).Inc()
	c.RefreshDuration.Set(elapsed.Seconds())
}

func (c *Collector) RefreshJoined() {
	if c == nil {
		return
	}
	c.RefreshJoins.Inc()
}

func (c *Collector) PushEvent(category string) {
	if c == nil {
		return
	}
	c.PushEvents.WithLabelValues(category).Inc()
}

// SetPushState marks state as current and clears the others.
func (c *Collector) SetPushState(state string, all ...string) {
	if c == nil {
		return
	}
	for _, s := range all {
		c.PushState.WithLabelValues(s).Set(0)
	}
	c.PushState.WithLabelValues(state).Set(1)
}

func (c *Collector) Mutation(op string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Mutations.WithLabelValues(op, result).Inc()
}

func (c *Collector) EventDropped(eventType string) {
	if c == nil {
		return
	}
	c.EventsDropped.WithLabelValues(eventType).Inc()
}
