// Package metrics holds the Prometheus instruments of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage names used for the stage duration histogram.
const (
	StageLookup   = "lookup"
	StageFetch    = "fetch"
	StageAssemble = "assemble"
	StageLayout   = "layout"
	StageRender   = "render"
)

// Collector holds all Prometheus metrics for the application. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	Searches       *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	ZoomEvents     *prometheus.CounterVec
	ActiveSurfaces prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	searches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of searches by outcome",
		},
		[]string{"outcome"},
	)

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	zoomEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zoom_events_total",
			Help:      "Total number of zoom events by kind",
		},
		[]string{"kind"},
	)

	activeSurfaces := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_surfaces",
			Help:      "Number of live rendered surfaces",
		},
	)

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		searches,
		stageDuration,
		zoomEvents,
		activeSurfaces,
		httpRequests,
		httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry:       registry,
		Searches:       searches,
		StageDuration:  stageDuration,
		ZoomEvents:     zoomEvents,
		ActiveSurfaces: activeSurfaces,
		HTTPRequests:   httpRequests,
		HTTPDuration:   httpDuration,
	}
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordSearch counts a finished search.
func (c *Collector) RecordSearch(outcome string) {
	if c == nil {
		return
	}
	c.Searches.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordZoom counts a zoom event.
func (c *Collector) RecordZoom(kind string) {
	if c == nil {
		return
	}
	c.ZoomEvents.WithLabelValues(kind).Inc()
}

// SetActiveSurfaces updates the live surface gauge.
func (c *Collector) SetActiveSurfaces(n int) {
	if c == nil {
		return
	}
	c.ActiveSurfaces.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func (c *Collector) RecordHTTPRequest(method, route, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
