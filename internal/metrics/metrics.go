// Package metrics exposes scan counters and timings in Prometheus format
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the registry and all scan metrics
type Collector struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	cookies      *prometheus.CounterVec
	interactions *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// NewCollector registers all metrics on registry, or on a fresh one if nil
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cookieguard",
			Name:      "scans_total",
			Help:      "Finished scans by outcome (red, yellow, green or an error kind).",
		}, []string{"outcome"}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cookieguard",
			Name:      "scan_duration_seconds",
			Help:      "Wall time of one domain scan.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"stage"}),
		cookies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cookieguard",
			Name:      "cookies_classified_total",
			Help:      "Classified cookies by category.",
		}, []string{"category"}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cookieguard",
			Name:      "banner_interactions_total",
			Help:      "Banner interaction outcomes by action and success.",
		}, []string{"action", "succeeded"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cookieguard",
			Name:      "http_requests_total",
			Help:      "API requests by method and status code.",
		}, []string{"method", "status"}),
	}

	registry.MustRegister(c.scans, c.scanDuration, c.cookies, c.interactions, c.httpRequests)
	return c
}

// ScanFinished records one completed or failed scan
func (c *Collector) ScanFinished(outcome string, d time.Duration) {
	c.scans.WithLabelValues(outcome).Inc()
	c.scanDuration.WithLabelValues("total").Observe(d.Seconds())
}

// CookieClassified counts one classified cookie
func (c *Collector) CookieClassified(category string) {
	c.cookies.WithLabelValues(category).Inc()
}

// Interaction counts one banner interaction outcome
func (c *Collector) Interaction(action string, succeeded bool) {
	label := "false"
	if succeeded {
		label = "true"
	}
	c.interactions.WithLabelValues(action, label).Inc()
}

// HTTPRequest counts one API request
func (c *Collector) HTTPRequest(method, status string) {
	c.httpRequests.WithLabelValues(method, status).Inc()
}

// Handler serves the registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
