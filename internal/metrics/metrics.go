// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "commitquest"

var (
	// Registry is private to the process so tests can read collectors
	// without touching the global default registry.
	Registry = prometheus.NewRegistry()

	LayoutsComputed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "layouts_computed_total",
		Help:      "Commit graph layouts computed.",
	})

	LayoutNodes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "layout_nodes",
		Help:      "Nodes per computed layout.",
		Buckets:   []float64{5, 10, 25, 50, 100, 200},
	})

	GitHubRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "github_requests_total",
		Help:      "GitHub API requests by HTTP status code.",
	}, []string{"code"})

	UpstreamEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_events_total",
		Help:      "Dashboard stream events received by type.",
	}, []string{"type"})

	Rollbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "optimistic_rollbacks_total",
		Help:      "Optimistic mutations reverted after an upstream failure.",
	}, []string{"op"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		LayoutsComputed,
		LayoutNodes,
		GitHubRequests,
		UpstreamEvents,
		Rollbacks,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
