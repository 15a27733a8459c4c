package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics carries the server's Prometheus collectors on a private registry
// so multiple servers (and tests) can coexist in one process.
type metrics struct {
	registry       *prometheus.Registry
	requestsTotal  *prometheus.CounterVec
	vectorsAdded   prometheus.Counter
	searchDuration prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vegamdb_requests_total",
			Help: "Requests handled, by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		vectorsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vegamdb_vectors_added_total",
			Help: "Vectors ingested through the API.",
		}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vegamdb_search_duration_seconds",
			Help:    "Search latency.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}
	m.registry.MustRegister(m.requestsTotal, m.vectorsAdded, m.searchDuration)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
