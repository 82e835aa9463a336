// Package metrics registers the Prometheus collectors of the service.
// HTTP metrics are updated by the handler middleware, business metrics by
// the service layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instascrape_http_requests_total",
			Help: "Total HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "instascrape_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instascrape_downloads_total",
			Help: "Download runs by outcome and content category",
		},
		[]string{"outcome", "category"},
	)

	ExtractDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "instascrape_extract_duration_seconds",
			Help:    "External extractor run duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"tool"},
	)

	FallbackRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instascrape_fallback_runs_total",
			Help: "Fallback extractor invocations by reason",
		},
		[]string{"reason"},
	)
)
