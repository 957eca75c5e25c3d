// Package metrics defines Prometheus metrics for the explorer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	RefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_product_refreshes_total",
			Help: "Product refreshes by result",
		},
		[]string{"result"},
	)

	RefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_product_refresh_duration_seconds",
			Help:    "Product refresh duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"product"},
	)

	ExtentChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_extent_changes_total",
			Help: "Dataset extent rows inserted, updated or deleted",
		},
		[]string{"product"},
	)

	OverviewsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_overviews_written_total",
			Help: "Persisted time period overviews by period type",
		},
		[]string{"period"},
	)

	UnionFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_union_fallbacks_total",
			Help: "Footprint unions that needed a fallback strategy",
		},
		[]string{"strategy"},
	)

	RefreshQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "explorer_refresh_queue_depth",
			Help: "Refresh requests waiting for a worker",
		},
	)

	CacheInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_product_cache_invalidations_total",
			Help: "Product cache entries invalidated by local writes or notifications",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		RefreshesTotal, RefreshDuration, ExtentChanges,
		OverviewsWritten, UnionFallbacks, RefreshQueueDepth,
		CacheInvalidations,
	)
}
