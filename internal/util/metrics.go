package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ListingsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_published_total",
		Help: "Total number of listings published, per marketplace",
	}, []string{"marketplace"})

	ListingsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_failed_total",
		Help: "Total number of failed listing attempts",
	}, []string{"marketplace", "reason"})

	ListingsDelistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_delisted_total",
		Help: "Total number of listings delisted, per marketplace",
	}, []string{"marketplace"})

	CrosslistBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosslist_batches_total",
		Help: "Total number of crosslist invocations",
	})

	BulkItemsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_items_processed_total",
		Help: "Total number of items processed by bulk operations",
	}, []string{"operation"})

	SoldItemsSyncedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sold_items_synced_total",
		Help: "Total number of sold items matched during sync",
	}, []string{"marketplace"})

	SyncRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sold_sync_runs_total",
		Help: "Total number of sold-item sync runs",
	})

	PreflightLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "preflight_validation_latency_seconds",
		Help:    "Latency of preflight validation passes",
		Buckets: prometheus.DefBuckets,
	})

	PreflightIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preflight_issues_total",
		Help: "Total number of validation issues surfaced",
	}, []string{"marketplace"})

	PreflightAutoFixesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preflight_auto_fixes_total",
		Help: "Total number of fixes auto-applied in apply-only mode",
	}, []string{"marketplace"})

	AdapterCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adapter_call_latency_seconds",
		Help:    "Latency of marketplace adapter calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"marketplace", "op"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
