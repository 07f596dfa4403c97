// SPDX-License-Identifier: MIT
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream (MeiliSearch) metrics
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealsearch_upstream_requests_total",
		Help: "Upstream search engine requests by operation and outcome",
	}, []string{"op", "outcome"}) // outcome=success|error|timeout

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealsearch_upstream_request_duration_seconds",
		Help:    "Upstream search engine request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	upstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealsearch_upstream_retries_total",
		Help: "Upstream request retries by operation",
	}, []string{"op"})

	// Query metrics
	searchHitsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealsearch_search_hits_returned",
		Help:    "Number of hits returned per search by endpoint",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
	}, []string{"endpoint"}) // endpoint=sales|query

	// Sync metrics
	syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealsearch_sync_runs_total",
		Help: "Catalog sync runs by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	syncDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dealsearch_sync_duration_seconds",
		Help:    "Time spent running a catalog sync",
		Buckets: prometheus.DefBuckets,
	})

	syncDocumentsIndexed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealsearch_sync_documents_indexed",
		Help: "Number of documents indexed by the last successful sync",
	})

	syncLastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealsearch_sync_last_success_timestamp_seconds",
		Help: "Unix timestamp of the last successful catalog sync",
	})

	indexDocuments = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dealsearch_index_documents",
		Help: "Documents in the search index (last observed)",
	}, []string{"index"})

	// Cache metrics
	cacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealsearch_cache_requests_total",
		Help: "Response cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	// Build info
	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dealsearch_build_info",
		Help: "Build information (always 1)",
	}, []string{"version", "commit"})
)

func RecordUpstreamRequest(op, outcome string, duration time.Duration) {
	upstreamRequestsTotal.WithLabelValues(op, outcome).Inc()
	upstreamRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func IncUpstreamRetry(op string) { upstreamRetriesTotal.WithLabelValues(op).Inc() }

func ObserveSearchHits(endpoint string, hits int) {
	searchHitsReturned.WithLabelValues(endpoint).Observe(float64(hits))
}

func RecordSyncSuccess(documents int, duration time.Duration) {
	syncRunsTotal.WithLabelValues("success").Inc()
	syncDurationSeconds.Observe(duration.Seconds())
	syncDocumentsIndexed.Set(float64(documents))
	syncLastSuccessTimestamp.SetToCurrentTime()
}

func RecordSyncFailure(duration time.Duration) {
	syncRunsTotal.WithLabelValues("failure").Inc()
	syncDurationSeconds.Observe(duration.Seconds())
}

func RecordIndexDocuments(index string, n int64) {
	indexDocuments.WithLabelValues(index).Set(float64(n))
}

func IncCacheHit()  { cacheRequestsTotal.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheRequestsTotal.WithLabelValues("miss").Inc() }

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}
