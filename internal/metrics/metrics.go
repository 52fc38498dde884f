package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "media",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ResolveCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "resolve_cache_hits_total",
		Help:      "Total handle resolutions served from the cache.",
	})

	ResolveCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "resolve_cache_misses_total",
		Help:      "Total handle resolutions that required an upstream call.",
	})

	ResolveCacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "resolve_cache_evictions_total",
		Help:      "Total cache entries evicted to stay within capacity.",
	})

	ResolveCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "media",
		Name:      "resolve_cache_size",
		Help:      "Current number of entries in the handle resolve cache.",
	})

	StreamBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "stream_bytes_total",
		Help:      "Total bytes streamed to clients by endpoint.",
	}, []string{"endpoint"})

	ConcatSkippedPartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "concat_skipped_parts_total",
		Help:      "Total asset parts skipped during concatenation.",
	})

	ManifestActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "media",
		Name:      "manifest_active_jobs",
		Help:      "Number of currently running manifest generation jobs.",
	})

	ManifestJobStartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "manifest_job_starts_total",
		Help:      "Total number of manifest generation jobs started.",
	})

	ManifestJobFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "manifest_job_failures_total",
		Help:      "Total number of manifest generation job failures.",
	})

	SegmentEncodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "media",
		Name:      "segment_encode_duration_seconds",
		Help:      "Duration of FFmpeg segmenting runs in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	})

	ManifestCacheCleanupErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "manifest_cache_cleanup_errors_total",
		Help:      "Total number of manifest cache cleanup failures.",
	})

	ManifestCacheSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "media",
		Name:      "manifest_cache_size_bytes",
		Help:      "Current total size of the manifest segment cache in bytes.",
	})

	IngestPartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "media",
		Name:      "ingest_parts_total",
		Help:      "Total video parts produced and uploaded by ingest.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ResolveCacheHitsTotal,
		ResolveCacheMissesTotal,
		ResolveCacheEvictionsTotal,
		ResolveCacheSize,
		StreamBytesTotal,
		ConcatSkippedPartsTotal,
		ManifestActiveJobs,
		ManifestJobStartsTotal,
		ManifestJobFailuresTotal,
		SegmentEncodeDuration,
		ManifestCacheCleanupErrors,
		ManifestCacheSizeBytes,
		IngestPartsTotal,
	)
}
