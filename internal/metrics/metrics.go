// Package metrics provides Prometheus metrics for encode-hub.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encodehub_cache_lookups_total",
			Help: "Total number of cache fetch lookups by result",
		},
		[]string{"result"},
	)

	cacheBytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encodehub_cache_bytes_downloaded_total",
			Help: "Total bytes downloaded into the cache",
		},
	)

	cacheDownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "encodehub_cache_download_duration_seconds",
			Help:    "Time spent downloading a file into the cache",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Catalogue metrics
	manifestParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encodehub_manifest_parses_total",
			Help: "Total number of collection manifests parsed",
		},
		[]string{"status"},
	)

	manifestFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "encodehub_manifest_files",
			Help: "Number of file records in a parsed collection manifest",
		},
		[]string{"collection"},
	)

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encodehub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "encodehub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheHit records a fetch that was served from disk.
func RecordCacheHit() {
	cacheLookupsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a fetch that required (or was forced into) a download.
func RecordCacheMiss(forced bool) {
	if forced {
		cacheLookupsTotal.WithLabelValues("forced").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordDownload records a completed download.
func RecordDownload(bytes int64, duration time.Duration) {
	cacheBytesDownloaded.Add(float64(bytes))
	cacheDownloadDuration.Observe(duration.Seconds())
}

// RecordManifest records a manifest parse attempt.
func RecordManifest(collection string, files int, err error) {
	if err != nil {
		manifestParsesTotal.WithLabelValues("error").Inc()
		return
	}
	manifestParsesTotal.WithLabelValues("ok").Inc()
	manifestFiles.WithLabelValues(collection).Set(float64(files))
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
