package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hls_vault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_vault_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vault_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hls_vault_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_vault_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Pipeline metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vault_pipeline_runs_total",
			Help: "Total number of processing pipeline runs by outcome",
		},
		[]string{"outcome"}, // "completed", "failed"
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hls_vault_pipeline_run_duration_seconds",
			Help:    "End-to-end pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200},
		},
	)

	PipelineRunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_vault_pipeline_runs_in_progress",
			Help: "Number of pipeline runs currently executing",
		},
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hls_vault_probe_duration_seconds",
			Help:    "Media probe duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	AssetsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hls_vault_assets",
			Help: "Number of assets by lifecycle status",
		},
		[]string{"status"}, // "uploaded", "processing", "completed", "failed"
	)
)

// Track encode metrics
var (
	TrackEncodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vault_track_encodes_total",
			Help: "Total number of per-track encoder invocations",
		},
		[]string{"kind", "status"}, // kind: "video"/"audio"; status: "success"/"failure"/"timeout"
	)

	TrackEncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hls_vault_track_encode_duration_seconds",
			Help:    "Per-track encoder process duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"kind"},
	)

	VideoEncodesInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_vault_video_encodes_in_progress",
			Help: "Number of video track encoder processes currently running",
		},
	)

	SegmentsObfuscatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vault_segments_obfuscated_total",
			Help: "Total number of segment files renamed to opaque names",
		},
		[]string{"kind"},
	)
)

// Delivery metrics
var (
	SegmentBytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hls_vault_segment_bytes_served_total",
			Help: "Total bytes of encrypted media segments served",
		},
	)

	KeyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_vault_key_requests_total",
			Help: "Total number of segment-key requests by outcome",
		},
		[]string{"outcome"}, // "served", "denied", "not_found"
	)
)

// Job queue metrics
var (
	JobsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hls_vault_jobs_enqueued_total",
			Help: "Total number of processing jobs enqueued",
		},
	)

	JobRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hls_vault_job_retries_total",
			Help: "Total number of processing job retry attempts",
		},
	)

	JobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_vault_job_queue_depth",
			Help: "Number of jobs waiting in the processing queue",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hls_vault_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// InitializeMetrics pre-populates expected label combinations so every metric
// is exported from the first Prometheus scrape.
func InitializeMetrics() {
	for _, outcome := range []string{"completed", "failed"} {
		PipelineRunsTotal.WithLabelValues(outcome)
	}
	for _, status := range []string{"uploaded", "processing", "completed", "failed"} {
		AssetsByStatus.WithLabelValues(status)
	}
	for _, kind := range []string{"video", "audio"} {
		for _, status := range []string{"success", "failure", "timeout"} {
			TrackEncodesTotal.WithLabelValues(kind, status)
		}
		TrackEncodeDuration.WithLabelValues(kind)
		SegmentsObfuscatedTotal.WithLabelValues(kind)
	}
	for _, outcome := range []string{"served", "denied", "not_found"} {
		KeyRequestsTotal.WithLabelValues(outcome)
	}
}
