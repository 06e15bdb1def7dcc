package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paper_reader_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paper_reader_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paper_reader_http_panics_total",
			Help: "Total number of handler panics converted to 500 responses",
		},
	)
)

// Cover metrics
var (
	CoverResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_cover_resolutions_total",
			Help: "Cover reads by outcome (stored, generated, placeholder, cached_failure)",
		},
		[]string{"outcome"},
	)

	CoverLockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paper_reader_cover_lock_wait_seconds",
			Help:    "Time spent waiting for a per-document generation lock",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 90},
		},
	)

	CoverFailedDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paper_reader_cover_failed_documents",
			Help: "Documents whose cover generation has failed since process start",
		},
	)
)

// Renderer metrics
var (
	RenderAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_render_attempts_total",
			Help: "Rasterizer attempts by tool and status",
		},
		[]string{"tool", "status"},
	)

	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paper_reader_render_duration_seconds",
			Help:    "Rasterizer attempt duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"tool"},
	)

	RenderInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paper_reader_render_in_progress",
			Help: "Rasterizer subprocesses currently running",
		},
	)
)

// Library metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_uploads_total",
			Help: "Uploads by status (success, invalid, too_large, error)",
		},
		[]string{"status"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paper_reader_upload_pdf_bytes",
			Help:    "Size of accepted PDFs in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
		},
	)

	DeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_deletes_total",
			Help: "Deletions by status",
		},
		[]string{"status"},
	)

	IndexOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paper_reader_index_operation_duration_seconds",
			Help:    "Index read-modify-write duration by operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	IndexSkippedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paper_reader_index_skipped_entries_total",
			Help: "Malformed index entries skipped while reading the index",
		},
	)

	PapersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paper_reader_papers_total",
			Help: "Number of papers in the index",
		},
	)

	StorageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paper_reader_storage_bytes",
			Help: "Total bytes of stored PDFs according to the index",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paper_reader_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_filesystem_retry_attempts_total",
			Help: "Retries after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_reader_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Application info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "paper_reader_app_info",
		Help: "Build information",
	},
	[]string{"version", "commit", "go_version"},
)
