package metrics

// Known label values, exported so callers and tests share one list.
var (
	CoverOutcomes  = []string{"stored", "generated", "placeholder", "cached_failure"}
	RenderTools    = []string{"pdftoppm", "mutool", "gs", "vips"}
	RenderStatuses = []string{"success", "error", "timeout", "invalid_output", "unavailable"}
	UploadStatuses = []string{"success", "invalid", "too_large", "error"}
	IndexOps       = []string{"list", "insert", "remove", "reconcile"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, o := range CoverOutcomes {
		CoverResolutionsTotal.WithLabelValues(o)
	}

	for _, tool := range RenderTools {
		RenderDuration.WithLabelValues(tool)
		for _, status := range RenderStatuses {
			RenderAttemptsTotal.WithLabelValues(tool, status)
		}
	}

	for _, s := range UploadStatuses {
		UploadsTotal.WithLabelValues(s)
	}
	DeletesTotal.WithLabelValues("success")
	DeletesTotal.WithLabelValues("error")

	for _, op := range IndexOps {
		IndexOperationDuration.WithLabelValues(op)
	}

	volumes := []string{"papers", "tmp", "data", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "write", "rename", "remove"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
