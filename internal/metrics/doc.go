// Package metrics provides Prometheus instrumentation for paper-reader.
//
// All metrics are prefixed with "paper_reader_" and registered on the default
// registry via promauto; cmd/paper-reader mounts promhttp.Handler() on the
// metrics port.
//
// # Metric Categories
//
// ## HTTP
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight, HTTPPanicsTotal
//
// ## Covers
//   - CoverResolutionsTotal: cover reads by outcome
//   - CoverLockWaitDuration: time spent waiting on a per-document generation lock
//   - CoverFailedDocuments: size of the in-memory failure set
//
// ## Renderer
//   - RenderAttemptsTotal: attempts by tool (pdftoppm, mutool, gs, vips) and status
//   - RenderDuration: attempt duration by tool
//   - RenderInProgress: running rasterizers
//
// ## Library
//   - UploadsTotal, UploadBytes, DeletesTotal
//   - IndexOperationDuration, IndexSkippedEntries
//   - PapersTotal, StorageBytes (updated by [Collector])
//
// ## Filesystem
//   - FilesystemOperationDuration/Errors and the stale-handle retry counters,
//     fed through [NewFilesystemObserver]
//
// # Prometheus Queries
//
// Share of cover reads answered with the placeholder:
//
//	sum(rate(paper_reader_cover_resolutions_total{outcome=~"placeholder|cached_failure"}[5m]))
//	/ sum(rate(paper_reader_cover_resolutions_total[5m]))
//
// Which rasterizer is doing the work:
//
//	sum(rate(paper_reader_render_attempts_total{status="success"}[1h])) by (tool)
package metrics
