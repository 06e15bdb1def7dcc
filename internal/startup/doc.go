// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] reads environment variables, after loading a .env file from
// the working directory when one exists:
//
//   - DATA_DIR: root for papers/, tmp/ and index.json (default: ./data)
//   - PORT: HTTP server port (default: 8000)
//   - METRICS_PORT, METRICS_ENABLED: Prometheus server (default: 9090, true)
//   - API_PREFIX: prefix for the paper routes (default: /api)
//   - STATIC_DIR: optional UI directory served at / (default: ./static)
//   - CORS_ORIGINS: Access-Control-Allow-Origin value (default: *)
//   - MAX_PDF_BYTES, MAX_COVER_BYTES: upload limits (default: 50 MiB, 10 MiB)
//   - RENDER_TIMEOUT: per-tool timeout, clamped to 20s-30s (default: 25s)
//   - RENDER_WIDTH, RENDER_DPI: rasterizer output size (default: 640, 110)
//   - RENDER_WORKERS: concurrent renders (default: GOMAXPROCS, at most 4)
//   - VIPS_ENABLED: add in-process libvips rendering (default: false)
//   - COVER_WIDTH, COVER_HEIGHT: default cover size (default: 360x480)
//   - LOG_LEVEL, LOG_STATIC_FILES, LOG_HEALTH_CHECKS: logging
//
// The data directory must be creatable and writable; startup fails otherwise.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogRendererInit]: rasterizers found on this host
//   - [LogIndexInit]: index size and reconciled entries
//   - [LogHTTPRoutes]: registered HTTP routes (debug level)
//   - [LogServerStarted]: server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: graceful shutdown
package startup
