// Package main runs the paper reader server: a file-backed PDF store with
// on-demand cover rendering behind a small JSON API.
//
// # Startup
//
//  1. Configuration is read from the environment, after loading .env if present.
//  2. The Go heap limit is derived from MEMORY_LIMIT when set.
//  3. libvips is initialized when VIPS_ENABLED is true.
//  4. The renderer chain probes pdftoppm, mutool and gs on PATH.
//  5. The papers directory and index are opened, and index entries whose
//     metadata is missing are dropped.
//  6. The API server and the optional metrics server start.
//
// # Routes
//
//	GET    /health, /livez, /readyz, /version
//	GET    {API_PREFIX}/papers
//	POST   {API_PREFIX}/papers
//	GET    {API_PREFIX}/papers/{id}
//	DELETE {API_PREFIX}/papers/{id}
//	GET    {API_PREFIX}/papers/{id}/cover
//	GET    {API_PREFIX}/papers/{id}/file
//
// Anything else is served from STATIC_DIR when that directory exists.
//
// # Shutdown
//
// SIGINT and SIGTERM stop the HTTP server (30s timeout), kill any renderer
// subprocesses still running, stop the metrics collector and server, and
// release libvips.
package main
