// Package renderer rasterizes the first page of a PDF into a PNG cover.
//
// Rendering is delegated to whichever external tools are installed, tried in
// a fixed order:
//
//  1. pdftoppm (poppler), scaled to the configured width
//  2. mutool draw (MuPDF) at the configured DPI
//  3. gs (Ghostscript) at the configured DPI
//  4. libvips in-process, when enabled
//
// Each attempt runs with its own timeout in a private temporary directory.
// Its output must be at least 1KB and start with the PNG signature; the
// first valid output is downscaled to the configured width if needed and
// atomically written to the destination. A host without any tool gets
// ErrNoTools, which callers treat like any other render failure.
//
// The number of concurrent renders is bounded by a weighted semaphore and
// every spawned subprocess is tracked so Cleanup can kill them on shutdown.
package renderer
