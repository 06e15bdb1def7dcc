package handlers

import (
	"paper-reader/internal/library"
)

// multipartOverhead covers form fields and part headers on top of the file
// size limits.
const multipartOverhead = 1 << 20

// Config holds the settings the handlers need besides the library.
type Config struct {
	// TempDir receives spooled upload parts. Empty means os.TempDir.
	TempDir string
	// MaxPDFBytes and MaxCoverBytes bound the whole upload body together.
	MaxPDFBytes   int64
	MaxCoverBytes int64
}

// Handlers serves the HTTP API on top of a library.
type Handlers struct {
	library       *library.Library
	tempDir       string
	maxUploadSize int64
}

// New creates the handlers.
func New(lib *library.Library, cfg Config) *Handlers {
	if cfg.MaxPDFBytes <= 0 {
		cfg.MaxPDFBytes = library.DefaultMaxPDFBytes
	}
	if cfg.MaxCoverBytes <= 0 {
		cfg.MaxCoverBytes = library.DefaultMaxCoverBytes
	}
	return &Handlers{
		library:       lib,
		tempDir:       cfg.TempDir,
		maxUploadSize: cfg.MaxPDFBytes + cfg.MaxCoverBytes + multipartOverhead,
	}
}
