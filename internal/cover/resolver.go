package cover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"paper-reader/internal/filesystem"
	"paper-reader/internal/logging"
	"paper-reader/internal/metrics"
	"paper-reader/internal/pngcodec"
)

// Renderer rasterizes the first page of a PDF into a PNG at outPath. The
// file at outPath must only ever appear complete.
type Renderer interface {
	RenderFirstPage(ctx context.Context, pdfPath, outPath string) error
}

// Locator maps a document ID to its on-disk files.
type Locator interface {
	PDFPath(id string) string
	CoverPath(id string) string
}

// Source says where the bytes of a Result came from.
type Source string

const (
	SourceStored      Source = "stored"
	SourceGenerated   Source = "generated"
	SourcePlaceholder Source = "placeholder"
)

// Result is the outcome of a cover read.
type Result struct {
	Data   []byte
	Source Source
}

// Resolver implements the cover read policy for stored documents.
type Resolver struct {
	paths    Locator
	renderer Renderer
	locks    *LockTable
	failures *FailureSet
	width    uint32
	height   uint32
	retry    filesystem.RetryConfig
}

// NewResolver creates a resolver. A nil renderer disables generation. Zero
// dimensions select DefaultWidth and DefaultHeight for the placeholder.
func NewResolver(paths Locator, renderer Renderer, width, height uint32) *Resolver {
	if width == 0 {
		width = DefaultWidth
	}
	if height == 0 {
		height = DefaultHeight
	}
	return &Resolver{
		paths:    paths,
		renderer: renderer,
		locks:    NewLockTable(),
		failures: NewFailureSet(),
		width:    width,
		height:   height,
		retry:    filesystem.DefaultRetryConfig(),
	}
}

// Failures exposes the failure set, mainly for stats.
func (r *Resolver) Failures() *FailureSet {
	return r.failures
}

// Placeholder returns the default cover bytes at the configured size.
func (r *Resolver) Placeholder() ([]byte, error) {
	return CachedPlaceholder(r.width, r.height)
}

// Resolve returns the bytes to serve for id's cover. A missing or sentinel
// cover triggers at most one generation attempt per document at a time;
// documents that already failed get the placeholder without a new attempt.
// Resolve never writes the placeholder to disk.
func (r *Resolver) Resolve(ctx context.Context, id string) (Result, error) {
	data, ok, err := r.readUsable(id)
	if err != nil {
		return Result{}, err
	}
	if ok {
		metrics.CoverResolutionsTotal.WithLabelValues(string(SourceStored)).Inc()
		return Result{Data: data, Source: SourceStored}, nil
	}

	if r.failures.Contains(id) {
		return r.placeholderResult("cached_failure")
	}

	src, err := r.generate(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if src == SourcePlaceholder {
		return r.placeholderResult(string(SourcePlaceholder))
	}

	data, ok, err = r.readUsable(id)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// Replaced or removed between generation and the read.
		return r.placeholderResult(string(SourcePlaceholder))
	}
	metrics.CoverResolutionsTotal.WithLabelValues(string(src)).Inc()
	return Result{Data: data, Source: src}, nil
}

// Ensure makes sure id has a usable cover on disk, rendering one if needed.
// When rendering fails a 1×1 sentinel is written in place of a missing
// cover so the next process gets another attempt. It reports whether a
// usable cover is now stored.
func (r *Resolver) Ensure(ctx context.Context, id string) (bool, error) {
	src, err := r.generate(ctx, id)
	if err != nil {
		return false, err
	}
	if src != SourcePlaceholder {
		return true, nil
	}

	path := r.paths.CoverPath(id)
	if _, err := filesystem.StatWithRetry(path, r.retry); errors.Is(err, os.ErrNotExist) {
		if werr := filesystem.WriteFileAtomic(path, Sentinel(), 0o644); werr != nil {
			return false, fmt.Errorf("write sentinel cover: %w", werr)
		}
	}
	return false, nil
}

// WithLock runs fn while holding id's generation lock, so no render for id
// can run at the same time.
func (r *Resolver) WithLock(id string, fn func() error) error {
	unlock := r.locks.Lock(id)
	defer unlock()
	return fn()
}

// generate runs under the per-document lock and returns SourceStored when a
// usable cover already exists, SourceGenerated after a successful render and
// SourcePlaceholder otherwise.
func (r *Resolver) generate(ctx context.Context, id string) (Source, error) {
	waitStart := time.Now()
	unlock := r.locks.Lock(id)
	defer unlock()
	metrics.CoverLockWaitDuration.Observe(time.Since(waitStart).Seconds())

	_, ok, err := r.readUsable(id)
	if err != nil {
		return "", err
	}
	if ok {
		return SourceStored, nil
	}
	if r.failures.Contains(id) || r.renderer == nil {
		return SourcePlaceholder, nil
	}

	pdfPath := r.paths.PDFPath(id)
	if _, err := filesystem.StatWithRetry(pdfPath, r.retry); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Cover for %s requested but no PDF is stored", id)
			return SourcePlaceholder, nil
		}
		return "", fmt.Errorf("stat pdf: %w", err)
	}

	// A client going away must not turn into a cached failure.
	renderCtx := context.WithoutCancel(ctx)
	start := time.Now()
	if err := r.renderer.RenderFirstPage(renderCtx, pdfPath, r.paths.CoverPath(id)); err != nil {
		r.failures.Add(id)
		logging.Warn("Cover generation failed for %s after %v, serving placeholder: %v",
			id, time.Since(start).Round(time.Millisecond), err)
		return SourcePlaceholder, nil
	}

	if !r.storedUsable(id) {
		r.failures.Add(id)
		logging.Warn("Renderer reported success for %s but the cover is unusable", id)
		return SourcePlaceholder, nil
	}

	logging.Info("Generated cover for %s in %v", id, time.Since(start).Round(time.Millisecond))
	return SourceGenerated, nil
}

// readUsable reads id's cover. A missing file, a non-PNG and the 1×1
// sentinel all count as unusable.
func (r *Resolver) readUsable(id string) ([]byte, bool, error) {
	f, err := filesystem.OpenWithRetry(r.paths.CoverPath(id), r.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open cover: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("read cover: %w", err)
	}

	if _, _, ok := pngcodec.DecodeHeader(data); !ok {
		logging.Debug("Cover for %s is not a PNG, treating as missing", id)
		return nil, false, nil
	}
	if pngcodec.IsPlaceholder(data) {
		return nil, false, nil
	}
	return data, true, nil
}

// storedUsable checks only the header of id's cover file.
func (r *Resolver) storedUsable(id string) bool {
	w, h, ok, err := pngcodec.ReadHeaderFile(r.paths.CoverPath(id))
	return err == nil && ok && (w != 1 || h != 1)
}

func (r *Resolver) placeholderResult(outcome string) (Result, error) {
	data, err := r.Placeholder()
	if err != nil {
		return Result{}, fmt.Errorf("encode placeholder: %w", err)
	}
	metrics.CoverResolutionsTotal.WithLabelValues(outcome).Inc()
	return Result{Data: data, Source: SourcePlaceholder}, nil
}
