package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"paper-reader/internal/filesystem"
	"paper-reader/internal/logging"
	"paper-reader/internal/media"
	"paper-reader/internal/metrics"
	"paper-reader/internal/pngcodec"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrRenderFailed is returned when no strategy produced a valid PNG.
	ErrRenderFailed = errors.New("render failed")
	// ErrNoTools is returned when no strategy is available on this host.
	ErrNoTools = errors.New("no rasterizer available")
)

// MinOutputBytes is the smallest rendered file accepted as a real page.
const MinOutputBytes = 1024

// Timeout bounds for a single attempt.
const (
	MinTimeout     = 20 * time.Second
	MaxTimeout     = 30 * time.Second
	DefaultTimeout = 25 * time.Second
)

// Config controls the chain.
type Config struct {
	// Timeout applies to each strategy attempt separately.
	Timeout time.Duration
	// Width is the pdftoppm target width and the widest cover stored.
	Width int
	// DPI is used by mutool, gs and vips.
	DPI int
	// Workers caps concurrent renders.
	Workers int
	// TempDir holds per-render scratch directories. Empty means os.TempDir.
	TempDir string
	// UseVips appends the libvips strategy.
	UseVips bool
}

// Chain tries its strategies in order until one produces a valid PNG.
type Chain struct {
	cfg        Config
	strategies []Strategy
	slots      *semaphore.Weighted
	tracker    *processTracker
}

// New creates the default chain: pdftoppm, mutool, gs and optionally vips.
func New(cfg Config) *Chain {
	c := newChain(cfg)
	for _, s := range []*CommandStrategy{Pdftoppm(c.cfg.Width), Mutool(c.cfg.DPI), Ghostscript(c.cfg.DPI)} {
		s.tracker = c.tracker
		c.strategies = append(c.strategies, s)
	}
	if c.cfg.UseVips {
		c.strategies = append(c.strategies, &VipsStrategy{DPI: c.cfg.DPI, MaxWidth: c.cfg.Width})
	}
	return c
}

// NewWithStrategies creates a chain over the given strategies.
func NewWithStrategies(cfg Config, strategies ...Strategy) *Chain {
	c := newChain(cfg)
	for _, s := range strategies {
		if cs, ok := s.(*CommandStrategy); ok && cs.tracker == nil {
			cs.tracker = c.tracker
		}
		c.strategies = append(c.strategies, s)
	}
	return c
}

func newChain(cfg Config) *Chain {
	cfg.Timeout = ClampTimeout(cfg.Timeout)
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 110
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Chain{
		cfg:     cfg,
		slots:   semaphore.NewWeighted(int64(cfg.Workers)),
		tracker: newProcessTracker(),
	}
}

// ClampTimeout returns d limited to [MinTimeout, MaxTimeout], or
// DefaultTimeout when d is not positive.
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultTimeout
	case d < MinTimeout:
		return MinTimeout
	case d > MaxTimeout:
		return MaxTimeout
	}
	return d
}

// Config returns the effective configuration.
func (c *Chain) Config() Config {
	return c.cfg
}

// Available lists the names of the strategies usable right now.
func (c *Chain) Available() []string {
	var names []string
	for _, s := range c.strategies {
		if s.Available() {
			names = append(names, s.Name())
		}
	}
	return names
}

// RenderFirstPage renders page 1 of pdfPath into outPath. outPath is only
// ever replaced with a complete, validated PNG.
func (c *Chain) RenderFirstPage(ctx context.Context, pdfPath, outPath string) error {
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.slots.Release(1)

	metrics.RenderInProgress.Inc()
	defer metrics.RenderInProgress.Dec()

	if n, err := PageCount(pdfPath); err != nil {
		// Tools are often more forgiving than pdfcpu; let them try.
		logging.Debug("pdfcpu could not read %s: %v", pdfPath, err)
	} else if n < 1 {
		return fmt.Errorf("%w: PDF has no pages", ErrRenderFailed)
	}

	scratch, err := os.MkdirTemp(c.cfg.TempDir, "render-*")
	if err != nil {
		return fmt.Errorf("create render directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logging.Warn("failed to remove render directory %s: %v", scratch, err)
		}
	}()

	var lastErr error
	tried := 0
	for _, s := range c.strategies {
		if !s.Available() {
			metrics.RenderAttemptsTotal.WithLabelValues(s.Name(), "unavailable").Inc()
			continue
		}
		tried++

		candidate := filepath.Join(scratch, s.Name()+".png")
		data, err := c.attempt(ctx, s, pdfPath, candidate)
		if err != nil {
			lastErr = err
			continue
		}

		if err := filesystem.WriteFileAtomic(outPath, data, 0o644); err != nil {
			return fmt.Errorf("store rendered cover: %w", err)
		}
		return nil
	}

	if tried == 0 {
		return ErrNoTools
	}
	return fmt.Errorf("%w: %v", ErrRenderFailed, lastErr)
}

// attempt runs one strategy and returns the validated, width-limited PNG.
func (c *Chain) attempt(ctx context.Context, s Strategy, pdfPath, candidate string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := s.Render(attemptCtx, pdfPath, candidate)
	elapsed := time.Since(start)
	metrics.RenderDuration.WithLabelValues(s.Name()).Observe(elapsed.Seconds())

	if err != nil {
		status := "error"
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.RenderAttemptsTotal.WithLabelValues(s.Name(), status).Inc()
		logging.Debug("%s failed for %s after %v: %v", s.Name(), pdfPath, elapsed.Round(time.Millisecond), err)
		return nil, err
	}

	data, err := readValidOutput(candidate)
	if err != nil {
		metrics.RenderAttemptsTotal.WithLabelValues(s.Name(), "invalid_output").Inc()
		logging.Debug("%s produced unusable output for %s: %v", s.Name(), pdfPath, err)
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}

	metrics.RenderAttemptsTotal.WithLabelValues(s.Name(), "success").Inc()
	logging.Debug("%s rendered %s in %v (%d bytes)", s.Name(), pdfPath, elapsed.Round(time.Millisecond), len(data))

	if scaled, resized, err := media.FitWidth(data, c.cfg.Width); err != nil {
		logging.Warn("Keeping %s output at full size: %v", s.Name(), err)
	} else if resized {
		data = scaled
	}
	return data, nil
}

// readValidOutput returns the file at path if it is at least MinOutputBytes
// long and starts with the PNG signature.
func readValidOutput(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("no output: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) < MinOutputBytes {
		return nil, fmt.Errorf("output too small (%d bytes)", len(data))
	}
	if !pngcodec.HasSignature(data) {
		return nil, errors.New("output is not a PNG")
	}
	return data, nil
}

// Cleanup kills every rasterizer subprocess still running.
func (c *Chain) Cleanup() {
	c.tracker.killAll()
}
