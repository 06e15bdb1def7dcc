package renderer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"paper-reader/internal/logging"
	"paper-reader/internal/media"
)

// Strategy is one way of producing a first-page PNG.
type Strategy interface {
	// Name is the tool label used in logs and metrics.
	Name() string
	// Available reports whether the strategy can run on this host.
	Available() bool
	// Render writes page 1 of pdfPath as a PNG to outPath.
	Render(ctx context.Context, pdfPath, outPath string) error
}

// CommandStrategy runs an external rasterizer.
type CommandStrategy struct {
	Tool   string
	Binary string
	// Args builds the command line for rendering pdfPath into outPath.
	Args func(pdfPath, outPath string) []string
	// Output maps outPath to the file the tool actually writes. Nil means
	// outPath itself.
	Output func(outPath string) string

	tracker *processTracker
}

// Name returns the tool label.
func (s *CommandStrategy) Name() string { return s.Tool }

// Available reports whether the binary is on PATH.
func (s *CommandStrategy) Available() bool {
	_, err := exec.LookPath(s.Binary)
	return err == nil
}

// Render runs the tool and moves its output to outPath.
func (s *CommandStrategy) Render(ctx context.Context, pdfPath, outPath string) error {
	cmd := exec.CommandContext(ctx, s.Binary, s.Args(pdfPath, outPath)...)
	cmd.WaitDelay = 2 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if s.tracker != nil {
		untrack := s.tracker.track(s.Tool+" "+filepath.Base(filepath.Dir(pdfPath)), cmd)
		defer untrack()
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", s.Tool, err, tail(stderr.Bytes(), 200))
	}
	if stderr.Len() > 0 {
		logging.Debug("%s stderr: %s", s.Tool, tail(stderr.Bytes(), 200))
	}

	if s.Output != nil {
		if produced := s.Output(outPath); produced != outPath {
			if err := os.Rename(produced, outPath); err != nil {
				return fmt.Errorf("%s: output not found: %w", s.Tool, err)
			}
		}
	}
	return nil
}

func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

// Pdftoppm renders with poppler's pdftoppm, scaled to width pixels.
func Pdftoppm(width int) *CommandStrategy {
	return &CommandStrategy{
		Tool:   "pdftoppm",
		Binary: "pdftoppm",
		Args: func(pdfPath, outPath string) []string {
			return []string{
				"-png", "-singlefile",
				"-f", "1", "-l", "1",
				"-scale-to-x", strconv.Itoa(width),
				"-scale-to-y", "-1",
				pdfPath,
				prefix(outPath),
			}
		},
		// pdftoppm appends the extension to the prefix it is given.
		Output: func(outPath string) string { return prefix(outPath) + ".png" },
	}
}

// prefix returns outPath without its extension, under a name that cannot
// collide with outPath itself.
func prefix(outPath string) string {
	return outPath[:len(outPath)-len(filepath.Ext(outPath))] + "-page"
}

// Mutool renders with MuPDF's mutool draw at dpi.
func Mutool(dpi int) *CommandStrategy {
	return &CommandStrategy{
		Tool:   "mutool",
		Binary: "mutool",
		Args: func(pdfPath, outPath string) []string {
			return []string{"draw", "-r", strconv.Itoa(dpi), "-o", outPath, pdfPath, "1"}
		},
	}
}

// Ghostscript renders with gs at dpi.
func Ghostscript(dpi int) *CommandStrategy {
	return &CommandStrategy{
		Tool:   "gs",
		Binary: "gs",
		Args: func(pdfPath, outPath string) []string {
			return []string{
				"-q", "-dSAFER", "-dBATCH", "-dNOPAUSE",
				"-sDEVICE=png16m",
				"-r" + strconv.Itoa(dpi),
				"-dFirstPage=1", "-dLastPage=1",
				"-sOutputFile=" + outPath,
				pdfPath,
			}
		},
	}
}

// VipsStrategy renders in-process with libvips.
type VipsStrategy struct {
	DPI      int
	MaxWidth int
}

// Name returns "vips".
func (v *VipsStrategy) Name() string { return "vips" }

// Available reports whether libvips was initialized.
func (v *VipsStrategy) Available() bool { return media.IsVipsAvailable() }

// Render rasterizes with libvips. A cgo call cannot be interrupted, so on
// timeout the render is abandoned and its result discarded.
func (v *VipsStrategy) Render(ctx context.Context, pdfPath, outPath string) error {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := media.RenderPDFPage(pdfPath, v.DPI, v.MaxWidth)
		done <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		return os.WriteFile(outPath, res.data, 0o644)
	}
}
