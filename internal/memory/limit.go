// Package memory derives the Go heap limit from the container memory limit.
// The rest of the container budget is left to renderer subprocesses.
package memory

import (
	"math"
	"runtime/debug"
	"strconv"

	"paper-reader/internal/logging"
)

// DefaultRatio is the share of the container limit given to the Go heap.
const DefaultRatio = 0.75

// Source names where a heap limit came from.
type Source string

const (
	SourceNone        Source = "none"
	SourceGoMemLimit  Source = "GOMEMLIMIT"
	SourceMemoryLimit Source = "MEMORY_LIMIT"
)

// Limit describes the heap limit in effect after ApplyLimit.
type Limit struct {
	Source         Source
	ContainerBytes int64
	HeapBytes      int64
	Ratio          float64
}

// ApplyLimit sets the runtime memory limit from MEMORY_LIMIT and
// MEMORY_RATIO as returned by getenv. An explicit GOMEMLIMIT wins and is
// only reported.
func ApplyLimit(getenv func(string) string) Limit {
	if getenv("GOMEMLIMIT") != "" {
		current := debug.SetMemoryLimit(-1)
		if current <= 0 || current == math.MaxInt64 {
			return Limit{Source: SourceNone}
		}
		logging.Info("Heap limit %s set via GOMEMLIMIT", formatBytes(current))
		return Limit{Source: SourceGoMemLimit, HeapBytes: current}
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		return Limit{Source: SourceNone}
	}
	container, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || container <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive byte count", raw)
		return Limit{Source: SourceNone}
	}

	ratio := DefaultRatio
	if s := getenv("MEMORY_RATIO"); s != "" {
		parsed, err := strconv.ParseFloat(s, 64)
		if err == nil && parsed > 0 && parsed <= 1 {
			ratio = parsed
		} else {
			logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", s, DefaultRatio)
		}
	}

	heap := int64(float64(container) * ratio)
	debug.SetMemoryLimit(heap)
	logging.Info("Heap limit %s (%.0f%% of %s container limit)",
		formatBytes(heap), ratio*100, formatBytes(container))

	return Limit{
		Source:         SourceMemoryLimit,
		ContainerBytes: container,
		HeapBytes:      heap,
		Ratio:          ratio,
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
