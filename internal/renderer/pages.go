package renderer

import (
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var pdfcpuOnce sync.Once

// PageCount returns the number of pages pdfcpu finds in the PDF at path.
func PageCount(path string) (int, error) {
	pdfcpuOnce.Do(api.DisableConfigDir)
	return api.PageCountFile(path)
}
