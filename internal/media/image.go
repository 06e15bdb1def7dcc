package media

import (
	"bytes"
	"fmt"

	"paper-reader/internal/logging"

	"github.com/disintegration/imaging"
)

// FitWidth scales a PNG down to maxWidth, keeping its aspect ratio. Images
// already narrow enough are returned unchanged with resized == false.
func FitWidth(data []byte, maxWidth int) (out []byte, resized bool, err error) {
	if maxWidth <= 0 {
		return data, false, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode cover: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxWidth {
		return data, false, nil
	}

	scaled := imaging.Resize(img, maxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, scaled, imaging.PNG); err != nil {
		return nil, false, fmt.Errorf("encode cover: %w", err)
	}

	logging.Debug("Downscaled cover from %dx%d to %dx%d",
		bounds.Dx(), bounds.Dy(), scaled.Bounds().Dx(), scaled.Bounds().Dy())
	return buf.Bytes(), true, nil
}
