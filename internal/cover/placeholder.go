package cover

import (
	"sync"

	"paper-reader/internal/pngcodec"
)

// Default placeholder dimensions.
const (
	DefaultWidth  = 360
	DefaultHeight = 480

	bannerRows = 48
)

type rgba struct{ r, g, b, a uint8 }

var (
	borderColor     = rgba{0x9a, 0xa3, 0xb0, 0xff}
	bannerColor     = rgba{0x2f, 0x4b, 0x7c, 0xff}
	backgroundColor = rgba{0xf3, 0xf4, 0xf6, 0xff}
)

// Placeholder renders the generated default cover: a one-pixel border, a
// banner over the first 48 rows and a flat background. The output depends
// only on width and height. Dimensions below 2×2 are raised to 2×2 so the
// result can never be mistaken for the 1×1 sentinel.
func Placeholder(width, height uint32) ([]byte, error) {
	if width < 2 {
		width = 2
	}
	if height < 2 {
		height = 2
	}
	return pngcodec.EncodeRGBA(width, height, func(x, y uint32) (uint8, uint8, uint8, uint8) {
		c := backgroundColor
		switch {
		case x == 0 || y == 0 || x == width-1 || y == height-1:
			c = borderColor
		case y < bannerRows:
			c = bannerColor
		}
		return c.r, c.g, c.b, c.a
	})
}

type placeholderKey struct{ w, h uint32 }

var placeholderCache sync.Map // placeholderKey -> []byte

// CachedPlaceholder returns Placeholder(width, height), encoding each size once.
// Callers must not modify the returned slice.
func CachedPlaceholder(width, height uint32) ([]byte, error) {
	key := placeholderKey{width, height}
	if v, ok := placeholderCache.Load(key); ok {
		return v.([]byte), nil
	}
	data, err := Placeholder(width, height)
	if err != nil {
		return nil, err
	}
	v, _ := placeholderCache.LoadOrStore(key, data)
	return v.([]byte), nil
}

// DefaultPlaceholder returns the placeholder at DefaultWidth×DefaultHeight.
func DefaultPlaceholder() ([]byte, error) {
	return CachedPlaceholder(DefaultWidth, DefaultHeight)
}

// Sentinel returns a fully transparent 1×1 PNG, the on-disk marker meaning
// "no real cover yet".
func Sentinel() []byte {
	data, _ := pngcodec.EncodeRGBA(1, 1, func(_, _ uint32) (uint8, uint8, uint8, uint8) {
		return 0, 0, 0, 0
	})
	return data
}
