package pngcodec

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
)

// Signature is the 8-byte PNG file signature.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// HeaderSize is the number of leading bytes DecodeHeader needs.
const HeaderSize = 24

const (
	bitDepth      = 8
	colorTypeRGBA = 6
	bytesPerPixel = 4
)

// PixelFunc returns the RGBA value of the pixel at (x, y).
type PixelFunc func(x, y uint32) (r, g, b, a uint8)

// HasSignature reports whether data starts with the PNG signature.
func HasSignature(data []byte) bool {
	return bytes.HasPrefix(data, Signature)
}

// DecodeHeader returns the image dimensions from the IHDR chunk. ok is false
// unless data starts with the PNG signature, the first chunk type is IHDR and
// both dimensions are non-zero.
func DecodeHeader(data []byte) (width, height uint32, ok bool) {
	if len(data) < HeaderSize || !HasSignature(data) {
		return 0, 0, false
	}
	if string(data[12:16]) != "IHDR" {
		return 0, 0, false
	}
	width = binary.BigEndian.Uint32(data[16:20])
	height = binary.BigEndian.Uint32(data[20:24])
	if width == 0 || height == 0 {
		return 0, 0, false
	}
	return width, height, true
}

// IsPlaceholder reports whether data is a PNG whose header says 1×1, the
// sentinel for "no real cover yet". File size is irrelevant.
func IsPlaceholder(data []byte) bool {
	w, h, ok := DecodeHeader(data)
	return ok && w == 1 && h == 1
}

// ReadHeaderFile reads just enough of the file at path to decode its header.
func ReadHeaderFile(path string) (width, height uint32, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false, err
	}
	defer f.Close()

	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	width, height, ok = DecodeHeader(buf[:n])
	return width, height, ok, nil
}

// EncodeRGBA renders a width×height image by calling pixel for every pixel in
// row-major order and returns the encoded PNG.
func EncodeRGBA(width, height uint32, pixel PixelFunc) ([]byte, error) {
	var raw bytes.Buffer
	zw := zlib.NewWriter(&raw)
	row := make([]byte, 1+int(width)*bytesPerPixel)
	for y := uint32(0); y < height; y++ {
		row[0] = 0 // filter: none
		for x := uint32(0); x < width; x++ {
			r, g, b, a := pixel(x, y)
			off := 1 + int(x)*bytesPerPixel
			row[off], row[off+1], row[off+2], row[off+3] = r, g, b, a
		}
		if _, err := zw.Write(row); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = bitDepth
	ihdr[9] = colorTypeRGBA
	// compression, filter method and interlace are all 0

	var out bytes.Buffer
	out.Grow(len(Signature) + 3*12 + len(ihdr) + raw.Len())
	out.Write(Signature)
	writeChunk(&out, "IHDR", ihdr)
	writeChunk(&out, "IDAT", raw.Bytes())
	writeChunk(&out, "IEND", nil)
	return out.Bytes(), nil
}

// writeChunk appends length || type || data || crc32(type || data).
func writeChunk(buf *bytes.Buffer, typ string, data []byte) {
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], uint32(len(data)))
	buf.Write(word[:])

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)

	buf.WriteString(typ)
	buf.Write(data)
	binary.BigEndian.PutUint32(word[:], crc.Sum32())
	buf.Write(word[:])
}
