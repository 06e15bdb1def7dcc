package media

import (
	"bytes"
	"testing"

	"paper-reader/internal/pngcodec"
)

func gradient(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data, err := pngcodec.EncodeRGBA(w, h, func(x, y uint32) (uint8, uint8, uint8, uint8) {
		return uint8(x), uint8(y), 128, 255
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestFitWidth(t *testing.T) {
	tests := []struct {
		name        string
		w, h        uint32
		maxWidth    int
		wantResized bool
		wantW       uint32
		wantH       uint32
	}{
		{"wider than max", 1280, 1656, 640, true, 640, 828},
		{"exactly max", 640, 800, 640, false, 640, 800},
		{"narrower than max", 300, 400, 640, false, 300, 400},
		{"no limit", 2000, 100, 0, false, 2000, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := gradient(t, tt.w, tt.h)
			out, resized, err := FitWidth(in, tt.maxWidth)
			if err != nil {
				t.Fatalf("FitWidth error: %v", err)
			}
			if resized != tt.wantResized {
				t.Errorf("resized = %v, want %v", resized, tt.wantResized)
			}
			if !resized && !bytes.Equal(out, in) {
				t.Error("unchanged image was re-encoded")
			}
			w, h, ok := pngcodec.DecodeHeader(out)
			if !ok || w != tt.wantW || h != tt.wantH {
				t.Errorf("output = %dx%d ok=%v, want %dx%d", w, h, ok, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFitWidthRejectsGarbage(t *testing.T) {
	if _, _, err := FitWidth([]byte("not an image"), 100); err == nil {
		t.Error("expected decode error")
	}
}
