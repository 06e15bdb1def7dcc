package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"testing/iotest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir() + "/papers")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCreateAndPaths(t *testing.T) {
	s := newStore(t)
	if err := s.Create("abc"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !s.Exists("abc") {
		t.Error("Exists = false after Create")
	}
	if err := s.Create("abc"); !errors.Is(err, ErrExists) {
		t.Errorf("second Create err = %v, want ErrExists", err)
	}
	if s.Exists("nope") {
		t.Error("Exists = true for unknown id")
	}

	for path, suffix := range map[string]string{
		s.PDFPath("abc"):      "/abc/paper.pdf",
		s.CoverPath("abc"):    "/abc/cover.png",
		s.MetadataPath("abc"): "/abc/metadata.json",
	} {
		if !strings.HasSuffix(path, suffix) {
			t.Errorf("path %s does not end in %s", path, suffix)
		}
	}
}

func TestSavePDF(t *testing.T) {
	body := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("a"), 5000)...)

	tests := []struct {
		name    string
		data    []byte
		limit   int64
		wantErr error
	}{
		{"valid", body, 1 << 20, nil},
		{"exactly at limit", body, int64(len(body)), nil},
		{"one byte over", body, int64(len(body)) - 1, ErrTooLarge},
		{"not a pdf", []byte("<html>hello</html>"), 1 << 20, ErrNotPDF},
		{"empty", nil, 1 << 20, ErrNotPDF},
		{"truncated signature", []byte("%PD"), 1 << 20, ErrNotPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			if err := s.Create("doc"); err != nil {
				t.Fatal(err)
			}

			n, err := s.SavePDF("doc", bytes.NewReader(tt.data), tt.limit)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if _, statErr := os.Stat(s.PDFPath("doc")); !os.IsNotExist(statErr) {
					t.Error("rejected PDF left on disk")
				}
				return
			}
			if n != int64(len(tt.data)) {
				t.Errorf("n = %d, want %d", n, len(tt.data))
			}
			got, _ := os.ReadFile(s.PDFPath("doc"))
			if !bytes.Equal(got, tt.data) {
				t.Error("stored PDF differs from input")
			}
		})
	}
}

func TestSavePDFSignatureSplitAcrossReads(t *testing.T) {
	s := newStore(t)
	if err := s.Create("doc"); err != nil {
		t.Fatal(err)
	}
	n, err := s.SavePDF("doc", iotest.OneByteReader(strings.NewReader("%PDF-1.4 tiny")), 1024)
	if err != nil || n != 13 {
		t.Errorf("SavePDF = %d, %v", n, err)
	}

	if _, err := s.SavePDF("doc", iotest.OneByteReader(strings.NewReader("%PDX")), 1024); !errors.Is(err, ErrNotPDF) {
		t.Errorf("err = %v, want ErrNotPDF", err)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newStore(t)
	if err := s.Create("doc"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.ReadMetadata("doc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadMetadata before write err = %v, want ErrNotFound", err)
	}

	meta := Metadata{
		Title:            "Attention Is All You Need",
		OriginalFilename: "attention.pdf",
		Tags:             []string{"nlp", "transformers"},
		UploadedAt:       "2024-05-01T12:00:00.000000Z",
		SizeBytes:        2215244,
	}
	if err := s.WriteMetadata("doc", meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	raw, _ := os.ReadFile(s.MetadataPath("doc"))
	for _, key := range []string{`"title"`, `"originalFilename"`, `"tags"`, `"uploadedAt"`, `"sizeBytes"`} {
		if !bytes.Contains(raw, []byte(key)) {
			t.Errorf("metadata.json missing %s", key)
		}
	}

	got, err := s.ReadMetadata("doc")
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if got.Title != meta.Title || got.SizeBytes != meta.SizeBytes || len(got.Tags) != 2 {
		t.Errorf("ReadMetadata = %+v", got)
	}
}

func TestReadMetadataCorrupt(t *testing.T) {
	s := newStore(t)
	if err := s.Create("doc"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.MetadataPath("doc"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadMetadata("doc"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want decode error", err)
	}
}

func TestOpenPDF(t *testing.T) {
	s := newStore(t)
	if _, _, err := s.OpenPDF("doc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := s.Create("doc"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavePDF("doc", strings.NewReader("%PDF-1.4 x"), 100); err != nil {
		t.Fatal(err)
	}
	f, info, err := s.OpenPDF("doc")
	if err != nil {
		t.Fatalf("OpenPDF: %v", err)
	}
	defer f.Close()
	if info.Size() != 10 {
		t.Errorf("size = %d, want 10", info.Size())
	}
	data, _ := io.ReadAll(f)
	if string(data) != "%PDF-1.4 x" {
		t.Errorf("content = %q", data)
	}
}

func TestRemove(t *testing.T) {
	s := newStore(t)
	if err := s.Create("doc"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCover("doc", []byte("png")); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("doc"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Exists("doc") {
		t.Error("document still exists")
	}
	if err := s.Remove("doc"); err != nil {
		t.Errorf("Remove of missing document: %v", err)
	}
}

func TestReadAllLimited(t *testing.T) {
	data, err := ReadAllLimited(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Errorf("at limit = %q, %v", data, err)
	}
	if _, err := ReadAllLimited(strings.NewReader("123456"), 5); !errors.Is(err, ErrTooLarge) {
		t.Errorf("over limit err = %v, want ErrTooLarge", err)
	}
}
