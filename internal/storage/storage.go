package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"paper-reader/internal/filesystem"
)

// File names inside a document directory.
const (
	PDFName      = "paper.pdf"
	CoverName    = "cover.png"
	MetadataName = "metadata.json"
)

var (
	// ErrNotFound is returned when a document or one of its files is missing.
	ErrNotFound = errors.New("not found")
	// ErrTooLarge is returned when a stream exceeds its byte limit.
	ErrTooLarge = errors.New("file too large")
	// ErrNotPDF is returned when a PDF stream does not start with %PDF.
	ErrNotPDF = errors.New("not a PDF")
	// ErrExists is returned by Create for an ID that is already taken.
	ErrExists = errors.New("document already exists")
)

// PDFSignature is the prefix every accepted PDF starts with.
var PDFSignature = []byte("%PDF")

// Metadata is the immutable record stored next to each PDF.
type Metadata struct {
	Title            string   `json:"title" validate:"required"`
	OriginalFilename string   `json:"originalFilename" validate:"required,max=120,safefilename"`
	Tags             []string `json:"tags" validate:"max=12,dive,required"`
	UploadedAt       string   `json:"uploadedAt" validate:"required,datetime=2006-01-02T15:04:05.000000Z"`
	SizeBytes        int64    `json:"sizeBytes" validate:"gte=0"`
}

// Store is the on-disk document tree.
type Store struct {
	root  string
	retry filesystem.RetryConfig
}

// New returns a store rooted at root, creating it if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create papers directory: %w", err)
	}
	return &Store{root: root, retry: filesystem.DefaultRetryConfig()}, nil
}

// Root returns the papers directory.
func (s *Store) Root() string { return s.root }

// Dir returns the directory of document id.
func (s *Store) Dir(id string) string { return filepath.Join(s.root, id) }

// PDFPath returns the path of id's PDF.
func (s *Store) PDFPath(id string) string { return filepath.Join(s.root, id, PDFName) }

// CoverPath returns the path of id's cover.
func (s *Store) CoverPath(id string) string { return filepath.Join(s.root, id, CoverName) }

// MetadataPath returns the path of id's metadata record.
func (s *Store) MetadataPath(id string) string { return filepath.Join(s.root, id, MetadataName) }

// Create makes the directory for a new document.
func (s *Store) Create(id string) error {
	if err := os.Mkdir(s.Dir(id), 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("create document directory: %w", err)
	}
	return nil
}

// Exists reports whether id has a directory.
func (s *Store) Exists(id string) bool {
	info, err := filesystem.StatWithRetry(s.Dir(id), s.retry)
	return err == nil && info.IsDir()
}

// Remove deletes id's directory and everything in it.
func (s *Store) Remove(id string) error {
	return filesystem.RemoveAll(s.Dir(id))
}

// SavePDF streams r into id's PDF, rejecting streams that do not start with
// %PDF or that exceed limit bytes. It returns the number of bytes stored.
func (s *Store) SavePDF(id string, r io.Reader, limit int64) (int64, error) {
	lr := &limitedReader{r: r, remaining: limit, signature: PDFSignature}
	n, err := filesystem.WriteReaderAtomic(s.PDFPath(id), lr, 0o644)
	if err != nil {
		return n, err
	}
	if n < int64(len(PDFSignature)) {
		_ = os.Remove(s.PDFPath(id))
		return n, ErrNotPDF
	}
	return n, nil
}

// SaveCover stores data as id's cover.
func (s *Store) SaveCover(id string, data []byte) error {
	return filesystem.WriteFileAtomic(s.CoverPath(id), data, 0o644)
}

// WriteMetadata stores meta as id's metadata record.
func (s *Store) WriteMetadata(id string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return filesystem.WriteFileAtomic(s.MetadataPath(id), data, 0o644)
}

// ReadMetadata loads id's metadata record.
func (s *Store) ReadMetadata(id string) (Metadata, error) {
	f, err := filesystem.OpenWithRetry(s.MetadataPath(id), s.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, ErrNotFound
		}
		return Metadata{}, err
	}
	defer f.Close()

	var meta Metadata
	if err := json.NewDecoder(f).Decode(&meta); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	return meta, nil
}

// OpenPDF opens id's PDF for reading.
func (s *Store) OpenPDF(id string) (*os.File, os.FileInfo, error) {
	f, err := filesystem.OpenWithRetry(s.PDFPath(id), s.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// ReadAllLimited reads r fully, failing with ErrTooLarge past limit bytes.
func ReadAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(&limitedReader{r: r, remaining: limit})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// limitedReader fails with ErrTooLarge once more than remaining bytes have
// been read, and with ErrNotPDF when the stream does not start with
// signature.
type limitedReader struct {
	r         io.Reader
	remaining int64
	signature []byte
	head      []byte
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if n > 0 {
		if int64(n) > l.remaining {
			return 0, ErrTooLarge
		}
		l.remaining -= int64(n)

		if need := len(l.signature) - len(l.head); need > 0 {
			take := min(need, n)
			l.head = append(l.head, p[:take]...)
			if !bytes.HasPrefix(l.signature, l.head) {
				return 0, ErrNotPDF
			}
		}
	}
	return n, err
}
