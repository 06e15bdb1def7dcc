package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"paper-reader/internal/cover"
	"paper-reader/internal/index"
	"paper-reader/internal/logging"
	"paper-reader/internal/metrics"
	"paper-reader/internal/pngcodec"
	"paper-reader/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TimeLayout is the uploadedAt format: UTC with microseconds and a literal Z.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Default upload limits.
const (
	DefaultMaxPDFBytes   = 50 * 1024 * 1024
	DefaultMaxCoverBytes = 10 * 1024 * 1024
)

// Config holds upload limits.
type Config struct {
	MaxPDFBytes   int64
	MaxCoverBytes int64
}

// Library implements document operations on top of the store, the index and
// the cover resolver.
type Library struct {
	store    *storage.Store
	index    *index.Index
	covers   *cover.Resolver
	cfg      Config
	validate *validator.Validate

	now   func() time.Time
	newID func() string
}

var safeFilename = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// New creates a library. Zero limits select the defaults.
func New(store *storage.Store, idx *index.Index, covers *cover.Resolver, cfg Config) *Library {
	if cfg.MaxPDFBytes <= 0 {
		cfg.MaxPDFBytes = DefaultMaxPDFBytes
	}
	if cfg.MaxCoverBytes <= 0 {
		cfg.MaxCoverBytes = DefaultMaxCoverBytes
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("safefilename", func(fl validator.FieldLevel) bool {
		return safeFilename.MatchString(fl.Field().String())
	})

	return &Library{
		store:    store,
		index:    idx,
		covers:   covers,
		cfg:      cfg,
		validate: validate,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// UploadRequest is one document upload. Cover is nil when no cover was sent.
type UploadRequest struct {
	Title    string
	Tags     string
	Filename string

	PDF            io.Reader
	PDFContentType string

	Cover            io.Reader
	CoverContentType string
}

// Upload stores a new document and returns its index entry. Any failure
// removes the partially written document before returning.
func (l *Library) Upload(ctx context.Context, req UploadRequest) (entry index.Entry, err error) {
	status := "error"
	defer func() {
		var verr *ValidationError
		if errors.As(err, &verr) {
			status = "invalid"
			if verr.Status == 413 {
				status = "too_large"
			}
		}
		metrics.UploadsTotal.WithLabelValues(status).Inc()
	}()

	if req.PDF == nil {
		return index.Entry{}, badRequest("PDF required")
	}
	if !contentTypeAllowed(req.PDFContentType, "application/pdf") {
		return index.Entry{}, badRequest("PDF only")
	}
	if req.Cover != nil && !contentTypeAllowed(req.CoverContentType, "image/png") {
		return index.Entry{}, badRequest("Cover must be PNG")
	}

	filename := SanitizeFilename(req.Filename)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = stripExt(filename)
	}
	if title == "" {
		return index.Entry{}, badRequest("Title required")
	}
	if filename == "" {
		filename = FallbackFilename
	}

	id := l.newID()
	if err := l.store.Create(id); err != nil {
		return index.Entry{}, fmt.Errorf("create document: %w", err)
	}
	defer func() {
		if err != nil {
			if rmErr := l.store.Remove(id); rmErr != nil {
				logging.Error("Failed to roll back upload %s: %v", id, rmErr)
			}
		}
	}()

	size, err := l.store.SavePDF(id, req.PDF, l.cfg.MaxPDFBytes)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return index.Entry{}, tooLarge("PDF too large")
	case errors.Is(err, storage.ErrNotPDF):
		return index.Entry{}, badRequest("File is not a PDF")
	case err != nil:
		return index.Entry{}, fmt.Errorf("save pdf: %w", err)
	}

	hasCover, err := l.saveCover(id, req.Cover)
	if err != nil {
		return index.Entry{}, err
	}
	if !hasCover {
		if _, err := l.covers.Ensure(ctx, id); err != nil {
			return index.Entry{}, fmt.Errorf("generate cover: %w", err)
		}
	}

	meta := storage.Metadata{
		Title:            title,
		OriginalFilename: filename,
		Tags:             ParseTags(req.Tags),
		UploadedAt:       l.now().UTC().Format(TimeLayout),
		SizeBytes:        size,
	}
	if err := l.validate.Struct(meta); err != nil {
		return index.Entry{}, badRequest(fmt.Sprintf("Invalid metadata: %v", err))
	}
	if err := l.store.WriteMetadata(id, meta); err != nil {
		return index.Entry{}, fmt.Errorf("write metadata: %w", err)
	}

	entry = index.Entry{ID: id, Metadata: meta}
	if err := l.index.Insert(entry); err != nil {
		return index.Entry{}, fmt.Errorf("update index: %w", err)
	}

	status = "success"
	metrics.UploadBytes.Observe(float64(size))
	logging.Info("Stored paper %s (%q, %d bytes, cover supplied: %v)", id, title, size, hasCover)
	return entry, nil
}

// saveCover stores a supplied cover and reports whether it is usable. An
// empty part or a 1×1 image counts as no cover.
func (l *Library) saveCover(id string, r io.Reader) (bool, error) {
	if r == nil {
		return false, nil
	}
	data, err := storage.ReadAllLimited(r, l.cfg.MaxCoverBytes)
	if errors.Is(err, storage.ErrTooLarge) {
		return false, tooLarge("Cover too large")
	}
	if err != nil {
		return false, fmt.Errorf("read cover: %w", err)
	}
	if len(data) == 0 {
		return false, nil
	}

	w, h, ok := pngcodec.DecodeHeader(data)
	if !ok {
		return false, badRequest("Cover must be PNG")
	}
	if w == 1 && h == 1 {
		logging.Debug("Upload %s supplied the 1x1 placeholder cover, generating one instead", id)
		return false, nil
	}
	if err := l.store.SaveCover(id, data); err != nil {
		return false, fmt.Errorf("save cover: %w", err)
	}
	return true, nil
}

// contentTypeAllowed accepts an empty or generic declared type, or want.
func contentTypeAllowed(declared, want string) bool {
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	return declared == "" || declared == "application/octet-stream" || declared == want
}

// Get returns the stored metadata of id.
func (l *Library) Get(id string) (index.Entry, error) {
	if err := ValidateID(id); err != nil {
		return index.Entry{}, err
	}
	meta, err := l.store.ReadMetadata(id)
	if errors.Is(err, storage.ErrNotFound) {
		return index.Entry{}, ErrNotFound
	}
	if err != nil {
		return index.Entry{}, err
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	return index.Entry{ID: id, Metadata: meta}, nil
}

// List returns every indexed document, newest first.
func (l *Library) List() ([]index.Entry, error) {
	entries, err := l.index.List()
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []index.Entry{}
	}
	return entries, nil
}

// Delete removes id's files and its index entry. Deleting an unknown
// document succeeds.
func (l *Library) Delete(id string) (err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.DeletesTotal.WithLabelValues(status).Inc()
	}()

	if err := ValidateID(id); err != nil {
		return err
	}

	existed := false
	err = l.covers.WithLock(id, func() error {
		existed = l.store.Exists(id)
		if err := l.store.Remove(id); err != nil {
			return fmt.Errorf("remove files: %w", err)
		}
		if _, err := l.index.Remove(id); err != nil {
			return fmt.Errorf("remove index entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if existed {
		logging.Info("Deleted paper %s", id)
	} else {
		logging.Debug("Delete of unknown paper %s", id)
	}
	return nil
}

// Cover returns the bytes to serve as id's cover.
func (l *Library) Cover(ctx context.Context, id string) (cover.Result, error) {
	if err := ValidateID(id); err != nil {
		return cover.Result{}, err
	}
	return l.covers.Resolve(ctx, id)
}

// PDF opens id's PDF and returns it with the filename to offer on download.
func (l *Library) PDF(id string) (*os.File, os.FileInfo, string, error) {
	if err := ValidateID(id); err != nil {
		return nil, nil, "", err
	}
	f, info, err := l.store.OpenPDF(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, "", ErrNotFound
	}
	if err != nil {
		return nil, nil, "", err
	}
	return f, info, l.downloadName(id), nil
}

func (l *Library) downloadName(id string) string {
	if meta, err := l.store.ReadMetadata(id); err == nil && meta.OriginalFilename != "" {
		return meta.OriginalFilename
	}
	if e, ok, err := l.index.Get(id); err == nil && ok && e.OriginalFilename != "" {
		return e.OriginalFilename
	}
	return FallbackFilename
}

// Reconcile drops index entries whose metadata file is gone.
func (l *Library) Reconcile() ([]string, error) {
	dropped, err := l.index.Reconcile(func(e index.Entry) bool {
		if ValidateID(e.ID) != nil {
			return false
		}
		_, err := os.Stat(l.store.MetadataPath(e.ID))
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range dropped {
		logging.Warn("Dropped index entry %s: no metadata on disk", id)
	}
	return dropped, nil
}

// Ready checks that the papers directory and the index can be read.
func (l *Library) Ready() error {
	if _, err := os.ReadDir(l.store.Root()); err != nil {
		return fmt.Errorf("papers directory: %w", err)
	}
	if _, err := l.index.List(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return nil
}

// Stats implements metrics.StatsProvider.
func (l *Library) Stats() metrics.Stats {
	var s metrics.Stats
	if entries, err := l.index.List(); err == nil {
		s.Papers = len(entries)
		for _, e := range entries {
			s.TotalBytes += e.SizeBytes
		}
	} else {
		logging.Warn("Failed to read index for stats: %v", err)
	}
	s.FailedCovers = l.covers.Failures().Len()
	return s
}
