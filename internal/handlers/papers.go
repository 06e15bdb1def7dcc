package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"

	"paper-reader/internal/library"
	"paper-reader/internal/logging"

	"github.com/gorilla/mux"
)

// maxFieldBytes bounds each text field of an upload.
const maxFieldBytes = 64 * 1024

// ListPapers returns every paper, newest first.
func (h *Handlers) ListPapers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.library.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, entries)
}

// GetPaper returns one paper's metadata.
func (h *Handlers) GetPaper(w http.ResponseWriter, r *http.Request) {
	entry, err := h.library.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, entry)
}

// GetCover returns the paper's cover PNG, generating it on first request
// and falling back to the default cover.
func (h *Handlers) GetCover(w http.ResponseWriter, r *http.Request) {
	res, err := h.library.Cover(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", fmt.Sprint(len(res.Data)))
	w.Header().Set("X-Cover-Source", string(res.Source))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(res.Data); err != nil {
		logging.Debug("Cover write aborted: %v", err)
	}
}

// GetFile streams the stored PDF. download=1 makes it an attachment named
// after the original upload.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	f, info, name, err := h.library.PDF(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// UploadPaper stores a new paper from a multipart form with a required pdf
// part and optional cover, title, tags and filename parts.
func (h *Handlers) UploadPaper(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	form, err := h.readUpload(r)
	defer form.cleanup()
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := library.UploadRequest{
		Title:    form.fields["title"],
		Tags:     form.fields["tags"],
		Filename: form.fields["filename"],
	}
	if pdf := form.files["pdf"]; pdf != nil {
		req.PDF = pdf.file
		req.PDFContentType = pdf.contentType
		if req.Filename == "" {
			req.Filename = pdf.filename
		}
	}
	if cover := form.files["cover"]; cover != nil {
		req.Cover = cover.file
		req.CoverContentType = cover.contentType
	}

	entry, err := h.library.Upload(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, entry)
}

// DeletePaper removes a paper. Unknown IDs also get 204.
func (h *Handlers) DeletePaper(w http.ResponseWriter, r *http.Request) {
	if err := h.library.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type spooledPart struct {
	file        *os.File
	filename    string
	contentType string
}

type uploadForm struct {
	fields map[string]string
	files  map[string]*spooledPart
}

func (f *uploadForm) cleanup() {
	for _, p := range f.files {
		p.file.Close()
		if err := os.Remove(p.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to remove upload spool %s: %v", p.file.Name(), err)
		}
	}
}

// readUpload walks the multipart body once, spooling file parts to disk so
// field order does not matter.
func (h *Handlers) readUpload(r *http.Request) (*uploadForm, error) {
	form := &uploadForm{fields: map[string]string{}, files: map[string]*spooledPart{}}

	mr, err := r.MultipartReader()
	if err != nil {
		return form, &library.ValidationError{Status: http.StatusBadRequest, Reason: "Expected multipart form"}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return form, nil
		}
		if err != nil {
			return form, wrapBodyError(err)
		}

		name := part.FormName()
		switch name {
		case "pdf", "cover":
			if form.files[name] != nil {
				_, err = io.Copy(io.Discard, part)
				break
			}
			var sp *spooledPart
			sp, err = h.spool(part)
			if sp != nil {
				form.files[name] = sp
			}
		case "title", "tags", "filename":
			var data []byte
			data, err = io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err == nil && len(data) > maxFieldBytes {
				err = &library.ValidationError{Status: http.StatusBadRequest, Reason: "Field " + name + " too long"}
			}
			form.fields[name] = string(data)
		default:
			_, err = io.Copy(io.Discard, part)
		}
		part.Close()
		if err != nil {
			return form, wrapBodyError(err)
		}
	}
}

func (h *Handlers) spool(part *multipart.Part) (*spooledPart, error) {
	f, err := os.CreateTemp(h.tempDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create upload spool: %w", err)
	}
	sp := &spooledPart{
		file:        f,
		filename:    part.FileName(),
		contentType: part.Header.Get("Content-Type"),
	}

	if _, err := io.Copy(f, part); err != nil {
		return sp, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return sp, fmt.Errorf("rewind upload spool: %w", err)
	}
	return sp, nil
}

// wrapBodyError keeps size-limit errors recognizable and reports any other
// malformed body as a client error.
func wrapBodyError(err error) error {
	var maxErr *http.MaxBytesError
	var verr *library.ValidationError
	if errors.As(err, &maxErr) || errors.As(err, &verr) {
		return err
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return err
	}
	return &library.ValidationError{Status: http.StatusBadRequest, Reason: "Malformed multipart body"}
}
