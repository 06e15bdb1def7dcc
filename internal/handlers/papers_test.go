package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"paper-reader/internal/cover"
	"paper-reader/internal/index"
	"paper-reader/internal/library"
	"paper-reader/internal/pngcodec"
	"paper-reader/internal/storage"

	"github.com/gorilla/mux"
)

type stubRenderer struct {
	calls atomic.Int32
	fail  bool
	out   []byte
}

func (s *stubRenderer) RenderFirstPage(_ context.Context, _, outPath string) error {
	s.calls.Add(1)
	if s.fail {
		return errors.New("no rasterizer")
	}
	tmp := outPath + ".tmp"
	if err := os.WriteFile(tmp, s.out, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, outPath)
}

type testEnv struct {
	h        *Handlers
	store    *storage.Store
	renderer *stubRenderer
}

func newTestEnv(t *testing.T, r *stubRenderer, cfg Config) *testEnv {
	t.Helper()
	root := t.TempDir()
	store, err := storage.New(filepath.Join(root, "papers"))
	if err != nil {
		t.Fatal(err)
	}
	idx, err := index.Open(filepath.Join(root, "index.json"))
	if err != nil {
		t.Fatal(err)
	}
	var rend cover.Renderer
	if r != nil {
		rend = r
	}
	lib := library.New(store, idx, cover.NewResolver(store, rend, 0, 0), library.Config{
		MaxPDFBytes:   cfg.MaxPDFBytes,
		MaxCoverBytes: cfg.MaxCoverBytes,
	})
	cfg.TempDir = t.TempDir()
	return &testEnv{h: New(lib, cfg), store: store, renderer: r}
}

func pngOf(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data, err := pngcodec.EncodeRGBA(w, h, func(x, y uint32) (uint8, uint8, uint8, uint8) {
		return uint8(x), uint8(y), 128, 255
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

type formPart struct {
	name        string
	filename    string
	contentType string
	body        []byte
}

func field(name, value string) formPart {
	return formPart{name: name, body: []byte(value)}
}

func filePart(name, filename, contentType string, body []byte) formPart {
	return formPart{name: name, filename: filename, contentType: contentType, body: body}
}

func uploadRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		hdr := textproto.MIMEHeader{}
		if p.filename != "" || p.contentType != "" {
			hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.name, p.filename))
			if p.contentType != "" {
				hdr.Set("Content-Type", p.contentType)
			}
		} else {
			hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.name))
		}
		w, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(p.body)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/papers", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var minimalPDF = []byte("%PDF-1.4\n1 0 obj <<>> endobj\n%%EOF\n")

func (e *testEnv) upload(t *testing.T, parts ...formPart) index.Entry {
	t.Helper()
	rec := httptest.NewRecorder()
	e.h.UploadPaper(rec, uploadRequest(t, parts...))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var entry index.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	return entry
}

func serve(handler http.HandlerFunc, method, target, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	if id != "" {
		req = mux.SetURLVars(req, map[string]string{"id": id})
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	rec := serve(env.h.HealthCheck, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestUploadThenRead(t *testing.T) {
	r := &stubRenderer{out: pngOf(t, 30, 40)}
	env := newTestEnv(t, r, Config{})
	coverPNG := pngOf(t, 12, 16)

	entry := env.upload(t,
		filePart("pdf", "My Paper.pdf", "application/pdf", minimalPDF),
		filePart("cover", "cover.png", "image/png", coverPNG),
		field("title", "My Paper"),
		field("tags", "a, b ,,c"),
	)

	if entry.ID == "" || entry.Title != "My Paper" || entry.OriginalFilename != "MyPaper.pdf" {
		t.Errorf("entry = %+v", entry)
	}
	if strings.Join(entry.Tags, ",") != "a,b,c" {
		t.Errorf("tags = %v", entry.Tags)
	}
	if entry.SizeBytes != int64(len(minimalPDF)) {
		t.Errorf("sizeBytes = %d", entry.SizeBytes)
	}
	if !strings.HasSuffix(entry.UploadedAt, "Z") {
		t.Errorf("uploadedAt = %q", entry.UploadedAt)
	}

	rec := serve(env.h.ListPapers, http.MethodGet, "/api/papers", "")
	var list []index.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 || list[0].ID != entry.ID {
		t.Errorf("list = %s (%v)", rec.Body.String(), err)
	}

	rec = serve(env.h.GetPaper, http.MethodGet, "/api/papers/"+entry.ID, entry.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var raw map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &raw)
	for _, key := range []string{"id", "title", "originalFilename", "tags", "uploadedAt", "sizeBytes"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("metadata missing %q: %s", key, rec.Body.String())
		}
	}

	rec = serve(env.h.GetCover, http.MethodGet, "/api/papers/"+entry.ID+"/cover", entry.ID)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), coverPNG) {
		t.Errorf("cover status %d, %d bytes", rec.Code, rec.Body.Len())
	}
	if rec.Header().Get("Content-Type") != "image/png" || rec.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("cover headers = %v", rec.Header())
	}
	if r.calls.Load() != 0 {
		t.Errorf("renderer called %d times", r.calls.Load())
	}
}

func TestUploadWithoutCoverFailingRenderer(t *testing.T) {
	r := &stubRenderer{fail: true}
	env := newTestEnv(t, r, Config{})

	entry := env.upload(t, field("title", "T"), filePart("pdf", "a.pdf", "application/pdf", minimalPDF))

	want, err := cover.DefaultPlaceholder()
	if err != nil {
		t.Fatal(err)
	}
	first := serve(env.h.GetCover, http.MethodGet, "/", entry.ID)
	second := serve(env.h.GetCover, http.MethodGet, "/", entry.ID)
	if !bytes.Equal(first.Body.Bytes(), want) {
		t.Error("cover is not the default placeholder")
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("consecutive cover reads differ")
	}
	if r.calls.Load() != 1 {
		t.Errorf("renderer calls = %d, want 1", r.calls.Load())
	}
}

func TestUploadOneByOneCoverRenders(t *testing.T) {
	r := &stubRenderer{out: pngOf(t, 30, 40)}
	env := newTestEnv(t, r, Config{})

	entry := env.upload(t,
		field("title", "T"),
		filePart("pdf", "a.pdf", "application/pdf", minimalPDF),
		filePart("cover", "c.png", "image/png", cover.Sentinel()),
	)

	if r.calls.Load() != 1 {
		t.Errorf("renderer calls = %d, want 1", r.calls.Load())
	}
	rec := serve(env.h.GetCover, http.MethodGet, "/", entry.ID)
	if !bytes.Equal(rec.Body.Bytes(), r.out) {
		t.Error("cover is not the rendered image")
	}
}

func TestUploadRejected(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		parts      func(t *testing.T) []formPart
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing pdf",
			parts:      func(*testing.T) []formPart { return []formPart{field("title", "T")} },
			wantStatus: http.StatusBadRequest,
			wantError:  "PDF required",
		},
		{
			name: "not a pdf",
			parts: func(*testing.T) []formPart {
				return []formPart{field("title", "T"), filePart("pdf", "a.pdf", "application/pdf", []byte("hello"))}
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "File is not a PDF",
		},
		{
			name: "wrong content type",
			parts: func(*testing.T) []formPart {
				return []formPart{field("title", "T"), filePart("pdf", "a.txt", "text/plain", minimalPDF)}
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "PDF only",
		},
		{
			name: "cover not png",
			parts: func(*testing.T) []formPart {
				return []formPart{
					field("title", "T"),
					filePart("pdf", "a.pdf", "application/pdf", minimalPDF),
					filePart("cover", "c.png", "image/png", []byte("GIF89a....")),
				}
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Cover must be PNG",
		},
		{
			name: "pdf one byte over the limit",
			cfg:  Config{MaxPDFBytes: int64(len(minimalPDF)) - 1},
			parts: func(*testing.T) []formPart {
				return []formPart{field("title", "T"), filePart("pdf", "a.pdf", "application/pdf", minimalPDF)}
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "PDF too large",
		},
		{
			name: "cover over the limit",
			cfg:  Config{MaxCoverBytes: 32},
			parts: func(t *testing.T) []formPart {
				return []formPart{
					field("title", "T"),
					filePart("pdf", "a.pdf", "application/pdf", minimalPDF),
					filePart("cover", "c.png", "image/png", pngOf(t, 40, 40)),
				}
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "Cover too large",
		},
		{
			name: "no title",
			parts: func(*testing.T) []formPart {
				return []formPart{filePart("pdf", "", "application/pdf", minimalPDF)}
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Title required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubRenderer{fail: true}, tt.cfg)

			rec := httptest.NewRecorder()
			env.h.UploadPaper(rec, uploadRequest(t, tt.parts(t)...))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := errorBody(t, rec); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}

			entries, err := os.ReadDir(env.store.Root())
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 0 {
				t.Errorf("%d document directories left behind", len(entries))
			}
			spools, _ := os.ReadDir(env.h.tempDir)
			if len(spools) != 0 {
				t.Errorf("%d upload spools left behind", len(spools))
			}
		})
	}
}

func TestUploadBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.h.maxUploadSize = 256

	rec := httptest.NewRecorder()
	env.h.UploadPaper(rec, uploadRequest(t,
		field("title", "T"),
		filePart("pdf", "a.pdf", "application/pdf", append([]byte("%PDF"), make([]byte, 1024)...)),
	))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := errorBody(t, rec); got != "Upload too large" {
		t.Errorf("error = %q", got)
	}
}

func TestUploadNotMultipart(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/papers", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.h.UploadPaper(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestGetFile(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	entry := env.upload(t, field("title", "T"), filePart("pdf", "report 2024.pdf", "", minimalPDF))

	rec := serve(env.h.GetFile, http.MethodGet, "/api/papers/x/file", entry.ID)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), minimalPDF) {
		t.Fatalf("status %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("Cache-Control = %q", cc)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "" {
		t.Errorf("inline response has Content-Disposition %q", cd)
	}

	rec = serve(env.h.GetFile, http.MethodGet, "/api/papers/x/file?download=1", entry.ID)
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename=report2024.pdf` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/papers/x/file", http.NoBody)
	req.Header.Set("Range", "bytes=0-3")
	req = mux.SetURLVars(req, map[string]string{"id": entry.ID})
	rec = httptest.NewRecorder()
	env.h.GetFile(rec, req)
	if rec.Code != http.StatusPartialContent || rec.Body.String() != "%PDF" {
		t.Errorf("range: status %d body %q", rec.Code, rec.Body.String())
	}

	rec = serve(env.h.GetFile, http.MethodGet, "/", "missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d", rec.Code)
	}
}

func TestDeletePaper(t *testing.T) {
	env := newTestEnv(t, &stubRenderer{out: pngOf(t, 30, 40)}, Config{})
	entry := env.upload(t, field("title", "T"), filePart("pdf", "a.pdf", "application/pdf", minimalPDF))

	rec := serve(env.h.DeletePaper, http.MethodDelete, "/", entry.ID)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = serve(env.h.GetPaper, http.MethodGet, "/", entry.ID)
	if rec.Code != http.StatusNotFound || errorBody(t, rec) != "Not found" {
		t.Errorf("get after delete: %d %s", rec.Code, rec.Body.String())
	}

	want, _ := cover.DefaultPlaceholder()
	rec = serve(env.h.GetCover, http.MethodGet, "/", entry.ID)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), want) {
		t.Error("cover after delete is not the default placeholder")
	}

	rec = serve(env.h.ListPapers, http.MethodGet, "/", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("list after delete = %s", rec.Body.String())
	}

	if rec := serve(env.h.DeletePaper, http.MethodDelete, "/", entry.ID); rec.Code != http.StatusNoContent {
		t.Errorf("repeat delete status = %d", rec.Code)
	}
}

func TestInvalidIDs(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	handlers := map[string]http.HandlerFunc{
		"get":    env.h.GetPaper,
		"cover":  env.h.GetCover,
		"file":   env.h.GetFile,
		"delete": env.h.DeletePaper,
	}
	for name, handler := range handlers {
		for _, id := range []string{"..", "a/../b", `..\x`} {
			rec := serve(handler, http.MethodGet, "/", id)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s %q: status = %d", name, id, rec.Code)
			}
		}
	}
}

func TestConcurrentCoverRequestsRenderOnce(t *testing.T) {
	r := &stubRenderer{fail: true}
	env := newTestEnv(t, r, Config{})

	// Stored directly so no cover generation happens at upload time.
	id := "concurrent"
	if err := env.store.Create(id); err != nil {
		t.Fatal(err)
	}
	if _, err := env.store.SavePDF(id, bytes.NewReader(minimalPDF), 1<<20); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := serve(env.h.GetCover, http.MethodGet, "/", id)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d", rec.Code)
			}
		}()
	}
	wg.Wait()

	if r.calls.Load() != 1 {
		t.Errorf("renderer calls = %d, want 1", r.calls.Load())
	}
	if _, err := os.Stat(env.store.CoverPath(id)); !os.IsNotExist(err) {
		t.Error("cover read wrote a file")
	}
}

func TestReadinessCheck(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	rec := serve(env.h.ReadinessCheck, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}

	if err := os.RemoveAll(env.store.Root()); err != nil {
		t.Fatal(err)
	}
	rec = serve(env.h.ReadinessCheck, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not-ready status = %d", rec.Code)
	}
}

func TestLivenessCheck(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	rec := serve(env.h.LivenessCheck, http.MethodGet, "/livez", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "alive") {
		t.Errorf("GET: %d %q", rec.Code, rec.Body.String())
	}
	rec = serve(env.h.LivenessCheck, http.MethodHead, "/livez", "")
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD wrote a body: %q", rec.Body.String())
	}
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"validation", &library.ValidationError{Status: http.StatusRequestEntityTooLarge, Reason: "PDF too large"}, 413, "PDF too large"},
		{"wrapped not found", fmt.Errorf("get: %w", library.ErrNotFound), 404, "Not found"},
		{"invalid id", library.ErrInvalidID, 400, "Invalid paper ID"},
		{"body limit", &http.MaxBytesError{Limit: 10}, 413, "Upload too large"},
		{"internal", errors.New("disk on fire at /data/papers"), 500, "Server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := errorBody(t, rec); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}
}
