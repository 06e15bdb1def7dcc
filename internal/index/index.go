package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"paper-reader/internal/filesystem"
	"paper-reader/internal/logging"
	"paper-reader/internal/metrics"
	"paper-reader/internal/storage"
)

// Entry is a metadata record plus its document ID.
type Entry struct {
	ID string `json:"id"`
	storage.Metadata
}

// Index is the JSON catalog file.
type Index struct {
	path  string
	mu    sync.Mutex
	retry filesystem.RetryConfig
}

// Open returns the index at path, creating an empty one if the file does
// not exist.
func Open(path string) (*Index, error) {
	ix := &Index{path: path, retry: filesystem.DefaultRetryConfig()}

	if _, err := filesystem.StatWithRetry(path, ix.retry); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat index: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		if err := filesystem.WriteFileAtomic(path, []byte("[]\n"), 0o644); err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		logging.Info("Created empty index at %s", path)
	}
	return ix, nil
}

// Path returns the index file location.
func (ix *Index) Path() string { return ix.path }

// List returns all entries, newest first.
func (ix *Index) List() ([]Entry, error) {
	defer observe("list", time.Now())
	return ix.read()
}

// Get returns the entry for id.
func (ix *Index) Get(id string) (Entry, bool, error) {
	entries, err := ix.read()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Insert puts e at the head of the index, replacing any entry with the same ID.
func (ix *Index) Insert(e Entry) error {
	defer observe("insert", time.Now())

	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries, err := ix.read()
	if err != nil {
		return err
	}

	updated := make([]Entry, 0, len(entries)+1)
	updated = append(updated, e)
	for _, existing := range entries {
		if existing.ID != e.ID {
			updated = append(updated, existing)
		}
	}
	return ix.write(updated)
}

// Remove drops the entry for id and reports whether one was present.
func (ix *Index) Remove(id string) (bool, error) {
	defer observe("remove", time.Now())

	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries, err := ix.read()
	if err != nil {
		return false, err
	}

	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return false, nil
	}
	return true, ix.write(kept)
}

// Reconcile drops every entry for which keep returns false and returns the
// dropped IDs. The file is only rewritten when something was dropped.
func (ix *Index) Reconcile(keep func(Entry) bool) ([]string, error) {
	defer observe("reconcile", time.Now())

	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries, err := ix.read()
	if err != nil {
		return nil, err
	}

	var dropped []string
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			kept = append(kept, e)
		} else {
			dropped = append(dropped, e.ID)
		}
	}
	if len(dropped) == 0 {
		return nil, nil
	}
	return dropped, ix.write(kept)
}

// read decodes the index file. Malformed entries are skipped; an
// unreadable top level counts as an empty index.
func (ix *Index) read() ([]Entry, error) {
	f, err := filesystem.OpenWithRetry(ix.path, ix.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logging.Warn("Index %s is not a JSON array, treating as empty: %v", ix.path, err)
		return nil, nil
	}

	entries := make([]Entry, 0, len(raw))
	for i, msg := range raw {
		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil || e.ID == "" {
			metrics.IndexSkippedEntries.Inc()
			logging.Debug("Skipping malformed index entry %d: %v", i, err)
			continue
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (ix *Index) write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := filesystem.WriteFileAtomic(ix.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.IndexOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
