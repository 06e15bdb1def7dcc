package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteFileAtomic writes data to path by way of a temporary file in the same
// directory. Readers see either the previous contents or the new ones.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	_, err := writeAtomic(path, perm, func(f *os.File) (int64, error) {
		n, err := f.Write(data)
		return int64(n), err
	})
	return err
}

// WriteReaderAtomic streams r into path by way of a temporary file in the
// same directory and returns the number of bytes written. Any error from r
// aborts the write and leaves path untouched.
func WriteReaderAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	return writeAtomic(path, perm, func(f *os.File) (int64, error) {
		return io.Copy(f, r)
	})
}

func writeAtomic(path string, perm os.FileMode, fill func(*os.File) (int64, error)) (int64, error) {
	start := time.Now()
	volume := resolveVolume(path)

	n, err := doWriteAtomic(path, perm, fill)
	observe().ObserveOperation(volume, "write", time.Since(start).Seconds(), err)
	return n, err
}

func doWriteAtomic(path string, perm os.FileMode, fill func(*os.File) (int64, error)) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	n, err := fill(tmp)
	if err != nil {
		cleanup()
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return n, fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return n, fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return n, fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return n, fmt.Errorf("rename into %s: %w", path, err)
	}
	return n, nil
}

// ReplaceFile renames src over dst. Both must be on the same filesystem.
func ReplaceFile(src, dst string) error {
	start := time.Now()
	err := os.Rename(src, dst)
	observe().ObserveOperation(resolveVolume(dst), "rename", time.Since(start).Seconds(), err)
	return err
}

// RemoveAll removes path and everything beneath it. A missing path is not
// an error.
func RemoveAll(path string) error {
	start := time.Now()
	err := os.RemoveAll(path)
	observe().ObserveOperation(resolveVolume(path), "remove", time.Since(start).Seconds(), err)
	return err
}
