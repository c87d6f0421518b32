// Package fileutils provides utility functions for handling files.
package fileutils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// AtomicWrite writes data to a file atomically.
// If the file already exists, then it will be overwritten.
// Not atomic on Windows.
func AtomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %v", err)
	}
	defer func() {
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove temporary file", "file", tmp.Name(), "error", err)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("could not write to temporary file: %v", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("could not sync temporary file: %v", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temporary file: %v", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not rename temporary file: %v", err)
	}
	return nil
}

// FileSize returns the size of the file in bytes, or 0 if it can't be read.
func FileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// LockedFile is an open file holding an exclusive, whole-file advisory lock.
// The lock is shared with every process opening the same path through OpenLocked.
type LockedFile struct {
	f *os.File
}

// OpenLocked opens path with flag and blocks until an exclusive lock on it is acquired.
func OpenLocked(path string, flag int, perm os.FileMode) (*LockedFile, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not lock %s: %w", path, err)
	}

	return &LockedFile{f: f}, nil
}

// Name returns the path of the locked file.
func (l *LockedFile) Name() string {
	return l.f.Name()
}

// ReadAll reads the whole file content from the start.
func (l *LockedFile) ReadAll() ([]byte, error) {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(l.f)
}

// Replace truncates the file, writes data and forces it to physical storage.
func (l *LockedFile) Replace(data []byte) error {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	if _, err := l.f.Write(data); err != nil {
		return err
	}
	return l.f.Sync()
}

// Close releases the lock and closes the file.
func (l *LockedFile) Close() error {
	uerr := unlockFile(l.f)
	cerr := l.f.Close()
	if uerr != nil {
		return uerr
	}
	return cerr
}
