package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/datasynth/datasynth/internal/constants"
	"github.com/datasynth/datasynth/internal/fileutils"
	"github.com/datasynth/datasynth/internal/schema"
	"github.com/ubuntu/decorate"
)

// FileStore is a Store backed by a JSON document and a sibling backup file.
type FileStore struct {
	path       string
	backupPath string

	log     *slog.Logger
	now     func() time.Time
	replace func(*fileutils.LockedFile, []byte) error
}

type options struct {
	backupPath string
	log        *slog.Logger
	now        func() time.Time
	replace    func(*fileutils.LockedFile, []byte) error
}

// Option overrides FileStore defaults.
type Option func(*options)

// WithBackupPath sets the path of the backup file. Defaults to the cache path with a .backup suffix.
func WithBackupPath(path string) Option {
	return func(o *options) {
		o.backupPath = path
	}
}

// WithLogger sets the logger used to report recoveries.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// NewFileStore opens the cache document at path, creating it and its directory if needed.
func NewFileStore(path string, args ...Option) (s *FileStore, err error) {
	defer decorate.OnError(&err, "could not initialize cache file %s", path)

	opts := options{
		backupPath: path + constants.BackupSuffix,
		log:        slog.Default(),
		now:        time.Now,
		replace:    (*fileutils.LockedFile).Replace,
	}
	for _, opt := range args {
		opt(&opts)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	s = &FileStore{
		path:       path,
		backupPath: opts.backupPath,
		log:        opts.log,
		now:        opts.now,
		replace:    opts.replace,
	}

	lf, err := fileutils.OpenLocked(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	defer lf.Close()

	data, err := lf.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return s, nil
	}

	out, err := newDocument(s.now()).encode()
	if err != nil {
		return nil, err
	}
	if err := lf.Replace(out); err != nil {
		return nil, err
	}
	s.log.Debug("Initialized cache file", "path", path)

	return s, nil
}

// Path returns the path of the cache document.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the schema stored under key.
// A missing, unparsable or malformed primary document falls back to the backup file.
func (s *FileStore) Get(key string) (sc schema.Schema, found bool, err error) {
	if err := validateKey(key); err != nil {
		return schema.Schema{}, false, err
	}

	var primaryErr error
	err = s.withLock(os.O_RDONLY, func(lf *fileutils.LockedFile) error {
		data, err := lf.ReadAll()
		if err != nil {
			return err
		}
		doc, err := decodeDocument(data)
		if err != nil {
			primaryErr = err
			return s.fromBackup(key, &sc, &found)
		}
		sc, found, err = doc.lookup(key)
		if err != nil {
			primaryErr = err
			return s.fromBackup(key, &sc, &found)
		}
		return nil
	})

	switch {
	case errors.Is(err, fs.ErrNotExist):
		primaryErr = err
		err = s.fromBackup(key, &sc, &found)
	case errors.Is(err, fs.ErrPermission):
		return schema.Schema{}, false, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	if err != nil {
		return schema.Schema{}, false, err
	}

	if primaryErr != nil {
		s.log.Warn("Cache file unreadable, used backup", "path", s.path, "found", found, "error", primaryErr)
	}
	return sc, found, nil
}

// fromBackup looks key up in the backup document. A missing or broken backup is a miss.
func (s *FileStore) fromBackup(key string, sc *schema.Schema, found *bool) error {
	data, err := os.ReadFile(s.backupPath)
	if err != nil {
		s.log.Debug("No usable cache backup", "path", s.backupPath, "error", err)
		return nil
	}
	doc, err := decodeDocument(data)
	if err != nil {
		s.log.Debug("No usable cache backup", "path", s.backupPath, "error", err)
		return nil
	}
	got, ok, err := doc.lookup(key)
	if err != nil {
		s.log.Debug("Malformed entry in cache backup", "key", key, "error", err)
		return nil
	}
	*sc, *found = got, ok
	return nil
}

// Put stores sc under key.
// The previous document is copied to the backup file first and restored if the write fails.
// An unreadable document is replaced by one holding only this entry.
func (s *FileStore) Put(key string, sc schema.Schema) (err error) {
	defer decorate.OnError(&err, "could not save schema %s to cache", key)

	if err := validateKey(key); err != nil {
		return err
	}

	return s.withLock(os.O_RDWR|os.O_CREATE, func(lf *fileutils.LockedFile) error {
		old, err := lf.ReadAll()
		if err != nil {
			return err
		}

		now := s.now()
		doc, decodeErr := decodeDocument(old)
		backedUp := false
		switch {
		case len(old) == 0:
			doc = newDocument(now)
		case decodeErr != nil:
			s.log.Warn("Cache file is corrupted, recreating it with a single entry: previous entries are discarded",
				"path", s.path, "key", key, "error", decodeErr)
			doc = newDocument(now)
		default:
			if err := fileutils.AtomicWrite(s.backupPath, old); err != nil {
				return fmt.Errorf("could not back up cache file: %v", err)
			}
			backedUp = true
		}

		if err := doc.set(key, sc, now); err != nil {
			return err
		}
		data, err := doc.encode()
		if err != nil {
			return err
		}

		if err := s.replace(lf, data); err != nil {
			if backedUp {
				if rerr := lf.Replace(old); rerr != nil {
					s.log.Error("Could not restore cache file from backup", "path", s.path, "error", rerr)
				}
			}
			return err
		}
		s.log.Debug("Saved schema to cache", "key", key, "domain", sc.Domain)
		return nil
	})
}

// Stats reports counts and sizes. Read problems are reported in the Error field.
func (s *FileStore) Stats() Stats {
	st := Stats{
		CachePath:  s.path,
		BackupPath: s.backupPath,
	}

	var doc document
	err := s.withLock(os.O_RDONLY, func(lf *fileutils.LockedFile) error {
		data, err := lf.ReadAll()
		if err != nil {
			return err
		}
		doc, err = decodeDocument(data)
		return err
	})
	if err != nil {
		s.log.Debug("Could not read cache stats", "path", s.path, "error", err)
		st.Error = "cache file not accessible"
		return st
	}

	if doc.Metadata != nil {
		if doc.Metadata.TotalSchemas != nil {
			st.TotalSchemas = *doc.Metadata.TotalSchemas
		}
		if doc.Metadata.LastUpdated != nil {
			if t, err := parseTime(*doc.Metadata.LastUpdated); err == nil {
				st.LastUpdated = &t
			}
		}
	}
	st.CacheFileSize = fileutils.FileSize(s.path)
	st.BackupFileSize = fileutils.FileSize(s.backupPath)
	return st
}

// Healthy checks the document structure and its recorded schema count.
func (s *FileStore) Healthy() bool {
	var doc document
	err := s.withLock(os.O_RDONLY, func(lf *fileutils.LockedFile) error {
		data, err := lf.ReadAll()
		if err != nil {
			return err
		}
		doc, err = decodeDocument(data)
		return err
	})
	if err != nil {
		s.log.Debug("Cache file unhealthy", "path", s.path, "error", err)
		return false
	}
	return doc.healthy()
}

// Keys lists the stored content keys. A missing document has no keys.
func (s *FileStore) Keys() (keys []string, err error) {
	defer decorate.OnError(&err, "could not list cache keys")

	err = s.withLock(os.O_RDONLY, func(lf *fileutils.LockedFile) error {
		data, err := lf.ReadAll()
		if err != nil {
			return err
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return err
		}
		for k := range doc.Schemas {
			keys = append(keys, k)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	slices.Sort(keys)
	return keys, nil
}

// Clear resets the document to an empty one, backing up the previous content.
func (s *FileStore) Clear() (err error) {
	defer decorate.OnError(&err, "could not clear cache")

	return s.withLock(os.O_RDWR|os.O_CREATE, func(lf *fileutils.LockedFile) error {
		old, err := lf.ReadAll()
		if err != nil {
			return err
		}
		if len(old) > 0 {
			if err := fileutils.AtomicWrite(s.backupPath, old); err != nil {
				return fmt.Errorf("could not back up cache file: %v", err)
			}
		}

		data, err := newDocument(s.now()).encode()
		if err != nil {
			return err
		}
		if err := lf.Replace(data); err != nil {
			return err
		}
		s.log.Info("Cleared schema cache", "path", s.path)
		return nil
	})
}

// withLock runs f while holding the exclusive lock on the cache document.
func (s *FileStore) withLock(flag int, f func(*fileutils.LockedFile) error) error {
	lf, err := fileutils.OpenLocked(s.path, flag, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if err := lf.Close(); err != nil {
			s.log.Warn("Could not release cache lock", "path", s.path, "error", err)
		}
	}()

	return f(lf)
}
