// Package cache persists generated schemas under their content key.
//
// The file backend keeps a JSON document next to a backup copy and guards every
// access with an exclusive whole-file lock shared by all processes using the same
// path. A SQLite backend and an in-memory store implement the same interface.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/datasynth/datasynth/internal/contentkey"
	"github.com/datasynth/datasynth/internal/schema"
)

var (
	// ErrInvalidKey is returned when a key does not have the content key format.
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrAccessDenied is returned when the cache storage cannot be accessed at all.
	ErrAccessDenied = errors.New("cache storage access denied")
)

// Store is a durable mapping of content keys to schemas.
type Store interface {
	// Get returns the schema stored under key. The boolean is false on a miss.
	Get(key string) (schema.Schema, bool, error)
	// Put stores s under key, replacing any previous entry.
	// CreatedAt is kept as the same instant normalized to UTC: Get returns it in UTC.
	Put(key string, s schema.Schema) error
	// Stats never fails: problems are reported in Stats.Error.
	Stats() Stats
	// Healthy reports whether the stored structure is self-consistent.
	Healthy() bool
	// Keys lists the stored content keys in ascending order.
	Keys() ([]string, error)
	// Clear removes every entry.
	Clear() error
}

// Stats describes the state of a store.
type Stats struct {
	TotalSchemas   int        `yaml:"total_schemas" json:"total_schemas"`
	LastUpdated    *time.Time `yaml:"last_updated" json:"last_updated"`
	CacheFileSize  int64      `yaml:"cache_file_size" json:"cache_file_size"`
	BackupFileSize int64      `yaml:"backup_file_size" json:"backup_file_size"`
	CachePath      string     `yaml:"cache_file_path" json:"cache_file_path"`
	BackupPath     string     `yaml:"backup_file_path" json:"backup_file_path"`
	Error          string     `yaml:"error,omitempty" json:"error,omitempty"`
}

func validateKey(key string) error {
	if !contentkey.Valid(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// timeLayouts are accepted when reading timestamps back.
// Entries written by older tools carry naive ISO-8601 timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
}
