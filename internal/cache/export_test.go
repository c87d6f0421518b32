package cache

import (
	"time"

	"github.com/datasynth/datasynth/internal/fileutils"
)

// WithNow overrides the clock used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithReplace overrides how the file store rewrites its locked document.
func WithReplace(replace func(*fileutils.LockedFile, []byte) error) Option {
	return func(o *options) {
		o.replace = replace
	}
}
