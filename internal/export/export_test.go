package export

import "time"

// WithNow sets the clock used to timestamp generic file names.
func WithNow(f func() time.Time) Option {
	return func(o *options) {
		o.now = f
	}
}
