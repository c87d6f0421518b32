package generator

import (
	"time"

	"github.com/datasynth/datasynth/internal/schema"
)

// ResolveTier is Resolve also returning the resolution step used.
func (e *Engine) ResolveTier(field string, spec schema.FieldSpec) (Generator, Tier) {
	return e.resolve(field, spec)
}

// WithNow sets the clock relative dates are computed from.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

var (
	MethodName   = methodName
	TruncateText = truncateText
)

func ParseDate(v any, now time.Time) (time.Time, error) {
	return parseDate(v, now)
}
