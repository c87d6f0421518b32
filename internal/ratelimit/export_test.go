package ratelimit

import "time"

type MockTimeProvider struct {
	CurrentTime *time.Time
}

func (m MockTimeProvider) Now() time.Time {
	return *m.CurrentTime
}

// WithTimeProvider sets the clock of the governor.
func WithTimeProvider(tp timeProvider) Option {
	return func(o *options) {
		o.clock = tp
	}
}
