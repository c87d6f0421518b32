package schemagen

import (
	"context"
	"time"
)

// WithSleep replaces the backoff sleep.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(o *options) {
		o.sleep = f
	}
}

// WithNow sets the clock stamping generated schemas.
func WithNow(f func() time.Time) Option {
	return func(o *options) {
		o.now = f
	}
}

// Prompt exposes the prompt builder.
func (g *Generator) Prompt(description string) (string, error) {
	return g.prompt(description)
}
