package synth

import (
	"github.com/datasynth/datasynth/internal/generator"
	"github.com/datasynth/datasynth/internal/schema"
)

// FakeResolver serves fixed generators per field and counts reseeds.
type FakeResolver struct {
	Generators map[string]generator.Generator
	Reseeds    int
}

// Resolve returns the generator registered for field.
func (f *FakeResolver) Resolve(field string, _ schema.FieldSpec) generator.Generator {
	return f.Generators[field]
}

// Reseed counts calls.
func (f *FakeResolver) Reseed() {
	f.Reseeds++
}

// WithResolver replaces the generator engine.
func WithResolver(r *FakeResolver) Option {
	return func(o *options) {
		o.newResolver = func() resolver { return r }
	}
}

// WithReseedEvery sets the reseed period in rows.
func WithReseedEvery(n int) Option {
	return func(o *options) {
		o.reseedEvery = n
	}
}

var Normalize = normalize
