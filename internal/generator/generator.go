// Package generator compiles field specifications into value generators.
//
// Resolution tries, in order: the built-in method table, a method of the same
// name on the underlying faker, the domain value pools, and finally a guess from
// the field name. It never fails: every specification yields a callable generator.
package generator

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/datasynth/datasynth/internal/schema"
)

// Generator produces one value per call.
type Generator func() (any, error)

// Tier names the resolution step that produced a generator.
type Tier string

const (
	// TierBuiltin is the hand-curated method table.
	TierBuiltin Tier = "builtin"
	// TierReflect is a faker method looked up by name.
	TierReflect Tier = "reflect"
	// TierPool is a domain value pool.
	TierPool Tier = "pool"
	// TierName is the guess from the field name.
	TierName Tier = "name"
)

// Engine resolves field specifications against a seeded faker.
// An Engine is not safe for concurrent use.
type Engine struct {
	faker *gofakeit.Faker
	src   *rand.PCG
	seeds *rand.Rand

	pools Pools
	now   func() time.Time
	log   *slog.Logger
}

type options struct {
	seed  uint64
	pools Pools
	now   func() time.Time
	log   *slog.Logger
}

// Option overrides Engine defaults.
type Option func(*options)

// WithSeed makes the generated values reproducible. Zero picks a random seed.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithPools replaces the built-in domain value pools.
func WithPools(p Pools) Option {
	return func(o *options) {
		o.pools = p
	}
}

// WithLogger sets the logger reporting resolution decisions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns an Engine.
func New(args ...Option) *Engine {
	opts := options{
		pools: DefaultPools,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	seed := opts.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	seeds := rand.New(rand.NewPCG(seed, ^seed))
	src := rand.NewPCG(seeds.Uint64(), seeds.Uint64())

	return &Engine{
		faker: gofakeit.NewFaker(src, false),
		src:   src,
		seeds: seeds,
		pools: opts.pools,
		now:   opts.now,
		log:   opts.log,
	}
}

// Reseed restarts the value stream from the next seed of the engine.
// Reseeding from the same initial seed replays the same streams.
func (e *Engine) Reseed() {
	e.src.Seed(e.seeds.Uint64(), e.seeds.Uint64())
}

// Resolve compiles the specification of the named field into a generator.
func (e *Engine) Resolve(field string, spec schema.FieldSpec) Generator {
	g, tier := e.resolve(field, spec)
	e.log.Debug("Resolved field", "field", field, "method", spec.Method, "tier", tier)
	return g
}

func (e *Engine) resolve(field string, spec schema.FieldSpec) (Generator, Tier) {
	method := strings.TrimSpace(spec.Method)
	p := params(spec.Params)

	if g, ok := e.fromBuiltin(field, method, p); ok {
		return g, TierBuiltin
	}
	if g, ok := e.fromReflect(field, method, p); ok {
		return g, TierReflect
	}
	if g, ok := e.fromPools(field, method); ok {
		return g, TierPool
	}
	return e.fromName(field), TierName
}

func (e *Engine) fromBuiltin(field, method string, p params) (Generator, bool) {
	b, ok := builtins[method]
	if !ok {
		return nil, false
	}

	plain := func() (any, error) { return b.gen(e, nil) }
	if len(p) == 0 {
		return plain, true
	}
	if err := p.check(b.accepts); err != nil {
		e.log.Debug("Ignoring field parameters", "field", field, "method", method, "error", err)
		return plain, true
	}

	return func() (any, error) {
		v, err := b.gen(e, p)
		if err != nil {
			return b.gen(e, nil)
		}
		return v, nil
	}, true
}

func (e *Engine) fromPools(field, method string) (Generator, bool) {
	hint := strings.ToLower(method)
	if hint == "" {
		return nil, false
	}

	pool, ok := e.pools.Category(hint)
	if !ok {
		pool, ok = e.pools.ForField(hint, strings.ToLower(field))
	}
	if !ok {
		return nil, false
	}

	values := pool.Values
	return func() (any, error) {
		return e.choice(values)
	}, true
}

// choice picks one element of values.
func (e *Engine) choice(values []any) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no elements to choose from", errParamType)
	}
	return values[e.faker.Number(0, len(values)-1)], nil
}
