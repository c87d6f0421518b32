// Package schemagen acquires the field schema for a dataset description.
//
// A schema is read from the cache when possible. Otherwise the provider is asked for one,
// subject to the rate governor, and the parsed result is written back to the cache.
// Cache faults never surface to callers: they only make acquisition slower.
package schemagen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/datasynth/datasynth/internal/apperr"
	"github.com/datasynth/datasynth/internal/cache"
	"github.com/datasynth/datasynth/internal/constants"
	"github.com/datasynth/datasynth/internal/contentkey"
	"github.com/datasynth/datasynth/internal/provider"
	"github.com/datasynth/datasynth/internal/ratelimit"
	"github.com/datasynth/datasynth/internal/schema"
)

// retryAfter is the delay, in seconds, suggested to callers denied by the governor.
const retryAfter = 60

// Source tells where an acquired schema came from.
type Source string

const (
	// FromCache means the schema was found in the cache.
	FromCache Source = "cache"
	// FromProvider means the schema was freshly generated.
	FromProvider Source = "provider"
)

// Result is an acquired schema.
type Result struct {
	Schema schema.Schema
	Key    string
	Source Source
}

// Generator acquires schemas.
type Generator struct {
	client   provider.Client
	governor *ratelimit.Governor
	store    cache.Store

	minLen, maxLen int
	maxTokens      int
	attempts       int
	backoff        time.Duration

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
	log   *slog.Logger
}

type options struct {
	store          cache.Store
	minLen, maxLen int
	maxTokens      int
	attempts       int
	backoff        time.Duration

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
	log   *slog.Logger
}

// Option overrides Generator defaults.
type Option func(*options)

// WithCache sets the store consulted before calling the provider. Without it, every call reaches the provider.
func WithCache(s cache.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithDescriptionLength sets the accepted description length range, in characters.
func WithDescriptionLength(minLen, maxLen int) Option {
	return func(o *options) {
		o.minLen, o.maxLen = minLen, maxLen
	}
}

// WithMaxTokens sets the provider token budget, which also bounds the prompt size.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

// WithRetry sets how many times a throttled provider call is attempted and the first backoff delay.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(o *options) {
		o.attempts, o.backoff = attempts, backoff
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns a Generator asking client for schemas under the admission control of governor.
func New(client provider.Client, governor *ratelimit.Governor, args ...Option) *Generator {
	opts := options{
		minLen:    constants.DefaultMinDescriptionLength,
		maxLen:    constants.DefaultMaxDescriptionLength,
		maxTokens: constants.DefaultMaxTokens,
		attempts:  constants.DefaultMaxAttempts,
		backoff:   constants.DefaultBaseBackoff,
		sleep:     sleepContext,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}
	if opts.attempts < 1 {
		opts.attempts = 1
	}

	return &Generator{
		client:    client,
		governor:  governor,
		store:     opts.store,
		minLen:    opts.minLen,
		maxLen:    opts.maxLen,
		maxTokens: opts.maxTokens,
		attempts:  opts.attempts,
		backoff:   opts.backoff,
		sleep:     opts.sleep,
		now:       opts.now,
		log:       opts.log,
	}
}

// Generate returns the schema for description.
// Returned errors are *apperr.Error values of kind validation, rate_limit, api_failure or generation_failure.
func (g *Generator) Generate(ctx context.Context, description string) (res Result, err error) {
	defer func() {
		if err != nil {
			err = apperr.Sanitize(err)
		}
	}()

	if err := g.validate(description); err != nil {
		return Result{}, err
	}

	key, err := contentkey.Generate(description)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindValidation, err)
	}
	log := g.log.With("key", key)

	if s, ok := g.lookup(log, key); ok {
		log.Info("Schema found in cache", "domain", s.Domain, "fields", len(s.Fields))
		return Result{Schema: s, Key: key, Source: FromCache}, nil
	}

	if err := g.governor.Check(); err != nil {
		return Result{}, apperr.Newf(apperr.KindRateLimit, "%w", err).With("retry_after", retryAfter)
	}

	prompt, err := g.prompt(description)
	if err != nil {
		return Result{}, err
	}

	text, err := g.call(ctx, log, provider.Request{Description: description, Prompt: prompt})
	if err != nil {
		return Result{}, err
	}

	doc, err := schema.ParseResponse(text)
	if err != nil {
		log.Debug("Unusable provider response", "error", err)
		return Result{}, apperr.Newf(apperr.KindGenerationFailure, "provider returned an unusable schema: %w", err)
	}

	s := schema.Schema{
		DescriptionHash: key,
		Fields:          doc.Fields,
		CreatedAt:       g.now().UTC(),
		Domain:          doc.Domain,
	}
	g.save(log, key, s)

	log.Info("Schema generated", "domain", s.Domain, "fields", len(s.Fields))
	return Result{Schema: s, Key: key, Source: FromProvider}, nil
}

func (g *Generator) validate(description string) error {
	n := utf8.RuneCountInString(description)
	if n < g.minLen {
		return apperr.Newf(apperr.KindValidation, "description must be at least %d characters", g.minLen).With("length", n)
	}
	if n > g.maxLen {
		return apperr.Newf(apperr.KindValidation, "description must be less than %d characters", g.maxLen).With("length", n)
	}
	return nil
}

// lookup reads the cache, treating any fault as a miss.
func (g *Generator) lookup(log *slog.Logger, key string) (schema.Schema, bool) {
	if g.store == nil {
		return schema.Schema{}, false
	}
	s, ok, err := g.store.Get(key)
	if err != nil {
		log.Warn("Cache lookup failed, generating the schema", "error", err)
		return schema.Schema{}, false
	}
	return s, ok
}

// save writes to the cache, ignoring any fault.
func (g *Generator) save(log *slog.Logger, key string, s schema.Schema) {
	if g.store == nil {
		return
	}
	if err := g.store.Put(key, s); err != nil {
		log.Warn("Could not cache the generated schema", "error", err)
	}
}

// call asks the provider for text, retrying with exponential backoff while it is throttled.
// Answered calls, empty answers included, are recorded by the governor.
func (g *Generator) call(ctx context.Context, log *slog.Logger, req provider.Request) (string, error) {
	var lastErr error
	for attempt := range g.attempts {
		if attempt > 0 {
			wait := g.backoff << (attempt - 1)
			log.Warn("Provider is throttling, retrying after backoff", "attempt", attempt+1, "wait", wait)
			if err := g.sleep(ctx, wait); err != nil {
				return "", apperr.Newf(apperr.KindAPIFailure, "provider call interrupted: %w", err)
			}
		}

		text, err := g.client.GenerateText(ctx, req)
		switch {
		case err == nil:
			g.governor.RecordSuccess()
			return text, nil
		case errors.Is(err, provider.ErrRateLimited):
			lastErr = err
			continue
		case errors.Is(err, provider.ErrEmptyResponse):
			g.governor.RecordSuccess()
			return "", apperr.Newf(apperr.KindGenerationFailure, "%w", err)
		case errors.Is(err, provider.ErrTimeout):
			return "", apperr.Newf(apperr.KindAPIFailure, "request timeout: %w", err)
		case errors.Is(err, provider.ErrConnection), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return "", apperr.Newf(apperr.KindAPIFailure, "provider unavailable: %w", err)
		default:
			return "", fmt.Errorf("provider call failed: %w", err)
		}
	}

	return "", apperr.Newf(apperr.KindRateLimit, "provider rate limit exceeded after %d attempts: %w", g.attempts, lastErr).With("retry_after", retryAfter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
