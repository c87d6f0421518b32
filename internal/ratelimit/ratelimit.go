// Package ratelimit implements admission control for outbound provider calls.
//
// A Governor enforces a rolling one-minute ceiling and a calendar-day ceiling.
// Its state lives in the process only: separate processes each keep their own view of the quota.
package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrDailyLimit is returned when the calendar-day ceiling is reached.
	ErrDailyLimit = errors.New("daily request limit reached")
	// ErrMinuteLimit is returned when the rolling one-minute ceiling is reached.
	ErrMinuteLimit = errors.New("per-minute request limit reached")
	// ErrInvalidLimit is returned when a ceiling is not positive.
	ErrInvalidLimit = errors.New("rate limits must be positive")
)

const window = time.Minute

type timeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time {
	return time.Now()
}

// Governor admits or denies provider calls.
type Governor struct {
	mu sync.Mutex

	perMinute int
	perDay    int

	recent    []time.Time
	daily     int
	resetDate time.Time

	clock timeProvider
	log   *slog.Logger
}

type options struct {
	clock timeProvider
	log   *slog.Logger
}

// Option overrides Governor defaults.
type Option func(*options)

// WithLogger sets the logger used to report denials.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns a Governor allowing perMinute calls in any trailing minute and perDay calls per calendar day.
func New(perMinute, perDay int, args ...Option) (*Governor, error) {
	if perMinute < 1 || perDay < 1 {
		return nil, fmt.Errorf("%w: got %d per minute and %d per day", ErrInvalidLimit, perMinute, perDay)
	}

	opts := options{
		clock: realTimeProvider{},
		log:   slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Governor{
		perMinute: perMinute,
		perDay:    perDay,
		resetDate: day(opts.clock.Now()),
		clock:     opts.clock,
		log:       opts.log,
	}, nil
}

// Check reports whether a call may be issued now. Denials are not counted as usage.
func (g *Governor) Check() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.resetIfNewDay(now)

	if g.daily >= g.perDay {
		g.log.Info("Denied provider call", "reason", "daily", "count", g.daily, "limit", g.perDay)
		return fmt.Errorf("%w: %d requests today", ErrDailyLimit, g.daily)
	}

	g.prune(now)
	if len(g.recent) >= g.perMinute {
		g.log.Info("Denied provider call", "reason", "minute", "count", len(g.recent), "limit", g.perMinute)
		return fmt.Errorf("%w: %d requests in the last minute", ErrMinuteLimit, len(g.recent))
	}

	return nil
}

// RecordSuccess counts a call that was actually issued.
func (g *Governor) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.resetIfNewDay(now)
	g.recent = append(g.recent, now)
	g.daily++
}

// Usage is a snapshot of the governor counters.
type Usage struct {
	LastMinute int `yaml:"last_minute"`
	PerMinute  int `yaml:"per_minute_limit"`
	Today      int `yaml:"today"`
	PerDay     int `yaml:"per_day_limit"`
}

// Usage returns the current counters, pruned as a Check would.
func (g *Governor) Usage() Usage {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.resetIfNewDay(now)
	g.prune(now)

	return Usage{
		LastMinute: len(g.recent),
		PerMinute:  g.perMinute,
		Today:      g.daily,
		PerDay:     g.perDay,
	}
}

func (g *Governor) resetIfNewDay(now time.Time) {
	today := day(now)
	if !g.resetDate.Before(today) {
		return
	}
	g.log.Debug("Resetting daily request counter", "previous", g.daily, "date", today.Format(time.DateOnly))
	g.daily = 0
	g.resetDate = today
}

// prune keeps only the instants within the trailing window.
func (g *Governor) prune(now time.Time) {
	kept := g.recent[:0]
	for _, t := range g.recent {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	g.recent = kept
}

// day returns the UTC midnight starting the day of t.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
