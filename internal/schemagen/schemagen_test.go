package schemagen_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/datasynth/datasynth/internal/apperr"
	"github.com/datasynth/datasynth/internal/cache"
	"github.com/datasynth/datasynth/internal/contentkey"
	"github.com/datasynth/datasynth/internal/provider"
	"github.com/datasynth/datasynth/internal/ratelimit"
	"github.com/datasynth/datasynth/internal/schema"
	"github.com/datasynth/datasynth/internal/schemagen"
	"github.com/datasynth/datasynth/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	description = "Healthcare patient records with blood types and departments"
	goodText    = "```json\n{\"domain\": \"healthcare\", \"fields\": {\"blood_type\": {\"faker_method\": \"healthcare\"}, \"department\": {\"faker_method\": \"healthcare\"}}}\n```"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClient answers with the queued responses, repeating the last one.
type fakeClient struct {
	mu        sync.Mutex
	responses []response
	calls     int
	requests  []provider.Request
}

type response struct {
	text string
	err  error
}

func (c *fakeClient) GenerateText(_ context.Context, req provider.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := min(c.calls, len(c.responses)-1)
	c.calls++
	c.requests = append(c.requests, req)
	return c.responses[i].text, c.responses[i].err
}

// faultyStore fails every operation.
type faultyStore struct {
	cache.Store
	gets, puts int
}

func (s *faultyStore) Get(string) (schema.Schema, bool, error) {
	s.gets++
	return schema.Schema{}, false, errors.New("disk on fire")
}

func (s *faultyStore) Put(string, schema.Schema) error {
	s.puts++
	return errors.New("disk on fire")
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		description string
		responses   []response
		perMinute   int
		preUse      int
		maxTokens   int

		wantKind    apperr.Kind
		wantCalls   int
		wantSleeps  []time.Duration
		wantRecords int
	}{
		"Generates on cache miss": {responses: []response{{text: goodText}}, wantCalls: 1, wantRecords: 1},
		"Retries while throttled then succeeds": {
			responses:   []response{{err: provider.ErrRateLimited}, {err: provider.ErrRateLimited}, {text: goodText}},
			wantCalls:   3,
			wantSleeps:  []time.Duration{time.Second, 2 * time.Second},
			wantRecords: 1,
		},

		"Validation error on short description": {description: "too short", wantKind: apperr.KindValidation},
		"Validation error on long description":  {description: strings.Repeat("x", 4001), wantKind: apperr.KindValidation},
		"Validation error on oversized prompt":   {description: strings.Repeat("y", 400), maxTokens: 450, wantKind: apperr.KindValidation},
		"Rate limit error when governor denies":  {responses: []response{{text: goodText}}, perMinute: 1, preUse: 1, wantKind: apperr.KindRateLimit},
		"Rate limit error after all attempts are throttled": {
			responses:  []response{{err: provider.ErrRateLimited}},
			wantKind:   apperr.KindRateLimit,
			wantCalls:  3,
			wantSleeps: []time.Duration{time.Second, 2 * time.Second},
		},
		"API failure on connection error is not retried": {responses: []response{{err: provider.ErrConnection}}, wantKind: apperr.KindAPIFailure, wantCalls: 1},
		"API failure on timeout is not retried":          {responses: []response{{err: provider.ErrTimeout}}, wantKind: apperr.KindAPIFailure, wantCalls: 1},
		"Generation failure on empty response":           {responses: []response{{err: provider.ErrEmptyResponse}}, wantKind: apperr.KindGenerationFailure, wantCalls: 1, wantRecords: 1},
		"Generation failure on unparsable text":          {responses: []response{{text: "Sure! Here it is."}}, wantKind: apperr.KindGenerationFailure, wantCalls: 1, wantRecords: 1},
		"Generation failure on field without method":     {responses: []response{{text: `{"domain":"d","fields":{"a":{}}}`}}, wantKind: apperr.KindGenerationFailure, wantCalls: 1, wantRecords: 1},
		"Generation failure on unknown client error":     {responses: []response{{err: errors.New("secret internals sk-123")}}, wantKind: apperr.KindGenerationFailure, wantCalls: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if tc.description == "" {
				tc.description = description
			}
			if tc.perMinute == 0 {
				tc.perMinute = 10
			}
			if tc.maxTokens == 0 {
				tc.maxTokens = 4000
			}
			if tc.responses == nil {
				tc.responses = []response{{text: goodText}}
			}

			gov, err := ratelimit.New(tc.perMinute, 100)
			require.NoError(t, err, "Setup: governor creation should not fail")
			for range tc.preUse {
				gov.RecordSuccess()
			}

			client := &fakeClient{responses: tc.responses}
			var sleeps []time.Duration
			g := schemagen.New(client, gov,
				schemagen.WithCache(cache.NewMemStore()),
				schemagen.WithMaxTokens(tc.maxTokens),
				schemagen.WithNow(func() time.Time { return fixedNow }),
				schemagen.WithSleep(func(_ context.Context, d time.Duration) error {
					sleeps = append(sleeps, d)
					return nil
				}),
			)

			res, err := g.Generate(context.Background(), tc.description)
			assert.Equal(t, tc.wantCalls, client.calls, "Unexpected number of provider calls")
			assert.Equal(t, tc.wantSleeps, sleeps, "Unexpected backoff delays")
			assert.Equal(t, tc.wantRecords, gov.Usage().Today-tc.preUse, "Unexpected number of recorded calls")

			if tc.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantKind, apperr.KindOf(err))
				assert.NotContains(t, err.Error(), "sk-123", "Error should not leak internal text")
				return
			}
			require.NoError(t, err)

			key, err := contentkey.Generate(tc.description)
			require.NoError(t, err)
			assert.Equal(t, schemagen.FromProvider, res.Source)
			assert.Equal(t, key, res.Key)
			assert.Equal(t, key, res.Schema.DescriptionHash)
			assert.Equal(t, "healthcare", res.Schema.Domain)
			assert.Equal(t, []string{"blood_type", "department"}, res.Schema.Fields.Names())
			assert.Equal(t, fixedNow, res.Schema.CreatedAt)
			require.NotEmpty(t, client.requests)
			assert.Equal(t, tc.description, client.requests[0].Description)
			assert.Contains(t, client.requests[0].Prompt, tc.description)
		})
	}
}

func TestGenerateUsesCache(t *testing.T) {
	t.Parallel()

	gov, err := ratelimit.New(1, 1)
	require.NoError(t, err, "Setup: governor creation should not fail")
	client := &fakeClient{responses: []response{{text: goodText}}}
	store := cache.NewMemStore()
	g := schemagen.New(client, gov, schemagen.WithCache(store))

	first, err := g.Generate(context.Background(), description)
	require.NoError(t, err)
	assert.Equal(t, schemagen.FromProvider, first.Source)

	// Same normalized content: served from cache even though the governor is exhausted.
	second, err := g.Generate(context.Background(), "  HEALTHCARE patient records with blood types  and departments ")
	require.NoError(t, err)
	assert.Equal(t, schemagen.FromCache, second.Source)
	assert.Equal(t, first.Schema, second.Schema)
	assert.Equal(t, 1, client.calls, "Cache hit should not call the provider")

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{first.Key}, keys)

	_, err = g.Generate(context.Background(), "An entirely different dataset")
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimit, apperr.KindOf(err))
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 60, e.Details["retry_after"])
}

func TestGenerateAbsorbsCacheFaults(t *testing.T) {
	t.Parallel()

	gov, err := ratelimit.New(10, 10)
	require.NoError(t, err, "Setup: governor creation should not fail")
	client := &fakeClient{responses: []response{{text: goodText}}}
	store := &faultyStore{}
	log, h := testutils.NewLogger()
	g := schemagen.New(client, gov, schemagen.WithCache(store), schemagen.WithLogger(log))

	res, err := g.Generate(context.Background(), description)
	require.NoError(t, err, "Cache faults should never surface")
	assert.Equal(t, schemagen.FromProvider, res.Source)
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, 1, store.puts)
	h.RequireRecords(t, slog.LevelWarn,
		testutils.ExpectedRecord{Level: slog.LevelWarn, Message: "Cache lookup failed"},
		testutils.ExpectedRecord{Level: slog.LevelWarn, Message: "Could not cache"},
	)
}

func TestGenerateWithoutCache(t *testing.T) {
	t.Parallel()

	gov, err := ratelimit.New(10, 10)
	require.NoError(t, err, "Setup: governor creation should not fail")
	client := &fakeClient{responses: []response{{text: goodText}}}
	g := schemagen.New(client, gov)

	for range 2 {
		_, err := g.Generate(context.Background(), description)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, client.calls, "Every call should reach the provider without a cache")
}

func TestGenerateStopsBackoffOnCancel(t *testing.T) {
	t.Parallel()

	gov, err := ratelimit.New(10, 10)
	require.NoError(t, err, "Setup: governor creation should not fail")
	client := &fakeClient{responses: []response{{err: provider.ErrRateLimited}}}
	g := schemagen.New(client, gov, schemagen.WithRetry(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = g.Generate(ctx, description)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAPIFailure, apperr.KindOf(err))
	assert.Equal(t, 1, client.calls)
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	gov, err := ratelimit.New(1, 1)
	require.NoError(t, err, "Setup: governor creation should not fail")
	g := schemagen.New(&fakeClient{}, gov)

	p, err := g.Prompt(description)
	require.NoError(t, err)
	assert.Contains(t, p, fmt.Sprintf("User Request: %q", description))
	assert.Contains(t, p, `"faker_method"`)
}
