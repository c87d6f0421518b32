package testutils

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ExpectedRecord is a log record a test expects to be emitted.
type ExpectedRecord struct {
	Level   slog.Level
	Message string
}

// Compare asserts that have matches the expected level and contains the expected message.
func (want ExpectedRecord) Compare(t *testing.T, have slog.Record) {
	t.Helper()

	assert.Equal(t, want.Level, have.Level, "Expected Level did not match real Level")

	if want.Message == "" {
		return
	}
	assert.Contains(t, have.Message, want.Message, "Real Message does not contain Expected")
}

// RecordingHandler is a slog.Handler keeping every record it handles.
type RecordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewLogger returns a logger recording into a new handler.
func NewLogger() (*slog.Logger, *RecordingHandler) {
	h := &RecordingHandler{}
	return slog.New(h), h
}

// Enabled implements Handler.Enabled.
func (h *RecordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements Handler.Handle.
func (h *RecordingHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record.Clone())
	return nil
}

// WithAttrs implements Handler.WithAttrs. Attributes are not kept.
func (h *RecordingHandler) WithAttrs([]slog.Attr) slog.Handler {
	return h
}

// WithGroup implements Handler.WithGroup. Groups are not kept.
func (h *RecordingHandler) WithGroup(string) slog.Handler {
	return h
}

// Records returns the records handled at level or above.
func (h *RecordingHandler) Records(level slog.Level) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	var rs []slog.Record
	for _, r := range h.records {
		if r.Level >= level {
			rs = append(rs, r)
		}
	}
	return rs
}

// RequireRecords asserts that the records at level or above match want, in order.
func (h *RecordingHandler) RequireRecords(t *testing.T, level slog.Level, want ...ExpectedRecord) {
	t.Helper()

	have := h.Records(level)
	if !assert.Len(t, have, len(want), "Unexpected number of log records") {
		return
	}
	for i, w := range want {
		w.Compare(t, have[i])
	}
}
