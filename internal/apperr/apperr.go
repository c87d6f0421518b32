// Package apperr defines the failures surfaced to datasynth users.
//
// Every propagated failure carries a Kind, a human-readable message and a bounded
// set of details. Anything not already categorized is converted by Sanitize into
// a generic generation failure that does not echo internal text.
package apperr

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
)

// Kind is the machine-readable category of a failure.
type Kind string

const (
	// KindValidation is a bad input shape, length or count.
	KindValidation Kind = "validation"
	// KindRateLimit is an exhausted provider quota.
	KindRateLimit Kind = "rate_limit"
	// KindAPIFailure is an unreachable or timed out provider.
	KindAPIFailure Kind = "api_failure"
	// KindGenerationFailure is unusable provider output, or any uncategorized failure.
	KindGenerationFailure Kind = "generation_failure"
)

const (
	maxDetails      = 8
	maxDetailLength = 100

	internalMessage = "Dataset generation failed due to an internal error"
)

// Error is a categorized, user-facing failure.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any

	err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) tests the category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Newf creates an error of the given kind. %w verbs wrap their operands.
func Newf(kind Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Message: err.Error(), err: err}
}

// Wrap categorizes err, keeping its message.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), err: err}
}

// With returns a copy of e carrying an additional detail.
// String values are truncated and the number of details is capped.
func (e *Error) With(key string, value any) *Error {
	c := *e
	c.Details = maps.Clone(e.Details)
	if c.Details == nil {
		c.Details = make(map[string]any)
	}
	if _, exists := c.Details[key]; !exists && len(c.Details) >= maxDetails {
		return &c
	}
	c.Details[key] = boundValue(value)
	return &c
}

// KindOf returns the kind of the first categorized error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Sanitize returns the user-facing form of err.
// Uncategorized errors become a generic generation failure identified by an error_id
// derived from the internal text, which is itself never exposed.
func Sanitize(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return (&Error{Kind: KindGenerationFailure, Message: internalMessage, err: err}).With("error_id", ErrorID(err))
}

// ErrorID returns a short stable identifier for err, suitable for correlating logs.
func ErrorID(err error) string {
	sum := sha256.Sum256([]byte(err.Error()))
	return hex.EncodeToString(sum[:])[:8]
}

func boundValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	r := []rune(s)
	if len(r) <= maxDetailLength {
		return s
	}
	return string(r[:maxDetailLength])
}
