// Package contentkey derives the stable cache key of a dataset description.
//
// Two descriptions differing only in letter case, surrounding or repeated
// whitespace, or spacing around punctuation share the same key.
package contentkey

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyDescription is returned when asked for the key of an empty description.
var ErrEmptyDescription = errors.New("description cannot be empty")

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`\s*([,.!?;:])\s*`)
	keyPattern  = regexp.MustCompile(`^[0-9a-f]{64}$`)

	folder = cases.Lower(language.Und)
)

// Normalize returns the canonical form of a description used for hashing.
func Normalize(description string) string {
	s := folder.String(norm.NFC.String(description))
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	s = punctuation.ReplaceAllString(s, "$1 ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Generate returns the lowercase hex SHA-256 digest of the normalized description.
func Generate(description string) (string, error) {
	if description == "" {
		return "", ErrEmptyDescription
	}
	sum := sha256.Sum256([]byte(Normalize(description)))
	return hex.EncodeToString(sum[:]), nil
}

// Valid reports whether key has the shape of a generated key.
func Valid(key string) bool {
	return keyPattern.MatchString(key)
}

// Matches reports whether key was generated from description.
func Matches(description, key string) bool {
	got, err := Generate(description)
	if err != nil {
		return false
	}
	return got == key
}
