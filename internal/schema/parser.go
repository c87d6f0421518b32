package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse is returned when provider text is not a schema document.
	ErrParse = errors.New("could not parse schema response")
	// ErrInvalid is returned when a schema document is well-formed but unusable.
	ErrInvalid = errors.New("invalid schema")
)

// Document is a schema as described by a provider, before it is keyed and timestamped.
type Document struct {
	Domain string
	Fields Fields
}

// ParseResponse turns provider text into a validated Document.
// Markdown code fences around the JSON object are ignored.
func ParseResponse(text string) (doc Document, err error) {
	cleaned := stripFences(text)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return Document{}, fmt.Errorf("%w: response is not a JSON object: %v", ErrParse, err)
	}

	rawDomain, hasDomain := top["domain"]
	rawFields, hasFields := top["fields"]
	if !hasDomain || !hasFields {
		return Document{}, fmt.Errorf("%w: response missing required 'domain' or 'fields'", ErrParse)
	}

	if err := json.Unmarshal(rawDomain, &doc.Domain); err != nil {
		return Document{}, fmt.Errorf("%w: 'domain' must be a string", ErrParse)
	}
	if strings.TrimSpace(doc.Domain) == "" {
		doc.Domain = "unknown"
	}

	if !isObject(rawFields) {
		return Document{}, fmt.Errorf("%w: 'fields' must be an object", ErrParse)
	}
	if err := validateFields(rawFields); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(rawFields, &doc.Fields); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(doc.Fields) == 0 {
		return Document{}, fmt.Errorf("%w: schema has no fields", ErrInvalid)
	}

	return doc, nil
}

// validateFields checks that every field is an object naming its method,
// and that parameters, when given, are an object too.
func validateFields(raw json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}

	for name, config := range fields {
		if !isObject(config) {
			return fmt.Errorf("%w: field %q configuration must be an object", ErrInvalid, name)
		}
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(config, &entries); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrParse, name, err)
		}
		if _, ok := entries[methodKey]; !ok {
			return fmt.Errorf("%w: field %q missing '%s'", ErrInvalid, name, methodKey)
		}
		if p, ok := entries[parametersKey]; ok && !isObject(p) {
			return fmt.Errorf("%w: field %q parameters must be an object", ErrInvalid, name)
		}
	}
	return nil
}

func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(cleaned, "```json"):
		cleaned = strings.ReplaceAll(cleaned, "```json", "")
		cleaned = strings.ReplaceAll(cleaned, "```", "")
	case strings.HasPrefix(cleaned, "```"):
		cleaned = strings.ReplaceAll(cleaned, "```", "")
	}
	return strings.TrimSpace(cleaned)
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
