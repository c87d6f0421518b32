package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/datasynth/datasynth/internal/constants"
	"github.com/datasynth/datasynth/internal/schema"
)

var errMalformed = errors.New("malformed cache document")

// document is the on-disk layout of the file backend.
// Pointers and raw messages let structural checks tell missing keys from zero values.
type document struct {
	Version   *string                    `json:"version"`
	CreatedAt string                     `json:"created_at"`
	Schemas   map[string]json.RawMessage `json:"schemas"`
	Metadata  *metadata                  `json:"metadata"`
}

type metadata struct {
	TotalSchemas *int    `json:"total_schemas"`
	LastUpdated  *string `json:"last_updated"`
}

type entry struct {
	DescriptionHash string        `json:"description_hash"`
	FieldsSchema    schema.Fields `json:"fields_schema"`
	CreatedAt       string        `json:"created_at"`
	Domain          string        `json:"domain"`
}

func newDocument(now time.Time) document {
	version := constants.CacheFormatVersion
	count := 0
	updated := formatTime(now)
	return document{
		Version:   &version,
		CreatedAt: formatTime(now),
		Schemas:   make(map[string]json.RawMessage),
		Metadata:  &metadata{TotalSchemas: &count, LastUpdated: &updated},
	}
}

// decodeDocument parses data, failing when it is not an object holding a schemas object.
func decodeDocument(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if doc.Schemas == nil {
		return document{}, fmt.Errorf("%w: missing schemas", errMalformed)
	}
	return doc, nil
}

// healthy reports whether all required keys are present and the recorded count matches.
func (d document) healthy() bool {
	if d.Version == nil || d.Schemas == nil || d.Metadata == nil {
		return false
	}
	if d.Metadata.TotalSchemas == nil || d.Metadata.LastUpdated == nil {
		return false
	}
	return *d.Metadata.TotalSchemas == len(d.Schemas)
}

// lookup decodes the entry stored under key.
func (d document) lookup(key string) (schema.Schema, bool, error) {
	raw, ok := d.Schemas[key]
	if !ok {
		return schema.Schema{}, false, nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return schema.Schema{}, false, fmt.Errorf("%w: entry %s: %v", errMalformed, key, err)
	}
	created, err := parseTime(e.CreatedAt)
	if err != nil {
		return schema.Schema{}, false, fmt.Errorf("%w: entry %s: %v", errMalformed, key, err)
	}

	return schema.Schema{
		DescriptionHash: e.DescriptionHash,
		Fields:          e.FieldsSchema,
		CreatedAt:       created,
		Domain:          e.Domain,
	}, true, nil
}

// set stores s under key and refreshes the metadata.
func (d *document) set(key string, s schema.Schema, now time.Time) error {
	raw, err := json.Marshal(entry{
		DescriptionHash: s.DescriptionHash,
		FieldsSchema:    s.Fields,
		CreatedAt:       formatTime(s.CreatedAt),
		Domain:          s.Domain,
	})
	if err != nil {
		return fmt.Errorf("could not encode schema: %v", err)
	}

	if d.Version == nil {
		version := constants.CacheFormatVersion
		d.Version = &version
	}
	if d.Metadata == nil {
		d.Metadata = &metadata{}
	}
	d.Schemas[key] = raw
	count := len(d.Schemas)
	updated := formatTime(now)
	d.Metadata.TotalSchemas = &count
	d.Metadata.LastUpdated = &updated
	return nil
}

func (d document) encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
