// Package schema holds the field schema a dataset is synthesized from, and
// the parser turning provider text into one.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Schema is the cached artifact: an ordered field map and the domain it belongs to.
type Schema struct {
	DescriptionHash string    `json:"description_hash" yaml:"description_hash"`
	Fields          Fields    `json:"fields_schema" yaml:"fields_schema"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	Domain          string    `json:"domain" yaml:"domain"`
}

// Field is a named field specification.
type Field struct {
	Name string
	Spec FieldSpec
}

// Fields is an ordered list of fields, encoded as a JSON object keeping its key order.
type Fields []Field

// Names returns the field names in declaration order.
func (fs Fields) Names() []string {
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.Name)
	}
	return names
}

// Lookup returns the specification of the named field.
func (fs Fields) Lookup(name string) (FieldSpec, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Spec, true
		}
	}
	return FieldSpec{}, false
}

// MarshalJSON encodes the fields as an object in declaration order.
func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Spec)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object into fields, keeping the key order of the document.
// A repeated key replaces the earlier value in place.
func (fs *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("fields must be an object")
	}

	out := Fields{}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected field name token %v", tok)
		}

		var spec FieldSpec
		if err := dec.Decode(&spec); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}

		if i, ok := index[name]; ok {
			out[i].Spec = spec
			continue
		}
		index[name] = len(out)
		out = append(out, Field{Name: name, Spec: spec})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*fs = out
	return nil
}

// MarshalYAML renders the fields as a mapping in declaration order.
func (fs Fields) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fs {
		spec := struct {
			Method      string         `yaml:"faker_method"`
			Params      map[string]any `yaml:"parameters,omitempty"`
			Description string         `yaml:"description,omitempty"`
		}{f.Spec.Method, f.Spec.Params, f.Spec.Description}

		var value yaml.Node
		if err := value.Encode(spec); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Name}, &value)
	}
	return node, nil
}
