package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	methodKey      = "faker_method"
	parametersKey  = "parameters"
	descriptionKey = "description"
)

// FieldSpec names a generator method and the optional parameters to call it with.
// An empty Method means the field carries no usable hint.
type FieldSpec struct {
	Method      string
	Params      map[string]any
	Description string
}

// MarshalJSON encodes the specification in its object form.
func (s FieldSpec) MarshalJSON() ([]byte, error) {
	params := s.Params
	if params == nil {
		params = map[string]any{}
	}
	out := struct {
		Method      string         `json:"faker_method"`
		Params      map[string]any `json:"parameters"`
		Description string         `json:"description,omitempty"`
	}{s.Method, params, s.Description}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the object form and a bare method name.
// Keys of the object other than the method, parameters and description are taken as parameters.
// Any other JSON value is kept as its text, which then names an unknown method.
func (s *FieldSpec) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = specFromValue(raw)
	return nil
}

func specFromValue(raw any) FieldSpec {
	switch v := raw.(type) {
	case nil:
		return FieldSpec{}
	case string:
		return FieldSpec{Method: strings.TrimSpace(v)}
	case map[string]any:
		var spec FieldSpec
		if m, ok := v[methodKey].(string); ok {
			spec.Method = strings.TrimSpace(m)
		}
		if d, ok := v[descriptionKey].(string); ok {
			spec.Description = d
		}
		if p, ok := v[parametersKey].(map[string]any); ok && len(p) > 0 {
			spec.Params = maps.Clone(p)
		}
		for _, k := range slices.Sorted(maps.Keys(v)) {
			if k == methodKey || k == parametersKey || k == descriptionKey {
				continue
			}
			if spec.Params == nil {
				spec.Params = make(map[string]any)
			}
			if _, exists := spec.Params[k]; !exists {
				spec.Params[k] = v[k]
			}
		}
		return spec
	default:
		return FieldSpec{Method: fmt.Sprint(v)}
	}
}
