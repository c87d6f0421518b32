package generator

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	errUnsupportedParam = errors.New("unsupported parameter")
	errParamType        = errors.New("wrong parameter type")
)

// params are the parameters of a field specification, read with type coercion.
// A missing key yields the default; a value of the wrong type yields errParamType.
type params map[string]any

// check fails when a key is not part of accepted.
func (p params) check(accepted []string) error {
	for k := range p {
		if !slices.Contains(accepted, k) {
			return fmt.Errorf("%w: %q", errUnsupportedParam, k)
		}
	}
	return nil
}

func (p params) int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %s=%v is not an integer", errParamType, key, v)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s=%v is not an integer", errParamType, key, v)
	}
}

func (p params) float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s=%v is not a number", errParamType, key, v)
	}
}

// optFloat returns nil when key is absent.
func (p params) optFloat(key string) (*float64, error) {
	if v, ok := p[key]; !ok || v == nil {
		return nil, nil
	}
	f, err := p.float(key, 0)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (p params) bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s=%v is not a boolean", errParamType, key, v)
	}
	return b, nil
}

func (p params) string(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s=%v is not a string", errParamType, key, v)
	}
	return s, nil
}

// list accepts a list, or a mapping whose keys are the elements.
func (p params) list(key string, def []any) ([]any, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch l := v.(type) {
	case []any:
		if len(l) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", errParamType, key)
		}
		return l, nil
	case []string:
		out := make([]any, 0, len(l))
		for _, s := range l {
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", errParamType, key)
		}
		return out, nil
	case map[string]any:
		out := make([]any, 0, len(l))
		for _, k := range slices.Sorted(maps.Keys(l)) {
			out = append(out, k)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", errParamType, key)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s=%v is not a list", errParamType, key, v)
	}
}

// date reads a date parameter, see parseDate.
func (p params) date(key string, def, now time.Time) (time.Time, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	return parseDate(v, now)
}

var relativeDate = regexp.MustCompile(`^([+-]?)((?:\d+[yMwdhms])+)$`)
var relativePart = regexp.MustCompile(`(\d+)([yMwdhms])`)

// parseDate understands "today", "now", relative offsets such as "-2y", "+30d" or "-1y6M",
// ISO dates and RFC 3339 timestamps.
func parseDate(v any, now time.Time) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date %v is not a string", errParamType, v)
	}
	s = strings.TrimSpace(s)

	switch s {
	case "today", "now":
		return now, nil
	}

	if m := relativeDate.FindStringSubmatch(s); m != nil {
		sign := 1
		if m[1] == "-" {
			sign = -1
		}
		t := now
		for _, part := range relativePart.FindAllStringSubmatch(m[2], -1) {
			n, err := strconv.Atoi(part[1])
			if err != nil {
				return time.Time{}, fmt.Errorf("%w: date %q: %v", errParamType, s, err)
			}
			n *= sign
			switch part[2] {
			case "y":
				t = t.AddDate(n, 0, 0)
			case "M":
				t = t.AddDate(0, n, 0)
			case "w":
				t = t.AddDate(0, 0, 7*n)
			case "d":
				t = t.AddDate(0, 0, n)
			case "h":
				t = t.Add(time.Duration(n) * time.Hour)
			case "m":
				t = t.Add(time.Duration(n) * time.Minute)
			case "s":
				t = t.Add(time.Duration(n) * time.Second)
			}
		}
		return t, nil
	}

	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unsupported date %q", errParamType, s)
}
