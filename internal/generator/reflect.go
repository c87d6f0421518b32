package generator

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// initialisms maps lowercase name parts to their spelling in faker method names.
var initialisms = map[string]string{
	"bs":    "BS",
	"http":  "HTTP",
	"id":    "ID",
	"ip":    "IP",
	"ipv4":  "IPv4",
	"ipv6":  "IPv6",
	"json":  "JSON",
	"mac":   "Mac",
	"rgb":   "RGB",
	"ssn":   "SSN",
	"uuid":  "UUID",
	"url":   "URL",
	"xml":   "XML",
	"ach":   "Ach",
	"isbn":  "ISBN",
	"vin":   "VIN",
	"sql":   "SQL",
	"csv":   "CSV",
	"ein":   "EIN",
	"ua":    "UA",
	"cusip": "Cusip",
}

// methodName converts a snake_case method name into the faker's exported Go spelling.
func methodName(method string) string {
	var b strings.Builder
	for _, part := range strings.Split(method, "_") {
		if part == "" {
			continue
		}
		if v, ok := initialisms[strings.ToLower(part)]; ok {
			b.WriteString(v)
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// fromReflect binds to the faker method named after method.
// Methods without arguments are always bound. Methods with arguments are bound only
// when an "args" parameter provides values convertible to their argument types.
func (e *Engine) fromReflect(field, method string, p params) (Generator, bool) {
	name := methodName(method)
	if name == "" {
		return nil, false
	}
	m := reflect.ValueOf(e.faker).MethodByName(name)
	if !m.IsValid() || m.Type().NumOut() == 0 || m.Type().IsVariadic() {
		return nil, false
	}

	if m.Type().NumIn() == 0 {
		if len(p) > 0 {
			e.log.Debug("Ignoring field parameters", "field", field, "method", name)
		}
		return func() (any, error) { return callMethod(m, nil) }, true
	}

	args, err := methodArgs(m.Type(), p)
	if err != nil {
		e.log.Debug("Cannot call faker method", "field", field, "method", name, "error", err)
		return nil, false
	}
	return func() (any, error) { return callMethod(m, args) }, true
}

func methodArgs(t reflect.Type, p params) ([]reflect.Value, error) {
	raw, err := p.list("args", nil)
	if err != nil {
		return nil, err
	}
	if len(raw) != t.NumIn() {
		return nil, fmt.Errorf("%w: method takes %d arguments, got %d", errParamType, t.NumIn(), len(raw))
	}

	args := make([]reflect.Value, 0, len(raw))
	for i, a := range raw {
		in := t.In(i)
		if a == nil {
			return nil, fmt.Errorf("%w: argument %d is null", errParamType, i)
		}
		v := reflect.ValueOf(a)
		if !v.Type().ConvertibleTo(in) || !sameKindFamily(v.Kind(), in.Kind()) {
			return nil, fmt.Errorf("%w: argument %d is %s, want %s", errParamType, i, v.Type(), in)
		}
		args = append(args, v.Convert(in))
	}
	return args, nil
}

// sameKindFamily prevents conversions that are legal in Go but meaningless here, such as number to string.
func sameKindFamily(from, to reflect.Kind) bool {
	num := func(k reflect.Kind) bool { return k >= reflect.Int && k <= reflect.Float64 }
	if num(from) || num(to) {
		return num(from) && num(to)
	}
	return from == to
}

// callMethod invokes m and returns its first result, turning panics into errors.
func callMethod(m reflect.Value, args []reflect.Value) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("faker method panicked: %v", r)
		}
	}()

	out := m.Call(args)
	if last := out[len(out)-1]; len(out) > 1 && last.Type().Implements(reflect.TypeFor[error]()) && !last.IsNil() {
		return nil, last.Interface().(error)
	}
	return out[0].Interface(), nil
}
