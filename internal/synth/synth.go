// Package synth drives resolved field generators to produce datasets.
package synth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/datasynth/datasynth/internal/apperr"
	"github.com/datasynth/datasynth/internal/constants"
	"github.com/datasynth/datasynth/internal/generator"
	"github.com/datasynth/datasynth/internal/schema"
)

// ErrRowCount is returned when the requested row count is outside the configured range.
var ErrRowCount = errors.New("row count out of range")

// isoDateTime is the rendering of timestamps in datasets.
const isoDateTime = "2006-01-02T15:04:05"

// Dataset is the synthesized table.
type Dataset struct {
	Rows       []map[string]any
	FieldNames []string
	RowCount   int
	Elapsed    time.Duration
	Domain     string
}

// resolver compiles field specifications, see generator.Engine.
type resolver interface {
	Resolve(field string, spec schema.FieldSpec) generator.Generator
	Reseed()
}

// Synthesizer produces datasets from schemas.
type Synthesizer struct {
	minRows, maxRows int
	reseedEvery      int

	newResolver func() resolver
	log         *slog.Logger
}

type options struct {
	minRows, maxRows int
	reseedEvery      int
	seed             uint64
	newResolver      func() resolver
	log              *slog.Logger
}

// Option overrides Synthesizer defaults.
type Option func(*options)

// WithRowRange sets the inclusive range of accepted row counts.
func WithRowRange(minRows, maxRows int) Option {
	return func(o *options) {
		o.minRows, o.maxRows = minRows, maxRows
	}
}

// WithSeed makes datasets reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns a Synthesizer.
func New(args ...Option) *Synthesizer {
	opts := options{
		minRows:     constants.DefaultMinRows,
		maxRows:     constants.DefaultMaxRows,
		reseedEvery: constants.DefaultReseedEvery,
		seed:        constants.DefaultGeneratorSeed,
		log:         slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	if opts.newResolver == nil {
		engineOpts := []generator.Option{generator.WithSeed(opts.seed), generator.WithLogger(opts.log)}
		opts.newResolver = func() resolver { return generator.New(engineOpts...) }
	}

	return &Synthesizer{
		minRows:     opts.minRows,
		maxRows:     opts.maxRows,
		reseedEvery: opts.reseedEvery,
		newResolver: opts.newResolver,
		log:         opts.log,
	}
}

// ValidateRows checks that rows is within the accepted row range.
func (sy *Synthesizer) ValidateRows(rows int) error {
	if rows < sy.minRows || rows > sy.maxRows {
		return apperr.Newf(apperr.KindValidation, "%w: row count must be an integer between %d and %d, got %d", ErrRowCount, sy.minRows, sy.maxRows, rows).
			With("rows", rows)
	}
	return nil
}

type column struct {
	name string
	gen  generator.Generator
}

// Synthesize produces rows rows from s.
// A failing cell is replaced by a placeholder naming its field and row, and never fails the dataset.
func (sy *Synthesizer) Synthesize(s schema.Schema, rows int) (Dataset, error) {
	if err := sy.ValidateRows(rows); err != nil {
		return Dataset{}, err
	}

	start := time.Now()
	engine := sy.newResolver()

	columns := make([]column, 0, len(s.Fields))
	for _, f := range s.Fields {
		columns = append(columns, column{name: f.Name, gen: engine.Resolve(f.Name, f.Spec)})
	}

	data := make([]map[string]any, 0, rows)
	failures := 0
	for i := range rows {
		if i > 0 && sy.reseedEvery > 0 && i%sy.reseedEvery == 0 {
			engine.Reseed()
		}

		row := make(map[string]any, len(columns))
		for _, c := range columns {
			v, err := call(c.gen)
			if err == nil {
				v, err = normalize(v)
			}
			if err != nil {
				failures++
				sy.log.Debug("Field generation failed, using placeholder", "field", c.name, "row", i, "error", err)
				v = placeholder(c.name, i)
			}
			row[c.name] = v
		}
		data = append(data, row)
	}

	elapsed := time.Since(start)
	if failures > 0 {
		sy.log.Warn("Some values could not be generated", "placeholders", failures, "domain", s.Domain)
	}
	sy.log.Info("Synthesized dataset", "rows", rows, "fields", len(columns), "domain", s.Domain, "elapsed", elapsed)

	return Dataset{
		Rows:       data,
		FieldNames: s.Fields.Names(),
		RowCount:   len(data),
		Elapsed:    elapsed,
		Domain:     s.Domain,
	}, nil
}

func placeholder(field string, row int) string {
	return fmt.Sprintf("sample_%s_%d", field, row)
}

// call invokes g, turning panics into errors.
func call(g generator.Generator) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panicked: %v", r)
		}
	}()
	return g()
}

// normalize converts generated values into serialization-safe forms.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int, int64, float64:
		return x, nil
	case generator.Date:
		return x.String(), nil
	case time.Time:
		return x.Format(isoDateTime), nil
	case *apd.Decimal:
		return x.Float64()
	case apd.Decimal:
		return x.Float64()
	case float32:
		return float64(x), nil
	case fmt.Stringer:
		return x.String(), nil
	case []byte:
		return string(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}
