// Package export renders synthesized datasets as CSV documents.
package export

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/datasynth/datasynth/internal/apperr"
	"github.com/datasynth/datasynth/internal/synth"
)

// ContentType is the media type of exported documents.
const ContentType = "text/csv; charset=utf-8"

// Document is an exported dataset.
type Document struct {
	Content  []byte
	Filename string
	RowCount int
}

// Exporter renders datasets.
type Exporter struct {
	now func() time.Time
	log *slog.Logger
}

type options struct {
	now func() time.Time
	log *slog.Logger
}

// Option overrides Exporter defaults.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns an Exporter.
func New(args ...Option) Exporter {
	opts := options{
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}
	return Exporter{now: opts.now, log: opts.log}
}

// Export renders ds as CSV, naming the document after description and the dataset domain.
func (e Exporter) Export(ds synth.Dataset, description string) (Document, error) {
	content, err := CSV(ds)
	if err != nil {
		return Document{}, err
	}

	name := e.Filename(description, ds.Domain)
	e.log.Debug("Exported dataset", "file", name, "rows", len(ds.Rows), "bytes", len(content))
	return Document{Content: content, Filename: name, RowCount: len(ds.Rows)}, nil
}

// CSV renders ds with a header row in field order. Every field is quoted and lines end with \n.
// Rows must carry exactly the declared fields.
func CSV(ds synth.Dataset) ([]byte, error) {
	if len(ds.Rows) == 0 {
		return nil, apperr.Newf(apperr.KindValidation, "dataset contains no data records")
	}
	if len(ds.FieldNames) == 0 {
		return nil, apperr.Newf(apperr.KindValidation, "dataset contains no field names")
	}
	if ds.RowCount != 0 && ds.RowCount != len(ds.Rows) {
		return nil, apperr.Newf(apperr.KindValidation, "row count mismatch: dataset has %d rows, expected %d", len(ds.Rows), ds.RowCount)
	}

	var buf bytes.Buffer
	w := newQuotingWriter(&buf)
	if err := w.Write(ds.FieldNames); err != nil {
		return nil, fmt.Errorf("could not write header: %v", err)
	}

	record := make([]string, len(ds.FieldNames))
	for i, row := range ds.Rows {
		if err := checkColumns(row, ds.FieldNames); err != nil {
			return nil, apperr.Newf(apperr.KindValidation, "row %d: %w", i, err)
		}
		for j, name := range ds.FieldNames {
			record[j] = formatValue(row[name])
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("could not write row %d: %v", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("could not flush CSV: %v", err)
	}
	return buf.Bytes(), nil
}

func checkColumns(row map[string]any, names []string) error {
	var missing, extra []string
	for _, n := range names {
		if _, ok := row[n]; !ok {
			missing = append(missing, n)
		}
	}
	for k := range row {
		if !slices.Contains(names, k) {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	slices.Sort(extra)
	return fmt.Errorf("column mismatch: missing %v, extra %v", missing, extra)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// quotingWriter writes CSV records with every field quoted.
type quotingWriter struct {
	w *bufio.Writer
}

func newQuotingWriter(buf *bytes.Buffer) *quotingWriter {
	return &quotingWriter{w: bufio.NewWriter(buf)}
}

func (q *quotingWriter) Write(record []string) error {
	for i, field := range record {
		if i > 0 {
			if err := q.w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := q.w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return q.w.WriteByte('\n')
}

func (q *quotingWriter) Flush() error {
	return q.w.Flush()
}
