// Package service runs the dataset pipeline: schema acquisition, row synthesis and export.
package service

import (
	"context"
	"log/slog"

	"github.com/datasynth/datasynth/internal/apperr"
	"github.com/datasynth/datasynth/internal/export"
	"github.com/datasynth/datasynth/internal/schema"
	"github.com/datasynth/datasynth/internal/schemagen"
	"github.com/datasynth/datasynth/internal/synth"
)

// acquirer returns the schema for a description, see schemagen.Generator.
type acquirer interface {
	Generate(ctx context.Context, description string) (schemagen.Result, error)
}

// Result is the outcome of a pipeline run.
type Result struct {
	Schema   schemagen.Result
	Dataset  synth.Dataset
	Document export.Document
}

// Service wires the pipeline stages together.
type Service struct {
	schemas     acquirer
	synthesizer *synth.Synthesizer
	exporter    export.Exporter
	log         *slog.Logger
}

type options struct {
	log *slog.Logger
}

// Option overrides Service defaults.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns a Service.
func New(schemas acquirer, synthesizer *synth.Synthesizer, exporter export.Exporter, args ...Option) *Service {
	opts := options{log: slog.Default()}
	for _, opt := range args {
		opt(&opts)
	}
	return &Service{schemas: schemas, synthesizer: synthesizer, exporter: exporter, log: opts.log}
}

// Schema acquires the schema for description.
func (s *Service) Schema(ctx context.Context, description string) (schemagen.Result, error) {
	res, err := s.schemas.Generate(ctx, description)
	return res, sanitize(err)
}

// Generate runs the whole pipeline for description, producing rows rows.
// The row count is checked before any schema is acquired.
// Errors are always *apperr.Error values.
func (s *Service) Generate(ctx context.Context, description string, rows int) (Result, error) {
	if err := s.synthesizer.ValidateRows(rows); err != nil {
		return Result{}, sanitize(err)
	}

	res, err := s.schemas.Generate(ctx, description)
	if err != nil {
		return Result{}, sanitize(err)
	}
	s.log.Debug("Schema acquired", "source", res.Source, "key", res.Key)

	r, err := s.FromSchema(res.Schema, description, rows)
	if err != nil {
		return Result{}, err
	}
	r.Schema = res
	return r, nil
}

// FromSchema synthesizes and exports rows rows from an already known schema.
func (s *Service) FromSchema(sc schema.Schema, description string, rows int) (Result, error) {
	ds, err := s.synthesizer.Synthesize(sc, rows)
	if err != nil {
		return Result{}, sanitize(err)
	}

	doc, err := s.exporter.Export(ds, description)
	if err != nil {
		return Result{}, sanitize(err)
	}

	s.log.Info("Dataset ready", "file", doc.Filename, "rows", doc.RowCount, "domain", ds.Domain)
	return Result{Dataset: ds, Document: doc}, nil
}

// sanitize keeps nil errors nil.
func sanitize(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Sanitize(err)
}
