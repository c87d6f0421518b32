package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/datasynth/datasynth/internal/constants"
	"github.com/datasynth/datasynth/internal/export"
	"github.com/datasynth/datasynth/internal/fileutils"
	"github.com/datasynth/datasynth/internal/ratelimit"
	"github.com/datasynth/datasynth/internal/schemagen"
	"github.com/datasynth/datasynth/internal/service"
	"github.com/datasynth/datasynth/internal/synth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type generateConfig struct {
	rows   int
	output string
	dir    string
}

func installGenerateCmd(app *App) {
	var conf generateConfig

	cmd := &cobra.Command{
		Use:   "generate DESCRIPTION",
		Short: "Generate a CSV dataset from a description",
		Long: `Generate a CSV dataset from a natural language description.

The dataset is written to the file named by --output, or to a name derived from the
description and the schema domain inside --dir. Use --output=- to write to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running generate command")
			return app.generateRun(cmd.Context(), args[0], conf)
		},
	}

	cmd.Flags().IntVarP(&conf.rows, "rows", "n", constants.DefaultRows, "number of rows to generate")
	cmd.Flags().StringVarP(&conf.output, "output", "o", "", "output file, - for stdout")
	cmd.Flags().StringVarP(&conf.dir, "dir", "d", ".", "directory receiving the dataset when --output is not set")

	if err := cmd.MarkFlagDirname("dir"); err != nil {
		panic(fmt.Sprintf("failed to mark dir flag as directory: %v", err))
	}

	app.cmd.AddCommand(cmd)
}

func (a App) generateRun(ctx context.Context, description string, conf generateConfig) error {
	log := slog.Default().With("run_id", uuid.NewString())

	svc, closeStore, err := a.newService(log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("Could not close the schema cache", "error", err)
		}
	}()

	res, err := svc.Generate(ctx, description, conf.rows)
	if err != nil {
		return err
	}

	out := a.cmd.OutOrStdout()
	if conf.output == "-" {
		_, err := out.Write(res.Document.Content)
		return err
	}

	path := conf.output
	if path == "" {
		path = filepath.Join(conf.dir, res.Document.Filename)
	}
	if err := fileutils.AtomicWrite(path, res.Document.Content); err != nil {
		return fmt.Errorf("could not write dataset: %v", err)
	}

	log.Info("Dataset written", "path", path, "rows", res.Document.RowCount, "schema", res.Schema.Source)
	_, err = fmt.Fprintf(out, "Wrote %d rows to %s\n", res.Document.RowCount, path)
	return err
}

// newService assembles the pipeline from the configuration.
// Cache failures degrade to running without a cache.
func (a App) newService(log *slog.Logger) (*service.Service, func() error, error) {
	client, err := a.newClient(log)
	if err != nil {
		return nil, nil, err
	}

	gov, err := ratelimit.New(a.config.Ratelimit.Minute, a.config.Ratelimit.Day, ratelimit.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}

	genOpts := []schemagen.Option{
		schemagen.WithLogger(log),
		schemagen.WithDescriptionLength(a.config.Description.Min, a.config.Description.Max),
		schemagen.WithMaxTokens(a.config.Provider.Tokens),
		schemagen.WithRetry(a.config.Provider.Attempts, a.config.Provider.Backoff),
	}

	store, closeStore, err := a.store(log)
	switch {
	case err == nil:
		genOpts = append(genOpts, schemagen.WithCache(store))
	case errors.Is(err, errCacheDisabled):
		log.Debug("Schema cache disabled")
	default:
		log.Warn("Schema cache unavailable, continuing without it", "error", err)
	}

	sy := synth.New(
		synth.WithLogger(log),
		synth.WithRowRange(a.config.Rows.Min, a.config.Rows.Max),
		synth.WithSeed(a.config.Seed),
	)

	svc := service.New(schemagen.New(client, gov, genOpts...), sy, export.New(export.WithLogger(log)), service.WithLogger(log))
	return svc, closeStore, nil
}
