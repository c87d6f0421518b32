package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func installSchemaCmd(app *App) {
	cmd := &cobra.Command{
		Use:   "schema DESCRIPTION",
		Short: "Print the field schema for a description",
		Long: `Print the field schema for a description as YAML.

The schema is read from the cache when available, otherwise it is requested from the provider and cached.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("Running schema command")
			return app.schemaRun(cmd.Context(), args[0])
		},
	}

	app.cmd.AddCommand(cmd)
}

func (a App) schemaRun(ctx context.Context, description string) error {
	log := slog.Default()

	svc, closeStore, err := a.newService(log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("Could not close the schema cache", "error", err)
		}
	}()

	res, err := svc.Schema(ctx, description)
	if err != nil {
		return err
	}

	d, err := yaml.Marshal(res.Schema)
	if err != nil {
		return fmt.Errorf("could not encode schema: %v", err)
	}
	log.Debug("Schema acquired", "source", res.Source, "key", res.Key)

	_, err = a.cmd.OutOrStdout().Write(d)
	return err
}
