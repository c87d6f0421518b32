package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/datasynth/datasynth/internal/cache"
	"github.com/datasynth/datasynth/internal/contentkey"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errNotCached = errors.New("no schema cached under this key")

type cacheStats struct {
	Enabled     bool `yaml:"enabled"`
	Healthy     bool `yaml:"healthy"`
	cache.Stats `yaml:",inline"`
}

func installCacheCmd(app *App) {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the schema cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print cache statistics and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.withStore(func(s cache.Store) error {
				return app.printYAML(cacheStats{Enabled: true, Healthy: s.Healthy(), Stats: s.Stats()})
			})
			if errors.Is(err, errCacheDisabled) {
				return app.printYAML(cacheStats{Enabled: false})
			}
			return err
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached content keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(s cache.Store) error {
				keys, err := s.Keys()
				if err != nil {
					return err
				}
				for _, k := range keys {
					if _, err := fmt.Fprintln(app.cmd.OutOrStdout(), k); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "show KEY",
		Short: "Print the schema cached under a content key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(s cache.Store) error {
				sc, ok, err := s.Get(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", errNotCached, args[0])
				}
				return app.printYAML(sc)
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached schema",
		Long:  "Remove every cached schema. The file backend keeps the previous content in its backup file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(s cache.Store) error {
				if err := s.Clear(); err != nil {
					return err
				}
				slog.Info("Schema cache cleared")
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "key DESCRIPTION",
		Short: "Print the content key of a description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := contentkey.Generate(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(app.cmd.OutOrStdout(), key)
			return err
		},
	})

	app.cmd.AddCommand(cacheCmd)
}

// withStore opens the configured cache for f.
func (a App) withStore(f func(cache.Store) error) (err error) {
	s, closeStore, err := a.store(slog.Default())
	if errors.Is(err, errCacheDisabled) {
		return err
	}
	if err != nil {
		return fmt.Errorf("could not open the schema cache: %w", err)
	}
	defer func() {
		err = errors.Join(err, closeStore())
	}()

	return f(s)
}

func (a App) printYAML(v any) error {
	d, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode output: %v", err)
	}
	_, err = a.cmd.OutOrStdout().Write(d)
	return err
}
