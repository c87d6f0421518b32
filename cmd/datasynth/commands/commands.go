// Package commands is the datasynth command line interface.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datasynth/datasynth/internal/cache"
	"github.com/datasynth/datasynth/internal/cli"
	"github.com/datasynth/datasynth/internal/constants"
	"github.com/datasynth/datasynth/internal/provider"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App is the datasynth command line application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	client  provider.Client
	stderr  io.Writer
	noCache bool
}

type appConfig struct {
	Verbosity int
	JSONLogs  bool
	Seed      uint64

	Cache       cacheConfig
	Ratelimit   ratelimitConfig
	Provider    providerConfig
	Rows        rangeConfig
	Description rangeConfig
}

type cacheConfig struct {
	Enabled bool
	Backend string
	Path    string
	Backup  string
}

type ratelimitConfig struct {
	Minute int
	Day    int
}

type providerConfig struct {
	Name        string
	Model       string
	Key         string
	URL         string
	Timeout     time.Duration
	Tokens      int
	Temperature float64
	Attempts    int
	Backoff     time.Duration
}

type rangeConfig struct {
	Min int
	Max int
}

type loggedConfig appConfig

// LogValue keeps the provider key out of the logs.
func (c appConfig) LogValue() slog.Value {
	if c.Provider.Key != "" {
		c.Provider.Key = "<redacted>"
	}
	return slog.AnyValue(loggedConfig(c))
}

type options struct {
	client provider.Client
}

// Options overrides App defaults.
type Options func(*options)

// New registers commands and returns a new App.
func New(args ...Options) (*App, error) {
	opts := options{}
	for _, opt := range args {
		opt(&opts)
	}

	a := App{client: opts.client, stderr: os.Stderr}
	a.cmd = &cobra.Command{
		Use:   constants.CmdName + " [COMMAND]",
		Short: "Generate synthetic tabular datasets from a description",
		Long: `Generate synthetic tabular datasets from a natural language description.

A field schema is requested from a text generation provider, cached under the
normalized description, and used to synthesize rows exported as CSV.`,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.stderr, a.config.Verbosity, a.config.JSONLogs)
			if err := cli.InitViperConfig(a.cmd, a.viper, constants.CmdName, constants.GetDefaultConfigPath(), "."); err != nil {
				return err
			}
			if err := cli.Unmarshal(a.viper, &a.config); err != nil {
				return err
			}
			if a.noCache {
				a.config.Cache.Enabled = false
			}
			cli.SetSlog(a.stderr, a.config.Verbosity, a.config.JSONLogs)
			slog.Debug("Got app config", "config", a.config)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	if err := installRootCmd(&a); err != nil {
		return nil, err
	}
	installGenerateCmd(&a)
	installSchemaCmd(&a)
	installCacheCmd(&a)
	installVersionCmd(&a)

	return &a, nil
}

func installRootCmd(app *App) error {
	cmd := app.cmd
	flags := cmd.PersistentFlags()

	flags.CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv) output")
	flags.BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")
	cli.InstallConfigFlag(cmd)

	flags.String("provider", constants.DefaultProvider, "schema provider: openai, anthropic or demo")
	flags.String("model", "", "provider model, defaults to the provider's default model")
	flags.String("cache-path", "", "path of the schema cache (default <user cache dir>/datasynth/schemas.json, or schemas.db for sqlite)")
	flags.String("cache-backend", "file", "schema cache backend: file or sqlite")
	flags.BoolVar(&app.noCache, "no-cache", false, "disable the schema cache")
	flags.Uint64("seed", constants.DefaultGeneratorSeed, "generator seed, 0 picks a random one")

	if err := cmd.MarkPersistentFlagFilename("cache-path"); err != nil {
		return fmt.Errorf("failed to mark cache-path flag as filename: %v", err)
	}

	bindings := map[string]string{
		"provider.name":  "provider",
		"provider.model": "model",
		"cache.path":     "cache-path",
		"cache.backend":  "cache-backend",
		"seed":           "seed",
	}
	for key, flag := range bindings {
		if err := app.viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("could not bind flag %s: %w", flag, err)
		}
	}
	app.viper.SetDefault("cache.enabled", true)
	app.viper.SetDefault("cache.backup", "")
	app.viper.SetDefault("ratelimit.minute", constants.DefaultRequestsPerMinute)
	app.viper.SetDefault("ratelimit.day", constants.DefaultRequestsPerDay)
	app.viper.SetDefault("provider.key", "")
	app.viper.SetDefault("provider.url", "")
	app.viper.SetDefault("provider.timeout", constants.DefaultTimeout)
	app.viper.SetDefault("provider.tokens", constants.DefaultMaxTokens)
	app.viper.SetDefault("provider.temperature", constants.DefaultTemperature)
	app.viper.SetDefault("provider.attempts", constants.DefaultMaxAttempts)
	app.viper.SetDefault("provider.backoff", constants.DefaultBaseBackoff)
	app.viper.SetDefault("rows.min", constants.DefaultMinRows)
	app.viper.SetDefault("rows.max", constants.DefaultMaxRows)
	app.viper.SetDefault("description.min", constants.DefaultMinDescriptionLength)
	app.viper.SetDefault("description.max", constants.DefaultMaxDescriptionLength)

	return nil
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

var (
	errMissingKey    = errors.New("an API key is required for this provider")
	errInvalidKey    = errors.New("OpenAI API keys must start with sk-")
	errCacheDisabled = errors.New("the schema cache is disabled")
	errUnknownStore  = errors.New("unknown cache backend")
)

// validateProvider checks the provider settings needed to request schemas.
func (c appConfig) validateProvider() error {
	name := strings.ToLower(c.Provider.Name)
	if name == provider.Demo {
		return nil
	}
	if c.Provider.Key == "" {
		return fmt.Errorf("%w: set provider.key or DATASYNTH_PROVIDER_KEY", errMissingKey)
	}
	if (name == provider.OpenAI || name == "") && !strings.HasPrefix(c.Provider.Key, "sk-") {
		return errInvalidKey
	}
	return nil
}

// store opens the configured schema cache. The returned close function is never nil.
func (a App) store(log *slog.Logger) (cache.Store, func() error, error) {
	noop := func() error { return nil }
	if !a.config.Cache.Enabled {
		return nil, noop, errCacheDisabled
	}

	opts := []cache.Option{cache.WithLogger(log)}
	if a.config.Cache.Backup != "" {
		opts = append(opts, cache.WithBackupPath(a.config.Cache.Backup))
	}

	path := a.config.Cache.Path
	switch strings.ToLower(a.config.Cache.Backend) {
	case "", "file":
		if path == "" {
			path = constants.GetDefaultCacheFile()
		}
		s, err := cache.NewFileStore(path, opts...)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "sqlite":
		if path == "" {
			path = filepath.Join(constants.GetDefaultCachePath(), constants.SQLiteFileName)
		}
		s, err := cache.NewSQLiteStore(path, opts...)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", errUnknownStore, a.config.Cache.Backend)
	}
}

// newClient returns the injected provider client or the configured one.
func (a App) newClient(log *slog.Logger) (provider.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if err := a.config.validateProvider(); err != nil {
		return nil, err
	}
	p := a.config.Provider
	return provider.New(provider.Config{
		Name:        p.Name,
		Model:       p.Model,
		Key:         p.Key,
		URL:         p.URL,
		Timeout:     p.Timeout,
		MaxTokens:   p.Tokens,
		Temperature: p.Temperature,
	}, provider.WithLogger(log))
}
