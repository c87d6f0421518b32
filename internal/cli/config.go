// Package cli holds the configuration and logging plumbing shared by the commands.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// InitViperConfig loads the configuration of cmd into vip.
//
// The file named by the --config flag wins. Otherwise <name>.{yaml,toml,json,...} is looked up in dirs,
// first match wins. A missing file is not an error.
// Environment variables prefixed by the upper-cased name override the file, with "_" separating key levels:
// DATASYNTH_RATELIMIT_MINUTE sets ratelimit.minute.
func InitViperConfig(cmd *cobra.Command, vip *viper.Viper, name string, dirs ...string) error {
	if f, err := cmd.Flags().GetString("config"); err == nil && f != "" {
		vip.SetConfigFile(f)
	} else {
		vip.SetConfigName(name)
		for _, d := range dirs {
			vip.AddConfigPath(d)
		}
	}

	err := vip.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(err, &notFound):
		slog.Debug("No configuration file, using defaults, environment and flags", "dirs", dirs)
	case err != nil:
		return fmt.Errorf("invalid configuration file: %w", err)
	default:
		slog.Info("Using configuration file", "file", vip.ConfigFileUsed())
	}

	return bindEnv(vip, name)
}

// bindEnv binds every environment variable carrying the prefix of name, so that Unmarshal sees keys
// which have no default. See https://github.com/spf13/viper/pull/1429.
func bindEnv(vip *viper.Viper, name string) error {
	vip.SetEnvPrefix(name)
	vip.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	vip.AutomaticEnv()

	prefix := strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_"
	for _, e := range os.Environ() {
		env, _, _ := strings.Cut(e, "=")
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(env, prefix)), "_", ".")
		if err := vip.BindEnv(key, env); err != nil {
			return fmt.Errorf("could not bind environment variable %s: %w", env, err)
		}
	}
	return nil
}

// InstallConfigFlag adds the persistent --config flag to cmd.
func InstallConfigFlag(cmd *cobra.Command) *string {
	return cmd.PersistentFlags().String("config", "", "use a specific configuration file")
}

// Unmarshal decodes the viper state into target. Duration strings such as "30s" and comma separated lists
// are converted.
func Unmarshal(vip *viper.Viper, target any) error {
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := vip.Unmarshal(target, hook); err != nil {
		return fmt.Errorf("unable to decode configuration: %w", err)
	}
	return nil
}
