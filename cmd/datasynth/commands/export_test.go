package commands

import (
	"io"

	"github.com/datasynth/datasynth/internal/provider"
)

type (
	AppConfig = appConfig
)

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}

// WithProvider replaces the configured provider client.
func WithProvider(c provider.Client) Options {
	return func(o *options) {
		o.client = c
	}
}

// SetArgs sets the arguments for the command.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// SetOutput redirects the command output and the logs.
func (a *App) SetOutput(stdout, stderr io.Writer) {
	a.cmd.SetOut(stdout)
	a.cmd.SetErr(stderr)
	a.stderr = stderr
}
