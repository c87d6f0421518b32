// Main package for the datasynth command line tool.
package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/datasynth/datasynth/cmd/datasynth/commands"
	"github.com/datasynth/datasynth/internal/apperr"
	"github.com/datasynth/datasynth/internal/constants"
)

func main() {
	slog.SetLogLoggerLevel(constants.DefaultLogLevel)

	a, err := commands.New()
	if err != nil {
		os.Exit(1)
	}

	os.Exit(run(a))
}

type app interface {
	Run() error
	UsageError() bool
}

func run(a app) int {
	if err := a.Run(); err != nil {
		var e *apperr.Error
		if errors.As(err, &e) {
			attrs := []any{"kind", e.Kind}
			for k, v := range e.Details {
				attrs = append(attrs, k, v)
			}
			slog.Error(e.Message, attrs...)
		} else {
			slog.Error(err.Error())
		}

		if a.UsageError() {
			return 2
		}
		return 1
	}

	return 0
}
