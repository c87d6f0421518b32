package commands

import (
	"fmt"

	"github.com/datasynth/datasynth/internal/constants"
	"github.com/spf13/cobra"
)

func installVersionCmd(app *App) {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Returns the running version of " + constants.CmdName + " and exits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(app.cmd.OutOrStdout(), "%s\t%s\n", constants.CmdName, constants.Version)
			return err
		},
	}
	app.cmd.AddCommand(cmd)
}
