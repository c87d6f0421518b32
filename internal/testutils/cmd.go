// Package testutils provides helper functions for testing.
package testutils

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FlagCase describes how a flag is expected to be declared on a command.
type FlagCase struct {
	Name       string
	Short      string
	Default    string
	Persistent bool
	Dirname    bool
}

// RequireFlag asserts that cmd declares the flag described by want.
func RequireFlag(t *testing.T, cmd *cobra.Command, want FlagCase) {
	t.Helper()

	var flag *pflag.Flag
	if want.Persistent {
		flag = cmd.PersistentFlags().Lookup(want.Name)
	} else {
		flag = cmd.Flags().Lookup(want.Name)
	}
	require.NotNil(t, flag, "Flag %q should be declared", want.Name)

	assert.Equal(t, want.Short, flag.Shorthand, "Unexpected shorthand")
	assert.Equal(t, want.Default, flag.DefValue, "Unexpected default value")

	if want.Dirname {
		assert.Equal(t, []string{}, flag.Annotations[cobra.BashCompSubdirsInDir], "Flag should complete directories")
	} else {
		assert.Nil(t, flag.Annotations[cobra.BashCompSubdirsInDir], "Flag should not complete directories")
	}
}
