// Package cli is the repscan command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRoot builds the root command.
func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "repscan",
		Short:         "repscan: rate-limited URL reputation scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("repscan {{.Version}}\n")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newMockProviderCmd())
	cmd.AddCommand(newVersionCmd(version))

	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "repscan %s\n", version)
			return err
		},
	}
}
