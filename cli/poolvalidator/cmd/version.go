package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/poolvalidator/internal/debug"
)

// version is set by the linker: -ldflags "-X .../cli/poolvalidator/cmd.version=v1.0.0"
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints version of the pool validator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "poolvalidator %s %s\n", version, debug.ReadBuildInfo())
		},
	}
}
