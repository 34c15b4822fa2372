package cli

import (
	"fmt"

	"github.com/qivr/analytics-etl/internal/buildconfig"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version and commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "etl %s (commit %s)\n", buildconfig.Version(), buildconfig.Commit())
			return err
		},
	}
}
