package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information - can be set during build with ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information for jobapplicator",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "jobapplicator version %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", GitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", BuildDate)
	},
}
