package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "saidata-gen version %s\n", version)
		fmt.Fprintf(out, "build time: %s\n", buildTime)
		fmt.Fprintf(out, "git commit: %s\n", gitCommit)
	},
}
