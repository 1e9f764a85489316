// Package main provides the entry point for the ordmap CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordmap/cmd/ordmap/commands"
	"github.com/Sumatoshi-tech/ordmap/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	var global commands.GlobalFlags

	rootCmd := &cobra.Command{
		Use:   "ordmap",
		Short: "ordmap - arena-backed red-black tree ordered map",
		Long: `ordmap drives the ordered map engine from the command line.

Commands:
  load      Load key/value entries into a tree and print them in order
  bench     Run a randomized workload checked against a map oracle`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	global.Register(rootCmd)

	rootCmd.AddCommand(commands.NewLoadCommand(&global))
	rootCmd.AddCommand(commands.NewBenchCommand(&global))
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ordmap %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
