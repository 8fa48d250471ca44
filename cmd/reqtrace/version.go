package main

import (
	"fmt"

	"github.com/aretw0/reqtrace"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of reqtrace",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reqtrace version %s\n", reqtrace.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
