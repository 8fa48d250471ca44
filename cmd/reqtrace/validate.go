package main

import (
	"fmt"
	"io"

	"github.com/aretw0/reqtrace/pkg/match"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	Long:  `Loads the configuration, resolves every tracer's callback and match list, and prints them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := load(cmd)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		printProfiles(cmd.OutOrStdout(), l)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func printProfiles(w io.Writer, l *loaded) {
	fmt.Fprintf(w, "%d tracer(s) configured\n", len(l.profiles))
	for _, p := range l.profiles {
		fmt.Fprintf(w, "  %s -> %s\n      when %s\n", p.Name, l.callbacks[p.Name], match.Describe(p.Spec))
	}
}
