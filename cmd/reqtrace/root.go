package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/reqtrace"
	"github.com/aretw0/reqtrace/internal/config"
	"github.com/aretw0/reqtrace/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reqtrace",
	Short: "reqtrace is a selective per-request event tracer",
	Long: `reqtrace decides per HTTP request whether to trace it, captures the
events of matching requests and routes them to a callback in order.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "reqtrace.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}

// loaded is a configuration resolved into runnable profiles.
type loaded struct {
	cfg      config.Config
	logger   *slog.Logger
	profiles []reqtrace.Profile
	// callbacks maps profile names to their callback names.
	callbacks map[string]string
}

func load(cmd *cobra.Command) (*loaded, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		cfg.LogLevel = override
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), level)

	reg := reqtrace.DefaultRegistry(logger, cmd.OutOrStdout())
	resolved, err := cfg.Profiles(reg)
	if err != nil {
		return nil, err
	}

	l := &loaded{cfg: cfg, logger: logger, callbacks: make(map[string]string)}
	for i, p := range resolved {
		l.profiles = append(l.profiles, reqtrace.Profile{Name: p.Name, Spec: p.Spec, Callback: p.Callback})
		l.callbacks[p.Name] = cfg.Tracers[i].Callback
	}
	return l, nil
}
