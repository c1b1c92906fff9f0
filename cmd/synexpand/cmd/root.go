// Package cmd provides the CLI commands for synexpand.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/synexpand/internal/logging"
	"github.com/Aman-CERP/synexpand/internal/profiling"
	"github.com/Aman-CERP/synexpand/pkg/version"
)

// Global flags
var (
	debugMode      bool
	configFile     string
	loggingCleanup func()

	profileOpts profiling.Options
	profiler    *profiling.Session
)

// Debug reports whether --debug was set on the last run.
func Debug() bool {
	return debugMode
}

// NewRootCmd creates the root command for the synexpand CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synexpand",
		Short: "Synonym expansion for free-text search queries",
		Long: `synexpand rewrites the free-text clause of a search request so that
phrases with known synonyms also match their synonyms.

It works on Elasticsearch search bodies, explains how a query would be
expanded, searches a local document index with the expanded query, and
serves the rewriter to AI clients over MCP.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("synexpand version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.synexpand/logs/")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (default: .synexpand.yaml in the project root)")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "memprofile", "", "Write a heap profile to this file on exit")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "trace", "", "Write an execution trace to this file")
	for _, name := range []string{"cpuprofile", "memprofile", "trace"} {
		_ = cmd.PersistentFlags().MarkHidden(name)
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := startLogging(cmd, args); err != nil {
			return err
		}
		return startProfiling()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		stopProfiling()
		return stopLogging(cmd, args)
	}

	cmd.AddCommand(newRewriteCmd())
	cmd.AddCommand(newExplainCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSynonymsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the CLI logger: warnings to stderr, or everything to
// the log file and stderr with --debug.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("Debug logging enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("version", version.Version))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// startProfiling starts the profiles requested with the hidden profiling
// flags.
func startProfiling() error {
	if !profileOpts.Enabled() {
		return nil
	}
	session, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profiler = session
	return nil
}

func stopProfiling() {
	if profiler == nil {
		return
	}
	if err := profiler.Stop(); err != nil {
		slog.Warn("failed to write profiles", slog.String("error", err.Error()))
	}
	slog.Debug("profiles_written",
		slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))
	profiler = nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
