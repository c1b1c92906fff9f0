package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/synexpand/internal/output"
	"github.com/Aman-CERP/synexpand/internal/telemetry"
)

type statsOptions struct {
	days       int
	limit      int
	path       string
	jsonOutput bool
}

func newStatsCmd() *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show rewrite telemetry",
		Long: `Show how queries were rewritten while serving: outcomes, the most
expanded phrases, recent queries no synonym matched, and rewrite latency.

Telemetry is recorded locally by 'synexpand serve' when telemetry.enabled
is set in the configuration.`,
		Example: `  # Last 7 days
  synexpand stats

  # Last 30 days as JSON
  synexpand stats --days 30 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.days, "days", 7, "Number of days to report, including today")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum phrases and queries to list")
	cmd.Flags().StringVar(&opts.path, "db", "", "Telemetry database (default: telemetry.path)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, opts statsOptions) error {
	path := opts.path
	if path == "" {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.TelemetryPath()
	}

	out := output.New(cmd.OutOrStdout())
	if _, err := os.Stat(path); err != nil {
		out.Warningf("No telemetry recorded yet")
		out.Status("📁", "Expected at: "+path)
		out.Status("💡", "Set telemetry.enabled: true and run 'synexpand serve'")
		return nil
	}

	store, err := telemetry.OpenSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap, err := telemetry.Report(store, opts.days, opts.limit, time.Now())
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	printStats(out, snap, opts.days)
	return nil
}

func printStats(out *output.Writer, snap *telemetry.Snapshot, days int) {
	out.Heading(fmt.Sprintf("Rewrites over the last %d day(s): %d", max(days, 1), snap.TotalRewrites))

	outcomes := make([]string, 0, len(snap.OutcomeCounts))
	for k := range snap.OutcomeCounts {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	for _, k := range outcomes {
		out.KeyValue(k, fmt.Sprintf("%d", snap.OutcomeCounts[k]))
	}

	out.Newline()
	out.Heading("Latency")
	for _, b := range telemetry.Buckets {
		if n := snap.LatencyDistribution[b]; n > 0 {
			out.KeyValue(string(b), fmt.Sprintf("%d", n))
		}
	}

	out.Newline()
	out.Heading("Most expanded phrases")
	phrases := make([]string, 0, len(snap.TopPhrases))
	for _, p := range snap.TopPhrases {
		phrases = append(phrases, fmt.Sprintf("%s (%d)", p.Phrase, p.Count))
	}
	out.List(phrases)

	out.Newline()
	out.Heading("Recent queries without synonyms")
	out.List(snap.UnexpandedQueries)
}
