package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/synexpand/internal/backend"
	"github.com/Aman-CERP/synexpand/internal/config"
	"github.com/Aman-CERP/synexpand/internal/logging"
	"github.com/Aman-CERP/synexpand/internal/mcp"
	"github.com/Aman-CERP/synexpand/internal/source"
	"github.com/Aman-CERP/synexpand/internal/telemetry"
	"github.com/Aman-CERP/synexpand/internal/watcher"
)

type serveOptions struct {
	transport string
	docs      []string
	indexPath string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server. Clients get the rewrite_query and
explain_synonyms tools, plus search when documents or an index are given.

stdout carries JSON-RPC only; logs go to ~/.synexpand/logs/synexpand.log.
When synonyms.watch is set the dictionary file is watched and the cache
is dropped on every change.`,
		Example: `  # Serve over stdio
  synexpand serve

  # Also expose a search tool over local documents
  synexpand serve --docs docs.jsonl`,
		Args: cobra.NoArgs,
		// serve installs its own file-only logging.
		PersistentPreRunE: func(*cobra.Command, []string) error { return startProfiling() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: stdio (default: server.transport)")
	cmd.Flags().StringSliceVar(&opts.docs, "docs", nil, "JSON Lines document files to serve through the search tool")
	cmd.Flags().StringVar(&opts.indexPath, "index", "", "On-disk index served through the search tool (default: backend.index_path)")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if debugMode {
		if err := startLogging(nil, nil); err != nil {
			return err
		}
	} else {
		cleanup, err := logging.SetupServeMode(cfg.Server.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		loggingCleanup = cleanup
	}
	defer func() { _ = stopLogging(nil, nil) }()
	defer stopProfiling()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStack(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	srv, err := mcp.NewServer(st.rewriter, st.cache, cfg)
	if err != nil {
		return err
	}
	srv.SetLogger(slog.Default())

	if m, closeMetrics := openServeMetrics(cfg); m != nil {
		defer closeMetrics()
		srv.SetMetrics(m)
	}

	idx, err := openServeIndex(ctx, cfg, opts)
	if err != nil {
		return err
	}
	if idx != nil {
		defer func() { _ = idx.Close() }()
		srv.SetIndex(idx)
	}

	transport := opts.transport
	if transport == "" {
		transport = cfg.Server.Transport
	}

	g, gctx := errgroup.WithContext(ctx)
	if w := synonymsWatcher(cfg); w != nil {
		g.Go(func() error {
			err := w.Run(gctx, func(events []watcher.FileEvent) {
				slog.Info("synonyms_changed",
					slog.String("path", events[0].Path),
					slog.String("op", events[0].Operation.String()))
				st.cache.Invalidate()
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				// The server keeps running on the refresh interval alone.
				slog.Warn("synonyms_watch_stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	g.Go(func() error {
		slog.Info("serve_started",
			slog.String("transport", transport),
			slog.String("source", cfg.Synonyms.Source))
		err := srv.Serve(gctx, transport)
		stop()
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// synonymsWatcher returns a watcher for the dictionary file, or nil when
// watching is off or the source has no file.
func synonymsWatcher(cfg *config.Config) *watcher.FileWatcher {
	if !cfg.Synonyms.Watch || cfg.Synonyms.Path == "" || cfg.Synonyms.Source == source.KindBuiltin {
		return nil
	}
	debounce, err := cfg.WatchDebounce()
	if err != nil {
		slog.Warn("invalid watch_debounce, using default", slog.String("error", err.Error()))
		debounce = 0
	}
	w, err := watcher.New(watcher.Options{DebounceWindow: debounce}, cfg.Synonyms.Path)
	if err != nil {
		slog.Warn("synonyms_watch_unavailable", slog.String("error", err.Error()))
		return nil
	}
	w.SetLogger(slog.Default())
	slog.Info("synonyms_watch_started",
		slog.String("path", cfg.Synonyms.Path),
		slog.String("mode", w.Mode()))
	return w
}

// openServeIndex opens the search index when documents or an index path are
// configured. It returns nil when there is nothing to search.
func openServeIndex(ctx context.Context, cfg *config.Config, opts serveOptions) (*backend.Index, error) {
	path := opts.indexPath
	if path == "" {
		path = cfg.Backend.IndexPath
	}
	if path == "" && len(opts.docs) == 0 {
		return nil, nil
	}
	return openSearchIndex(ctx, cfg, searchOptions{docs: opts.docs, indexPath: path})
}

// openServeMetrics starts rewrite telemetry when telemetry.enabled is set.
// A store that cannot be opened disables telemetry with a warning.
func openServeMetrics(cfg *config.Config) (*telemetry.Metrics, func()) {
	if !cfg.Telemetry.Enabled {
		return nil, func() {}
	}
	store, err := telemetry.OpenSQLiteStore(cfg.TelemetryPath())
	if err != nil {
		slog.Warn("telemetry_unavailable", slog.String("error", err.Error()))
		return nil, func() {}
	}
	m := telemetry.New(store)
	slog.Info("telemetry_enabled", slog.String("path", cfg.TelemetryPath()))
	return m, func() {
		snap := m.Snapshot()
		slog.Info("telemetry_summary",
			slog.Int64("rewrites", snap.TotalRewrites),
			slog.Float64("expansion_rate", snap.ExpansionRate()),
			slog.Int64("exact_repeats", snap.ExactRepeatCount))
		if err := m.Close(); err != nil {
			slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
		}
		_ = store.Close()
	}
}
