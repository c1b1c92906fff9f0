package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/synexpand/internal/backend"
	"github.com/Aman-CERP/synexpand/internal/config"
	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/output"
	"github.com/Aman-CERP/synexpand/internal/query"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	docs       []string
	indexPath  string
	limit      int
	fields     []string
	operator   string
	noSynonyms bool
	format     string
	refresh    time.Duration
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search local documents with synonym expansion",
		Long: `Search a local bleve index with the query expanded by synonyms.

Documents are JSON Lines files, one object per line; string members become
searchable fields and "id" names the document. Pass --docs to index them
for this run, or --index to use (and fill) an on-disk index.`,
		Example: `  synexpand search dagis --docs testdata/docs.jsonl
  synexpand search "Alloy tech now" --docs docs.jsonl --operator and
  synexpand search car --index .synexpand/index --field title -n 5
  synexpand search dagis --docs docs.jsonl --no-synonyms`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.docs, "docs", nil, "JSON Lines document files to index (repeatable)")
	cmd.Flags().StringVar(&opts.indexPath, "index", "", "On-disk index path (default: backend.index_path, else in memory)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: backend.max_results)")
	cmd.Flags().StringSliceVar(&opts.fields, "field", nil, "Fields to search, with optional ^boost (default: all fields)")
	cmd.Flags().StringVar(&opts.operator, "operator", "or", "Default operator between words: or, and")
	cmd.Flags().BoolVar(&opts.noSynonyms, "no-synonyms", false, "Search without synonym expansion")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().DurationVar(&opts.refresh, "refresh", 0, "Synonym refresh interval (default: synonyms.refresh_interval)")

	return cmd
}

// searchResult is the --format json rendering of a search.
type searchResult struct {
	Query     string          `json:"query"`
	Rewritten bool            `json:"rewritten"`
	Total     uint64          `json:"total"`
	Hits      []backend.Hit   `json:"hits"`
	Request   json.RawMessage `json:"request"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, text string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", opts.format)
	}
	slog.Info("search_started", slog.String("query", text), slog.Int("docs", len(opts.docs)))

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	idx, err := openSearchIndex(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	st, err := newStack(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	clause := query.NewText(text)
	clause.Attributes.Fields = opts.fields
	clause.Attributes.DefaultOperator = query.ParseOperator(opts.operator)
	req := &query.Request{
		SynonymsSupported: cfg.Rewrite.SynonymsSupported && !opts.noSynonyms,
		Query:             query.DefaultSearch(clause),
	}

	res, err := st.rewriter.Rewrite(ctx, req, opts.refresh)
	if err != nil {
		return err
	}

	limit := opts.limit
	if limit <= 0 {
		limit = cfg.Backend.MaxResults
	}
	if limit <= 0 {
		limit = backend.DefaultSize
	}
	hits, err := idx.SearchClause(ctx, res.Request.Query, limit, 0)
	if err != nil {
		return err
	}
	slog.Info("search_complete",
		slog.Bool("rewritten", res.Rewritten()),
		slog.Int("results", len(hits.Hits)))

	if opts.format == "json" {
		body, err := query.EncodeRequest(res.Request)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(searchResult{
			Query:     text,
			Rewritten: res.Rewritten(),
			Total:     hits.Total,
			Hits:      hits.Hits,
			Request:   body,
		})
	}

	printHits(output.New(cmd.OutOrStdout()), text, res.Rewritten(), hits)
	return nil
}

// openSearchIndex opens the configured index and loads --docs into it.
func openSearchIndex(ctx context.Context, cfg *config.Config, opts searchOptions) (*backend.Index, error) {
	path := opts.indexPath
	if path == "" {
		path = cfg.Backend.IndexPath
	}
	if path == "" && len(opts.docs) == 0 {
		return nil, synerrors.ValidationError("nothing to search", nil).
			WithSuggestion("Pass --docs file.jsonl or --index path, or set backend.index_path")
	}

	idx, err := backend.Open(path)
	if err != nil {
		return nil, err
	}
	idx.SetLogger(slog.Default())

	if len(opts.docs) > 0 {
		n, err := idx.LoadFiles(ctx, opts.docs...)
		if err != nil {
			_ = idx.Close()
			return nil, err
		}
		slog.Info("documents_indexed", slog.Int("count", n))
	}
	return idx, nil
}

func printHits(out *output.Writer, text string, rewritten bool, res *backend.Result) {
	if len(res.Hits) == 0 {
		out.Warningf("No results found for %q", text)
		return
	}

	note := ""
	if rewritten {
		note = " (expanded with synonyms)"
	}
	out.Successf("Found %d of %d results for %q%s", len(res.Hits), res.Total, text, note)
	out.Newline()

	for i, h := range res.Hits {
		out.Heading(fmt.Sprintf("%d. %s  (score %.3f)", i+1, h.ID, h.Score))
		keys := make([]string, 0, len(h.Fields))
		for k := range h.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out.KeyValue(k, fmt.Sprint(h.Fields[k]))
		}
	}
}
