package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
)

type rewriteOptions struct {
	body        string
	refresh     time.Duration
	unsupported bool
	pretty      bool
	summary     bool
}

func newRewriteCmd() *cobra.Command {
	var opts rewriteOptions

	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Expand an Elasticsearch search body with synonyms",
		Long: `Read an Elasticsearch search body and write it back with its free-text
query_string clause expanded with synonyms.

The clause is found either at the root of "query" or inside a bool query
as the should clause tagged "_name": "default_search". When nothing can be
rewritten the body is written back byte for byte.`,
		Example: `  # Rewrite a body from a file
  synexpand rewrite --body request.json

  # Rewrite from stdin, pretty-printed
  echo '{"query":{"query_string":{"query":"dagis"}}}' | synexpand rewrite --pretty

  # Force a reload of dictionaries older than a minute
  synexpand rewrite --body request.json --refresh 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRewrite(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.body, "body", "b", "-", "Search body file, or - for stdin")
	cmd.Flags().DurationVar(&opts.refresh, "refresh", 0, "Synonym refresh interval (default: synonyms.refresh_interval)")
	cmd.Flags().BoolVar(&opts.unsupported, "unsupported", false, "Treat the target index as having no synonym support")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print the rewritten body")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print the rewrite stage and partition to stderr")

	return cmd
}

func runRewrite(cmd *cobra.Command, opts rewriteOptions) error {
	body, err := readBody(cmd.InOrStdin(), opts.body)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := newStack(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	supported := cfg.Rewrite.SynonymsSupported && !opts.unsupported
	out, res, err := st.rewriter.RewriteBody(cmd.Context(), body, supported, opts.refresh)
	if err != nil {
		return err
	}

	if opts.summary {
		w := cmd.ErrOrStderr()
		fmt.Fprintf(w, "stage: %s\n", res.Stage)
		if res.Reason != "" {
			fmt.Fprintf(w, "reason: %s\n", res.Reason)
		}
		if len(res.Partition.ToExpand) > 0 {
			fmt.Fprintf(w, "expanded: %q\n", res.Partition.ToExpand)
		}
		if len(res.Partition.NotToExpand) > 0 {
			fmt.Fprintf(w, "kept: %q\n", res.Partition.NotToExpand)
		}
	}

	if opts.pretty {
		out = []byte(gjson.GetBytes(out, "@pretty").Raw)
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return err
	}
	if len(out) > 0 && out[len(out)-1] != '\n' {
		_, err = fmt.Fprintln(cmd.OutOrStdout())
	}
	return err
}

// readBody reads path, or r when path is "-".
func readBody(r io.Reader, path string) ([]byte, error) {
	if path == "-" || path == "" {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, synerrors.IOError("cannot read search body from stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, synerrors.New(synerrors.ErrCodeFileNotFound, "search body not found: "+path, err)
		}
		return nil, synerrors.IOError("cannot read search body: "+path, err)
	}
	return data, nil
}
