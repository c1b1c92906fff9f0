package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/synexpand/internal/mcp"
	"github.com/Aman-CERP/synexpand/internal/output"
	"github.com/Aman-CERP/synexpand/internal/validation"
)

type validateOptions struct {
	docs       []string
	indexPath  string
	jsonOutput bool
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate <cases.yaml>",
		Short: "Check the dictionary against a suite of expected expansions",
		Long: `Run data-driven validation cases through the MCP tools.

Cases are grouped in three sections:
  expansion  every expected phrase must be expanded
  search     at least one expected document id must be found (needs --docs or --index)
  negative   the query only has to be handled without a crash

The command fails when any case that ran did not pass.`,
		Example: `  synexpand validate synonyms.test.yaml
  synexpand validate cases.yaml --docs docs.jsonl --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.docs, "docs", nil, "JSON Lines document files for search cases")
	cmd.Flags().StringVar(&opts.indexPath, "index", "", "On-disk index for search cases (default: backend.index_path)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runValidate(cmd *cobra.Command, path string, opts validateOptions) error {
	cases, err := validation.LoadQueries(path)
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

	srv, err := mcp.NewServer(st.rewriter, st.cache, cfg)
	if err != nil {
		return err
	}
	srv.SetLogger(slog.Default())

	idx, err := openServeIndex(cmd.Context(), cfg, serveOptions{docs: opts.docs, indexPath: opts.indexPath})
	if err != nil {
		return err
	}
	if idx != nil {
		defer func() { _ = idx.Close() }()
		srv.SetIndex(idx)
	}

	v, err := validation.NewValidator(srv)
	if err != nil {
		return err
	}
	res := v.RunAll(cmd.Context(), cases)

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printValidation(output.New(cmd.OutOrStdout()), res)
	}

	if n := res.Failed(); n > 0 {
		return fmt.Errorf("validation failed: %d case(s) did not pass", n)
	}
	return nil
}

func printValidation(out *output.Writer, res *validation.ValidationResult) {
	sections := []struct {
		title   string
		results []validation.TestResult
	}{
		{"Expansion", res.Expansion},
		{"Search", res.Search},
		{"Negative", res.Negative},
	}
	for _, sec := range sections {
		if len(sec.results) == 0 {
			continue
		}
		out.Heading(sec.title)
		for _, tr := range sec.results {
			label := tr.Spec.ID
			if tr.Spec.Name != "" {
				label += " " + tr.Spec.Name
			}
			switch {
			case tr.Skipped:
				out.Status("-", label+" (skipped, no index)")
			case tr.Passed:
				out.Successf("%s", label)
			case tr.Error != "":
				out.Errorf("%s: %s", label, tr.Error)
			default:
				out.Errorf("%s: expected %s, got %s", label,
					strings.Join(tr.Spec.Expected, ", "), strings.Join(tr.TopResults, ", "))
			}
		}
		out.Newline()
	}

	out.KeyValue("expansion", fmt.Sprintf("%d/%d", res.ExpansionPass, res.ExpansionTotal))
	out.KeyValue("search", fmt.Sprintf("%d/%d (%d skipped)", res.SearchPass, res.SearchTotal, res.SearchSkipped))
	out.KeyValue("negative", fmt.Sprintf("%d/%d", res.NegPass, res.NegTotal))
}
