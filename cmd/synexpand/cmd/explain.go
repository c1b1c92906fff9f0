package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/synexpand/internal/output"
	"github.com/Aman-CERP/synexpand/internal/rewrite"
)

type explainOptions struct {
	format  string
	refresh time.Duration
}

// explainJSON is the --format json rendering of a plan.
type explainJSON struct {
	Query       string              `json:"query"`
	Terms       []string            `json:"terms"`
	Variations  []string            `json:"variations"`
	ToExpand    []string            `json:"to_expand"`
	NotToExpand []string            `json:"not_to_expand"`
	Fragments   []string            `json:"fragments"`
	Remainder   string              `json:"remainder,omitempty"`
	Expanded    string              `json:"expanded,omitempty"`
	Synonyms    map[string][]string `json:"synonyms,omitempty"`
}

func newExplainCmd() *cobra.Command {
	var opts explainOptions

	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Show how a query would be expanded",
		Long: `Run the expansion pipeline on a raw query and print each step: the
terms, every contiguous phrase considered, which phrases have synonyms,
and the query_string text of the expanded and remaining clauses.`,
		Example: `  synexpand explain "Alloy tech now"
  synexpand explain dagis --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().DurationVar(&opts.refresh, "refresh", 0, "Synonym refresh interval (default: synonyms.refresh_interval)")

	return cmd
}

func runExplain(cmd *cobra.Command, text string, opts explainOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", opts.format)
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

	plan, err := st.rewriter.Explain(cmd.Context(), text, opts.refresh)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(toExplainJSON(plan))
	}

	printPlan(output.New(cmd.OutOrStdout()), plan)
	return nil
}

func toExplainJSON(p *rewrite.Plan) explainJSON {
	out := explainJSON{
		Query:       p.Query,
		Terms:       nonNil(p.Terms),
		Variations:  make([]string, 0, len(p.Variations)),
		ToExpand:    nonNil(p.Partition.ToExpand),
		NotToExpand: nonNil(p.Partition.NotToExpand),
		Fragments:   nonNil(p.Fragments),
		Remainder:   p.Remainder,
		Expanded:    p.Expanded,
		Synonyms:    p.Synonyms,
	}
	for _, v := range p.Variations {
		out.Variations = append(out.Variations, v.Phrase)
	}
	return out
}

func printPlan(out *output.Writer, p *rewrite.Plan) {
	out.Heading("Query")
	out.KeyValue("text", p.Query)
	out.KeyValue("terms", fmt.Sprintf("%q", p.Terms))
	out.KeyValue("variations", fmt.Sprintf("%d", len(p.Variations)))
	out.Newline()

	out.Heading("Partition")
	if len(p.Partition.ToExpand) == 0 {
		out.Warningf("No phrase has synonyms")
	}
	for _, phrase := range p.Partition.ToExpand {
		out.KeyValue(phrase, strings.Join(p.Synonyms[phrase], ", "))
	}
	if len(p.Partition.NotToExpand) > 0 {
		out.Line("Kept as typed:")
		out.List(p.Partition.NotToExpand)
	}
	out.Newline()

	out.Heading("Clauses")
	if p.Remainder != "" {
		out.Line("Remainder:")
		out.Code(p.Remainder)
	}
	if p.Expanded != "" {
		out.Line("Expanded:")
		out.Code(p.Expanded)
	}
	if p.Remainder == "" && p.Expanded == "" {
		out.Line("(query is empty)")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
