// Package validation runs data-driven checks of a synonym dictionary through
// the MCP server interface: which phrases a query expands, which documents
// the expanded query finds, and that malformed input fails cleanly.
//
// Cases are loaded from YAML, so a dictionary can ship with its own
// regression suite and be checked with 'synexpand validate' after every
// edit without rebuilding anything.
package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/mcp"
	"github.com/Aman-CERP/synexpand/internal/query"
)

// Kind groups cases by what they check.
type Kind string

const (
	// KindExpansion cases list phrases that must all be expanded.
	KindExpansion Kind = "expansion"
	// KindSearch cases list document ids of which at least one must be found.
	KindSearch Kind = "search"
	// KindNegative cases only need to complete without a crash.
	KindNegative Kind = "negative"
)

// QuerySpec defines a test query with expected results.
type QuerySpec struct {
	ID       string   `yaml:"id" json:"id"`             // e.g., "E3"
	Name     string   `yaml:"name" json:"name"`         // Human-readable name
	Query    string   `yaml:"query" json:"query"`       // The raw free-text query
	Expected []string `yaml:"expected" json:"expected"` // Phrases or document ids
	Notes    string   `yaml:"notes,omitempty" json:"notes,omitempty"`
	Kind     Kind     `yaml:"-" json:"kind"` // Set from the section
}

// QueryConfig holds all validation queries loaded from YAML.
type QueryConfig struct {
	Expansion []QuerySpec `yaml:"expansion"`
	Search    []QuerySpec `yaml:"search"`
	Negative  []QuerySpec `yaml:"negative"`
}

// Len returns the number of cases.
func (c *QueryConfig) Len() int {
	return len(c.Expansion) + len(c.Search) + len(c.Negative)
}

// LoadQueries reads validation cases from path.
func LoadQueries(path string) (*QueryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, synerrors.New(synerrors.ErrCodeFileNotFound, "validation cases not found: "+path, err)
		}
		return nil, synerrors.IOError("cannot read validation cases: "+path, err)
	}
	cfg, err := ParseQueries(data)
	if err != nil {
		var se *synerrors.SynError
		if errors.As(err, &se) {
			se.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// ParseQueries decodes validation cases and fills in their kinds. Every case
// needs an id and, outside the negative section, at least one expectation.
func ParseQueries(data []byte) (*QueryConfig, error) {
	var cfg QueryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, synerrors.ValidationError("invalid validation cases YAML: "+err.Error(), err)
	}

	sections := []struct {
		kind  Kind
		specs []QuerySpec
	}{
		{KindExpansion, cfg.Expansion},
		{KindSearch, cfg.Search},
		{KindNegative, cfg.Negative},
	}
	for _, sec := range sections {
		for i := range sec.specs {
			spec := &sec.specs[i]
			spec.Kind = sec.kind
			if spec.ID == "" {
				return nil, synerrors.ValidationError(fmt.Sprintf("%s case %d has no id", sec.kind, i+1), nil)
			}
			if sec.kind != KindNegative && len(spec.Expected) == 0 {
				return nil, synerrors.ValidationError(fmt.Sprintf("case %s expects nothing", spec.ID), nil).
					WithSuggestion("List expected phrases or document ids, or move the case under negative")
			}
		}
	}
	return &cfg, nil
}

// TestResult captures the outcome of a single query test.
type TestResult struct {
	Spec       QuerySpec     `json:"spec"`
	Passed     bool          `json:"passed"`
	Skipped    bool          `json:"skipped,omitempty"`
	Duration   time.Duration `json:"duration_ms"`
	TopResults []string      `json:"top_results"` // Expanded phrases or hit ids
	MatchedAt  int           `json:"matched_at"`  // Position of first match (-1 if not found)
	Error      string        `json:"error,omitempty"`
}

// ValidationResult captures results of a full validation run.
type ValidationResult struct {
	Timestamp      time.Time    `json:"timestamp"`
	Expansion      []TestResult `json:"expansion"`
	Search         []TestResult `json:"search"`
	Negative       []TestResult `json:"negative"`
	ExpansionPass  int          `json:"expansion_pass"`
	ExpansionTotal int          `json:"expansion_total"`
	SearchPass     int          `json:"search_pass"`
	SearchTotal    int          `json:"search_total"`
	SearchSkipped  int          `json:"search_skipped"`
	NegPass        int          `json:"negative_pass"`
	NegTotal       int          `json:"negative_total"`
}

// Failed returns the number of cases that ran and did not pass.
func (r *ValidationResult) Failed() int {
	ran := r.ExpansionTotal + (r.SearchTotal - r.SearchSkipped) + r.NegTotal
	return ran - r.ExpansionPass - r.SearchPass - r.NegPass
}

// Validator runs validation queries against an MCP server.
type Validator struct {
	server *mcp.Server
	limit  int
}

// NewValidator creates a validator. Search cases run only when the server
// has an index attached.
func NewValidator(server *mcp.Server) (*Validator, error) {
	if server == nil {
		return nil, fmt.Errorf("server is required")
	}
	return &Validator{server: server, limit: 10}, nil
}

// canSearch reports whether the server exposes the search tool.
func (v *Validator) canSearch() bool {
	for _, t := range v.server.ListTools() {
		if t.Name == mcp.ToolSearch {
			return true
		}
	}
	return false
}

// RunQuery executes a single query and returns the result.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec) TestResult {
	start := time.Now()
	result := TestResult{
		Spec:      spec,
		MatchedAt: -1,
	}

	var err error
	switch spec.Kind {
	case KindSearch:
		var resp any
		resp, err = v.server.CallTool(ctx, mcp.ToolSearch, map[string]any{
			"query": spec.Query,
			"limit": float64(v.limit),
		})
		if err == nil {
			text, _ := resp.(string)
			result.TopResults = extractHitIDs(text)
			result.Passed, result.MatchedAt = checkAny(result.TopResults, spec.Expected)
		}
	default:
		result.TopResults, err = v.expand(ctx, spec.Query)
		if err == nil {
			result.Passed, result.MatchedAt = checkAll(result.TopResults, spec.Expected)
		}
	}
	result.Duration = time.Since(start)

	if spec.Kind == KindNegative {
		// Errors are acceptable; reaching here means nothing crashed.
		result.Passed = true
		if err != nil {
			result.Error = err.Error()
		}
		return result
	}
	if err != nil {
		result.Passed = false
		result.Error = err.Error()
	}
	return result
}

// expand runs q through rewrite_query and returns the expanded phrases.
func (v *Validator) expand(ctx context.Context, q string) ([]string, error) {
	body, err := query.EncodeRequest(&query.Request{Query: query.NewText(q)})
	if err != nil {
		return nil, err
	}
	resp, err := v.server.CallTool(ctx, mcp.ToolRewriteQuery, map[string]any{
		"body":               string(body),
		"synonyms_supported": true,
	})
	if err != nil {
		return nil, err
	}
	out, ok := resp.(*mcp.RewriteOutput)
	if !ok {
		return nil, fmt.Errorf("unexpected rewrite response %T", resp)
	}
	return out.ToExpand, nil
}

// RunAll executes all validation queries and returns results.
func (v *Validator) RunAll(ctx context.Context, cfg *QueryConfig) *ValidationResult {
	result := &ValidationResult{Timestamp: time.Now()}

	for _, spec := range cfg.Expansion {
		tr := v.RunQuery(ctx, spec)
		result.Expansion = append(result.Expansion, tr)
		result.ExpansionTotal++
		if tr.Passed {
			result.ExpansionPass++
		}
	}

	searchable := v.canSearch()
	for _, spec := range cfg.Search {
		result.SearchTotal++
		if !searchable {
			result.Search = append(result.Search, TestResult{Spec: spec, Skipped: true, MatchedAt: -1})
			result.SearchSkipped++
			continue
		}
		tr := v.RunQuery(ctx, spec)
		result.Search = append(result.Search, tr)
		if tr.Passed {
			result.SearchPass++
		}
	}

	for _, spec := range cfg.Negative {
		tr := v.RunQuery(ctx, spec)
		result.Negative = append(result.Negative, tr)
		result.NegTotal++
		if tr.Passed {
			result.NegPass++
		}
	}

	return result
}

// extractHitIDs pulls document ids out of the search tool's markdown, where
// each hit is a heading like "### 2. daycare (score 0.412)".
func extractHitIDs(text string) []string {
	var ids []string
	for _, line := range strings.Split(text, "\n") {
		rest, ok := strings.CutPrefix(line, "### ")
		if !ok {
			continue
		}
		_, rest, ok = strings.Cut(rest, ". ")
		if !ok {
			continue
		}
		if i := strings.LastIndex(rest, " (score "); i >= 0 {
			rest = rest[:i]
		}
		ids = append(ids, rest)
	}
	return ids
}

// checkAny reports whether any expected value appears in results and where
// the first one was found.
func checkAny(results, expected []string) (bool, int) {
	for i, r := range results {
		for _, exp := range expected {
			if r == exp {
				return true, i
			}
		}
	}
	return false, -1
}

// checkAll reports whether every expected phrase appears in results. The
// position is that of the first expected phrase.
func checkAll(results, expected []string) (bool, int) {
	first := -1
	for n, exp := range expected {
		found := -1
		for i, r := range results {
			if strings.EqualFold(r, exp) {
				found = i
				break
			}
		}
		if found < 0 {
			return false, -1
		}
		if n == 0 {
			first = found
		}
	}
	return true, first
}
