package mcp

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Aman-CERP/synexpand/internal/backend"
)

// FormatPlan renders an expansion plan as markdown.
func FormatPlan(p *ExplainOutput) string {
	if p == nil || len(p.Terms) == 0 {
		return "Query is empty."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Synonym expansion for \"%s\"\n\n", p.Query)
	fmt.Fprintf(&sb, "**Terms:** %s\n\n", codeList(p.Terms))

	if len(p.ToExpand) == 0 {
		sb.WriteString("No synonyms found. The query is sent unchanged.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "### Expanded (%s)\n\n", humanCount(len(p.ToExpand), "phrase"))
	for _, phrase := range p.ToExpand {
		syns := p.Synonyms[phrase]
		if len(syns) == 0 {
			fmt.Fprintf(&sb, "- `%s`\n", phrase)
			continue
		}
		fmt.Fprintf(&sb, "- `%s` → %s\n", phrase, strings.Join(syns, ", "))
	}
	sb.WriteString("\n")

	if len(p.NotToExpand) > 0 {
		fmt.Fprintf(&sb, "**Not expanded:** %s\n\n", codeList(p.NotToExpand))
	}

	sb.WriteString("### Query\n\n")
	if p.Remainder != "" {
		fmt.Fprintf(&sb, "Remainder:\n```\n%s\n```\n\n", p.Remainder)
	}
	fmt.Fprintf(&sb, "Expanded:\n```\n%s\n```\n", p.Expanded)
	return sb.String()
}

// FormatSearchResults formats search hits as markdown.
func FormatSearchResults(query string, out *SearchOutput) string {
	if out == nil || len(out.Results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %s", humanCount(len(out.Results), "result"))
	if out.Total > uint64(len(out.Results)) {
		fmt.Fprintf(&sb, " of %d", out.Total)
	}
	if out.Rewritten {
		sb.WriteString(" (expanded with synonyms)")
	}
	sb.WriteString("\n\n")

	for i, r := range out.Results {
		fmt.Fprintf(&sb, "### %d. %s (score %.3f)\n\n", i+1, r.ID, r.Score)
		keys := make([]string, 0, len(r.Fields))
		for k := range r.Fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- **%s:** %v\n", k, r.Fields[k])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ToSearchResultOutput converts a backend hit to the output format.
func ToSearchResultOutput(h backend.Hit) SearchResultOutput {
	return SearchResultOutput{
		ID:     h.ID,
		Score:  h.Score,
		Fields: h.Fields,
	}
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, ", ")
}

// humanCount renders n with a singular or plural noun.
func humanCount(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
