package rewrite

import (
	"context"
	"strings"
	"time"

	"github.com/Aman-CERP/synexpand/internal/synonym"
)

// Plan is the expansion of a raw query string, step by step.
type Plan struct {
	Query      string
	Terms      []string
	Variations []synonym.Span
	Partition  synonym.Partition
	Fragments  []string

	// Remainder is the escaped text of the non-expanded clause.
	Remainder string

	// Expanded is the text of the expanded clause.
	Expanded string

	// Synonyms holds the dictionary entries of the expandable phrases.
	Synonyms map[string][]string
}

// Explain runs the expansion pipeline on text without building a request.
func (r *Rewriter) Explain(ctx context.Context, text string, refresh time.Duration) (*Plan, error) {
	plan := &Plan{Query: text}
	text = strings.TrimSpace(text)
	if text == "" {
		return plan, nil
	}

	dict, err := r.provider.Synonyms(ctx, refresh)
	if err != nil {
		return nil, providerError(err)
	}

	plan.Terms = synonym.Tokenize(text)
	plan.Variations = synonym.Variations(plan.Terms)
	plan.Partition = synonym.Match(plan.Terms, dict)
	plan.Fragments = synonym.ExpandAll(plan.Partition, dict)
	plan.Expanded = synonym.JoinFragments(plan.Fragments)
	if len(plan.Partition.NotToExpand) > 0 {
		plan.Remainder = strings.TrimSpace(r.escaper.Escape(synonym.Join(plan.Partition.NotToExpand)))
	}
	if len(plan.Partition.ToExpand) > 0 {
		plan.Synonyms = make(map[string][]string, len(plan.Partition.ToExpand))
		for _, phrase := range plan.Partition.ToExpand {
			plan.Synonyms[phrase] = dict[phrase].Sorted()
		}
	}
	return plan, nil
}
