// Package query models the small slice of a search backend's query DSL that
// the synonym rewriter needs: free-text query_string clauses, boolean
// wrappers, and opaque clauses that are passed through untouched.
package query

import (
	"encoding/json"
	"strings"
)

// Operator is the default operator applied between bare words of a
// free-text clause.
type Operator string

const (
	// OperatorOr means any word may match. It is the backend default.
	OperatorOr Operator = "OR"
	// OperatorAnd means every word must match.
	OperatorAnd Operator = "AND"
)

// ParseOperator normalises an operator name; anything other than "and"
// (case-insensitive) is OR.
func ParseOperator(s string) Operator {
	if strings.EqualFold(strings.TrimSpace(s), "and") {
		return OperatorAnd
	}
	return OperatorOr
}

// Origin records which component produced a clause.
type Origin string

const (
	// OriginUser marks a clause supplied directly by the caller.
	OriginUser Origin = ""
	// OriginDefaultSearch marks the free-text clause an upstream default
	// search builder placed inside its boolean should list. The rewriter
	// only extracts text clauses carrying this marker from a bool clause.
	OriginDefaultSearch Origin = "default_search"
)

// Clause is one node of a query tree. The concrete types are *TextClause,
// *BoolClause and *RawClause.
type Clause interface {
	clause()
}

// Attributes are the non-content settings of a free-text clause. They are
// copied verbatim onto every clause the rewriter derives from it, so
// matching outside of synonym expansion is unchanged.
type Attributes struct {
	Fields                   []string
	DefaultField             string
	Analyzer                 string
	Fuzziness                string
	FuzzyPrefixLength        *int
	AllowLeadingWildcard     *bool
	AnalyzeWildcard          *bool
	AutoGeneratePhraseQuery  *bool
	EnablePositionIncrements *bool
	LowercaseExpandedTerms   *bool
	PhraseSlop               *int
	Boost                    *float64
	DefaultOperator          Operator

	// Extra holds backend settings this package does not model, keyed by
	// their wire name. They are carried through unchanged.
	Extra map[string]json.RawMessage
}

// Clone returns a copy that shares no mutable state with a.
func (a Attributes) Clone() Attributes {
	out := a
	if a.Fields != nil {
		out.Fields = append([]string(nil), a.Fields...)
	}
	out.FuzzyPrefixLength = cloneRef(a.FuzzyPrefixLength)
	out.AllowLeadingWildcard = cloneRef(a.AllowLeadingWildcard)
	out.AnalyzeWildcard = cloneRef(a.AnalyzeWildcard)
	out.AutoGeneratePhraseQuery = cloneRef(a.AutoGeneratePhraseQuery)
	out.EnablePositionIncrements = cloneRef(a.EnablePositionIncrements)
	out.LowercaseExpandedTerms = cloneRef(a.LowercaseExpandedTerms)
	out.PhraseSlop = cloneRef(a.PhraseSlop)
	out.Boost = cloneRef(a.Boost)
	if a.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(a.Extra))
		for k, v := range a.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func cloneRef[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ref returns a pointer to v, for filling optional attributes.
func Ref[T any](v T) *T {
	return &v
}

// TextClause is a free-text query_string clause.
type TextClause struct {
	Query              string
	Attributes         Attributes
	MinimumShouldMatch string
	Origin             Origin

	// source is the JSON the clause was decoded from, if any.
	source json.RawMessage
}

// BoolClause combines clauses. The rewriter only builds Should lists; the
// other lists and settings are carried through when a bool clause is
// rewritten.
type BoolClause struct {
	Should             []Clause
	Must               []Clause
	Filter             []Clause
	MustNot            []Clause
	MinimumShouldMatch string
	Boost              *float64
	Extra              map[string]json.RawMessage

	source json.RawMessage
}

// RawClause is a clause the rewriter does not understand. It is kept as the
// backend JSON it was decoded from.
type RawClause struct {
	JSON json.RawMessage
}

func (*TextClause) clause() {}
func (*BoolClause) clause() {}
func (*RawClause) clause()  {}

// Request is the part of a search request the rewriter works on.
type Request struct {
	// SynonymsSupported reports whether the target index has synonym
	// support enabled.
	SynonymsSupported bool

	// Query is the root clause. It may be nil.
	Query Clause

	// Body holds the remaining top-level request members (size, sort,
	// aggregations, ...) exactly as received.
	Body map[string]json.RawMessage
}

// NewText returns a text clause with OR as default operator.
func NewText(q string) *TextClause {
	return &TextClause{
		Query:      q,
		Attributes: Attributes{DefaultOperator: OperatorOr},
	}
}

// DefaultSearch wraps a text clause the way a default search builder does:
// a bool clause whose first should entry is the tagged text clause,
// followed by any extra clauses.
func DefaultSearch(text *TextClause, extra ...Clause) *BoolClause {
	text.Origin = OriginDefaultSearch
	text.source = nil
	should := make([]Clause, 0, len(extra)+1)
	should = append(should, text)
	should = append(should, extra...)
	return &BoolClause{Should: should}
}
