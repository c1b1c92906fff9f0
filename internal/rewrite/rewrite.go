// Package rewrite expands the free-text clause of a search request with
// synonyms. The expansion is best-effort: anything it cannot make sense of is
// returned unchanged, and only a failure to fetch the dictionary is an error.
package rewrite

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/Aman-CERP/synexpand/internal/diagnostics"
	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/query"
	"github.com/Aman-CERP/synexpand/internal/synonym"
)

// DiagnosticSource identifies events emitted by the rewriter.
const DiagnosticSource = "synexpand/rewrite"

// UnsupportedMessage is emitted once per rewrite when the target index has no
// synonym support.
const UnsupportedMessage = "Your index does not support synonyms. " +
	"Please contact support to have your account upgraded. " +
	"Falling back to search without synonyms."

// Expanded clauses match when any one expansion group matches.
const expandedMinimumShouldMatch = "1"

// AND-as-default is emulated on the remainder by requiring every term.
const allTermsMinimumShouldMatch = "100%"

const operatorNOT = "NOT"

// Result describes the outcome of one rewrite.
type Result struct {
	// Request is the request to send. For a NoOp it is the caller's request
	// itself; for a merge it is a copy whose Query was replaced.
	Request *query.Request

	// Stage is StageNoOp or StageMerged.
	Stage Stage

	// Reason is set for a NoOp.
	Reason Reason

	// Partition and Fragments are filled once the query was partitioned.
	Partition synonym.Partition
	Fragments []string
}

// Rewritten reports whether the query was replaced.
func (r *Result) Rewritten() bool {
	return r.Stage == StageMerged
}

// Rewriter rewrites search requests against a synonym provider.
// It holds no per-request state and is safe for concurrent use.
type Rewriter struct {
	provider   synonym.Provider
	escaper    query.Escaper
	sink       diagnostics.Sink
	logger     *slog.Logger
	positional bool
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithEscaper sets the escaper applied to the non-expanded remainder.
// The default is query.LuceneEscaper{}.
func WithEscaper(e query.Escaper) Option {
	return func(r *Rewriter) {
		if e != nil {
			r.escaper = e
		}
	}
}

// WithSink sets where the unsupported-index diagnostic goes.
// The default logs it through the rewriter's logger.
func WithSink(s diagnostics.Sink) Option {
	return func(r *Rewriter) {
		r.sink = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPositionalExtraction makes the rewriter treat the first should clause
// of a bool query as the free-text clause whenever it is a text clause,
// whether or not it carries the default_search origin.
func WithPositionalExtraction(enabled bool) Option {
	return func(r *Rewriter) {
		r.positional = enabled
	}
}

// New creates a Rewriter.
func New(provider synonym.Provider, opts ...Option) *Rewriter {
	r := &Rewriter{
		provider: provider,
		escaper:  query.LuceneEscaper{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = diagnostics.NewSlogSink(r.logger)
	}
	return r
}

// extraction is the free-text clause found in a request plus what surrounds it.
type extraction struct {
	text        *query.TextClause
	wrapper     *query.BoolClause
	passThrough []query.Clause
}

// Rewrite expands the free-text clause of req with synonyms fetched for the
// given refresh interval (zero selects the provider default).
//
// The caller's request and clause tree are never modified. An error is only
// returned when the provider fails.
func (r *Rewriter) Rewrite(ctx context.Context, req *query.Request, refresh time.Duration) (*Result, error) {
	if req == nil {
		return r.noop(nil, ReasonNoRequest), nil
	}
	if !req.SynonymsSupported {
		r.sink.Emit(diagnostics.NewEvent(DiagnosticSource, UnsupportedMessage), false)
		return r.noop(req, ReasonUnsupported), nil
	}
	if req.Query == nil {
		return r.noop(req, ReasonNoQuery), nil
	}

	ext, ok := r.extract(req.Query)
	if !ok {
		return r.noop(req, ReasonNoTextClause), nil
	}
	text := strings.TrimSpace(ext.text.Query)
	if text == "" {
		return r.noop(req, ReasonEmptyQuery), nil
	}
	r.logger.Debug("rewrite_stage", slog.String("stage", StageExtracted.String()), slog.Bool("wrapped", ext.wrapper != nil))

	dict, err := r.provider.Synonyms(ctx, refresh)
	if err != nil {
		return nil, providerError(err)
	}

	terms := synonym.Tokenize(text)
	if len(terms) == 0 {
		return r.noop(req, ReasonEmptyQuery), nil
	}
	partition := synonym.Match(terms, dict)
	fragments := synonym.ExpandAll(partition, dict)
	r.logger.Debug("rewrite_stage",
		slog.String("stage", StagePartitioned.String()),
		slog.Int("terms", len(terms)),
		slog.Int("to_expand", len(partition.ToExpand)),
		slog.Int("not_to_expand", len(partition.NotToExpand)))

	built := r.build(ext.text, partition, fragments)
	if len(built) == 0 {
		res := r.noop(req, ReasonNothingToRewrite)
		res.Partition, res.Fragments = partition, fragments
		return res, nil
	}
	r.logger.Debug("rewrite_stage", slog.String("stage", StageBuilt.String()), slog.Int("clauses", len(built)))

	out := *req
	out.Body = maps.Clone(req.Body)
	out.Query = merge(ext, built)

	r.logger.Debug("rewrite_merged",
		slog.Int("expanded_phrases", len(partition.ToExpand)),
		slog.Int("pass_through", len(ext.passThrough)))

	return &Result{
		Request:   &out,
		Stage:     StageMerged,
		Partition: partition,
		Fragments: fragments,
	}, nil
}

func (r *Rewriter) noop(req *query.Request, reason Reason) *Result {
	r.logger.Debug("rewrite_noop", slog.String("reason", string(reason)))
	return &Result{Request: req, Stage: StageNoOp, Reason: reason}
}

// extract locates the free-text clause. A bare text clause is always used.
// Inside a bool clause the first should entry tagged default_search is used,
// or with positional extraction the first should entry if it is a text
// clause. Every other should entry is passed through in order.
func (r *Rewriter) extract(c query.Clause) (extraction, bool) {
	switch c := c.(type) {
	case *query.TextClause:
		return extraction{text: c}, true
	case *query.BoolClause:
		idx := -1
		if r.positional {
			if len(c.Should) > 0 {
				if _, ok := c.Should[0].(*query.TextClause); ok {
					idx = 0
				}
			}
		} else {
			for i, s := range c.Should {
				if t, ok := s.(*query.TextClause); ok && t.Origin == query.OriginDefaultSearch {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			return extraction{}, false
		}
		rest := make([]query.Clause, 0, len(c.Should)-1)
		rest = append(rest, c.Should[:idx]...)
		rest = append(rest, c.Should[idx+1:]...)
		return extraction{
			text:        c.Should[idx].(*query.TextClause),
			wrapper:     c,
			passThrough: rest,
		}, true
	default:
		return extraction{}, false
	}
}

// build returns the non-expanded clause (if any terms remain) followed by the
// expanded clause (if any phrase has synonyms).
func (r *Rewriter) build(src *query.TextClause, p synonym.Partition, fragments []string) []query.Clause {
	var out []query.Clause

	if len(p.NotToExpand) > 0 {
		remainder := strings.TrimSpace(r.escaper.Escape(synonym.Join(trimOperators(p.NotToExpand))))
		if remainder != "" {
			out = append(out, derive(src, remainder, remainderMinimumShouldMatch(src)))
		}
	}
	if len(fragments) > 0 {
		out = append(out, derive(src, synonym.JoinFragments(fragments), expandedMinimumShouldMatch))
	}
	return out
}

// trimOperators drops query_string keywords that lost their operand when
// the phrases around them were expanded: AND/OR at either end or after
// another operator, and a trailing NOT. `cats AND dogs` with cats expanded
// leaves "dogs", not "AND dogs".
func trimOperators(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if isBinaryOperator(t) && (len(out) == 0 || isOperator(out[len(out)-1])) {
			continue
		}
		out = append(out, t)
	}
	for len(out) > 0 && isOperator(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func isBinaryOperator(term string) bool {
	return term == synonym.OperatorAND || term == synonym.OperatorOR
}

func isOperator(term string) bool {
	return isBinaryOperator(term) || term == operatorNOT
}

// remainderMinimumShouldMatch keeps an explicit value, emulates AND with
// "100%", and otherwise leaves it unset.
func remainderMinimumShouldMatch(src *query.TextClause) string {
	if src.MinimumShouldMatch != "" {
		return src.MinimumShouldMatch
	}
	if src.Attributes.DefaultOperator == query.OperatorAnd {
		return allTermsMinimumShouldMatch
	}
	return ""
}

// derive builds a clause with src's attributes, OR as default operator and
// no origin tag, so a rewritten request is not expanded a second time.
func derive(src *query.TextClause, text, msm string) *query.TextClause {
	attrs := src.Attributes.Clone()
	attrs.DefaultOperator = query.OperatorOr
	return &query.TextClause{
		Query:              text,
		Attributes:         attrs,
		MinimumShouldMatch: msm,
	}
}

// merge assembles the new root clause. The wrapper's other lists and
// settings are carried over; its should list is replaced.
func merge(ext extraction, built []query.Clause) *query.BoolClause {
	should := make([]query.Clause, 0, len(built)+len(ext.passThrough))
	should = append(should, built...)
	should = append(should, ext.passThrough...)

	out := &query.BoolClause{Should: should}
	if w := ext.wrapper; w != nil {
		out.Must = append([]query.Clause(nil), w.Must...)
		out.Filter = append([]query.Clause(nil), w.Filter...)
		out.MustNot = append([]query.Clause(nil), w.MustNot...)
		out.MinimumShouldMatch = w.MinimumShouldMatch
		if w.Boost != nil {
			out.Boost = query.Ref(*w.Boost)
		}
		out.Extra = maps.Clone(w.Extra)
	}
	return out
}

// providerError keeps a structured provider error as is and wraps anything
// else as ERR_301_SYNONYMS_UNAVAILABLE.
func providerError(err error) error {
	if _, ok := synerrors.As(err); ok {
		return err
	}
	return synerrors.ProviderError("failed to fetch synonyms: "+err.Error(), err).
		WithSuggestion("Check the synonyms source configured under synonyms.source")
}
