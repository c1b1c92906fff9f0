package backend

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/tidwall/gjson"

	esquery "github.com/Aman-CERP/synexpand/internal/query"
)

// ErrUnsupportedClause is returned for raw clauses the executor cannot run.
var ErrUnsupportedClause = errors.New("unsupported clause")

// maxFuzziness is the largest edit distance bleve accepts.
const maxFuzziness = 2

// compiler turns clauses into bleve queries.
type compiler struct {
	// hasAnalyzer reports whether the index knows an analyzer name.
	hasAnalyzer func(name string) bool
}

// Compile converts a clause tree into a bleve query.
func (c *compiler) Compile(cl esquery.Clause) (bquery.Query, error) {
	switch cl := cl.(type) {
	case *esquery.TextClause:
		return c.text(cl), nil
	case *esquery.BoolClause:
		return c.boolean(cl)
	case *esquery.RawClause:
		return c.raw(cl.JSON)
	case nil:
		return bleve.NewMatchAllQuery(), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedClause, cl)
	}
}

// fieldRef is one target field of a text clause, "title^2" style.
type fieldRef struct {
	name  string
	boost float64
}

func parseFields(a esquery.Attributes) []fieldRef {
	names := a.Fields
	if len(names) == 0 && a.DefaultField != "" {
		names = []string{a.DefaultField}
	}
	if len(names) == 0 {
		// Empty field searches the composite _all field.
		return []fieldRef{{boost: 1}}
	}
	refs := make([]fieldRef, 0, len(names))
	for _, n := range names {
		ref := fieldRef{name: n, boost: 1}
		if i := strings.LastIndexByte(n, '^'); i > 0 {
			if b, err := strconv.ParseFloat(n[i+1:], 64); err == nil {
				ref = fieldRef{name: n[:i], boost: b}
			}
		}
		if ref.name == "*" || ref.name == "_all" {
			ref.name = ""
		}
		refs = append(refs, ref)
	}
	return refs
}

// textCompiler carries one text clause's attributes through its expression.
type textCompiler struct {
	fields    []fieldRef
	attrs     esquery.Attributes
	analyzer  string
	lowercase bool
}

func (c *compiler) text(t *esquery.TextClause) bquery.Query {
	tc := &textCompiler{
		fields:    parseFields(t.Attributes),
		attrs:     t.Attributes,
		lowercase: t.Attributes.LowercaseExpandedTerms == nil || *t.Attributes.LowercaseExpandedTerms,
	}
	if a := t.Attributes.Analyzer; a != "" && c.hasAnalyzer != nil && c.hasAnalyzer(a) {
		tc.analyzer = a
	}

	op := t.Attributes.DefaultOperator
	if op == "" {
		op = esquery.OperatorOr
	}
	root := parse(t.Query, op)
	if root == nil {
		return bleve.NewMatchNoneQuery()
	}

	var q bquery.Query
	if b, ok := root.(*boolNode); ok && b.op == esquery.OperatorOr {
		q = tc.disjunction(b.children, MinimumShouldMatch(t.MinimumShouldMatch, len(b.children)))
	} else {
		q = tc.node(root)
	}
	if t.Attributes.Boost != nil {
		setBoost(q, *t.Attributes.Boost)
	}
	return q
}

func (tc *textCompiler) node(n node) bquery.Query {
	switch n := n.(type) {
	case *leafNode:
		return tc.leaf(n)
	case *boolNode:
		if n.op == esquery.OperatorAnd {
			return bleve.NewConjunctionQuery(tc.nodes(n.children)...)
		}
		return tc.disjunction(n.children, 0)
	default:
		return bleve.NewMatchNoneQuery()
	}
}

func (tc *textCompiler) nodes(children []node) []bquery.Query {
	out := make([]bquery.Query, 0, len(children))
	for _, ch := range children {
		out = append(out, tc.node(ch))
	}
	return out
}

// disjunction ORs children, requiring at least min of them. Requiring all
// of them is a conjunction.
func (tc *textCompiler) disjunction(children []node, min int) bquery.Query {
	qs := tc.nodes(children)
	if len(qs) > 1 && min >= len(qs) {
		return bleve.NewConjunctionQuery(qs...)
	}
	d := bleve.NewDisjunctionQuery(qs...)
	if min > 1 {
		d.SetMin(float64(min))
	}
	return d
}

func (tc *textCompiler) leaf(n *leafNode) bquery.Query {
	fields := tc.fields
	if n.field != "" {
		fields = []fieldRef{{name: n.field, boost: 1}}
	}

	qs := make([]bquery.Query, 0, len(fields))
	for _, f := range fields {
		qs = append(qs, tc.fieldQuery(n, f))
	}
	if len(qs) == 1 {
		return qs[0]
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func (tc *textCompiler) fieldQuery(n *leafNode, f fieldRef) bquery.Query {
	var q bquery.Query
	switch {
	case n.phrase:
		mp := bleve.NewMatchPhraseQuery(n.text)
		mp.SetField(f.name)
		mp.Analyzer = tc.analyzer
		q = mp
	case n.wildcard:
		text := n.text
		if tc.lowercase {
			text = strings.ToLower(text)
		}
		w := bleve.NewWildcardQuery(text)
		w.SetField(f.name)
		q = w
	default:
		m := bleve.NewMatchQuery(n.text)
		m.SetField(f.name)
		m.Analyzer = tc.analyzer
		if fz := Fuzziness(tc.attrs.Fuzziness, n.text); fz > 0 {
			m.SetFuzziness(fz)
			if tc.attrs.FuzzyPrefixLength != nil {
				m.SetPrefix(*tc.attrs.FuzzyPrefixLength)
			}
		}
		q = m
	}
	if f.boost != 1 {
		setBoost(q, f.boost)
	}
	return q
}

func setBoost(q bquery.Query, b float64) {
	if bq, ok := q.(bquery.BoostableQuery); ok {
		bq.SetBoost(b)
	}
}

// Fuzziness resolves an Elasticsearch fuzziness setting for one term.
// "AUTO" allows 0 edits up to 2 characters, 1 up to 5 and 2 beyond.
func Fuzziness(spec, term string) int {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0
	}
	if strings.HasPrefix(strings.ToUpper(spec), "AUTO") {
		switch n := utf8.RuneCountInString(term); {
		case n <= 2:
			return 0
		case n <= 5:
			return 1
		default:
			return maxFuzziness
		}
	}
	f, err := strconv.ParseFloat(spec, 64)
	if err != nil || f <= 0 {
		return 0
	}
	if f < 1 {
		// Legacy similarity in (0, 1): closer to 1 means fewer edits.
		if f >= 0.75 {
			return 1
		}
		return maxFuzziness
	}
	return min(int(f), maxFuzziness)
}

// MinimumShouldMatch resolves an Elasticsearch minimum_should_match value
// against n optional clauses: "2", "-1", "75%", "-25%". The result is in
// [0, n]; 0 means no explicit minimum.
func MinimumShouldMatch(spec string, n int) int {
	spec = strings.TrimSpace(spec)
	if spec == "" || n == 0 {
		return 0
	}

	var v int
	if pct, ok := strings.CutSuffix(spec, "%"); ok {
		p, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return 0
		}
		count := int(math.Floor(float64(n) * math.Abs(p) / 100))
		if p < 0 {
			v = n - count
		} else {
			v = count
		}
	} else {
		k, err := strconv.Atoi(spec)
		if err != nil {
			return 0
		}
		if k < 0 {
			v = n + k
		} else {
			v = k
		}
	}
	return max(0, min(v, n))
}

// boolean maps an Elasticsearch bool clause. Filter clauses are required
// like must clauses; bleve has no non-scoring context.
func (c *compiler) boolean(b *esquery.BoolClause) (bquery.Query, error) {
	must, err := c.list(append(append([]esquery.Clause(nil), b.Must...), b.Filter...))
	if err != nil {
		return nil, err
	}
	should, err := c.list(b.Should)
	if err != nil {
		return nil, err
	}
	mustNot, err := c.list(b.MustNot)
	if err != nil {
		return nil, err
	}

	if len(must) == 0 && len(should) == 0 && len(mustNot) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}

	q := bleve.NewBooleanQuery()
	if len(must) > 0 {
		q.AddMust(must...)
	}
	if len(mustNot) > 0 {
		q.AddMustNot(mustNot...)
	}
	if len(should) > 0 {
		q.AddShould(should...)
		minShould := MinimumShouldMatch(b.MinimumShouldMatch, len(should))
		if minShould == 0 && len(must) == 0 {
			// Without must clauses at least one should clause has to match.
			minShould = 1
		}
		q.SetMinShould(float64(minShould))
	}
	if b.Boost != nil {
		q.SetBoost(*b.Boost)
	}
	return q, nil
}

func (c *compiler) list(clauses []esquery.Clause) ([]bquery.Query, error) {
	out := make([]bquery.Query, 0, len(clauses))
	for _, cl := range clauses {
		q, err := c.Compile(cl)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// raw handles the handful of leaf clauses that commonly sit next to a
// free-text clause: match_all, match_none, term, match and match_phrase.
func (c *compiler) raw(data []byte) (bquery.Query, error) {
	v := gjson.ParseBytes(data)
	if !v.IsObject() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedClause, string(data))
	}

	var kind string
	var body gjson.Result
	v.ForEach(func(k, val gjson.Result) bool {
		kind, body = k.String(), val
		return false
	})

	switch kind {
	case "match_all":
		return bleve.NewMatchAllQuery(), nil
	case "match_none":
		return bleve.NewMatchNoneQuery(), nil
	case "term", "match", "match_phrase":
		field, value, ok := fieldValue(body, kind)
		if !ok {
			return nil, fmt.Errorf("%w: malformed %s", ErrUnsupportedClause, kind)
		}
		switch kind {
		case "term":
			q := bleve.NewTermQuery(value)
			q.SetField(field)
			return q, nil
		case "match":
			q := bleve.NewMatchQuery(value)
			q.SetField(field)
			return q, nil
		default:
			q := bleve.NewMatchPhraseQuery(value)
			q.SetField(field)
			return q, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedClause, kind)
	}
}

// fieldValue reads {"field": "value"} or {"field": {"value"|"query": "value"}}.
func fieldValue(body gjson.Result, kind string) (string, string, bool) {
	var field string
	var val gjson.Result
	body.ForEach(func(k, v gjson.Result) bool {
		field, val = k.String(), v
		return false
	})
	if field == "" {
		return "", "", false
	}
	if val.IsObject() {
		key := "query"
		if kind == "term" {
			key = "value"
		}
		val = val.Get(key)
	}
	if !val.Exists() {
		return "", "", false
	}
	return field, val.String(), true
}
