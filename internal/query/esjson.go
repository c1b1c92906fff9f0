package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// ErrInvalidBody is returned when a request body is not a JSON object.
var ErrInvalidBody = errors.New("request body is not a JSON object")

// Wire names of the query_string settings mapped onto Attributes.
const (
	keyQuery                    = "query"
	keyFields                   = "fields"
	keyDefaultField             = "default_field"
	keyAnalyzer                 = "analyzer"
	keyFuzziness                = "fuzziness"
	keyFuzzyPrefixLength        = "fuzzy_prefix_length"
	keyAllowLeadingWildcard     = "allow_leading_wildcard"
	keyAnalyzeWildcard          = "analyze_wildcard"
	keyAutoGeneratePhraseQuery  = "auto_generate_phrase_queries"
	keyEnablePositionIncrements = "enable_position_increments"
	keyLowercaseExpandedTerms   = "lowercase_expanded_terms"
	keyPhraseSlop               = "phrase_slop"
	keyBoost                    = "boost"
	keyDefaultOperator          = "default_operator"
	keyMinimumShouldMatch       = "minimum_should_match"
	keyName                     = "_name"

	kindQueryString = "query_string"
	kindBool        = "bool"
)

var textKeys = map[string]bool{
	keyQuery: true, keyFields: true, keyDefaultField: true, keyAnalyzer: true,
	keyFuzziness: true, keyFuzzyPrefixLength: true, keyAllowLeadingWildcard: true,
	keyAnalyzeWildcard: true, keyAutoGeneratePhraseQuery: true,
	keyEnablePositionIncrements: true, keyLowercaseExpandedTerms: true,
	keyPhraseSlop: true, keyBoost: true, keyDefaultOperator: true,
	keyMinimumShouldMatch: true,
}

var boolKeys = map[string]bool{
	"should": true, "must": true, "filter": true, "must_not": true,
	keyMinimumShouldMatch: true, keyBoost: true,
}

// DecodeRequest parses an Elasticsearch search body. The "query" member is
// decoded into a clause tree; every other top-level member is kept verbatim
// in Request.Body.
func DecodeRequest(body []byte, synonymsSupported bool) (*Request, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidBody
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, ErrInvalidBody
	}

	req := &Request{SynonymsSupported: synonymsSupported}
	root.ForEach(func(key, value gjson.Result) bool {
		if key.String() == keyQuery {
			req.Query = DecodeClause(value)
			return true
		}
		if req.Body == nil {
			req.Body = make(map[string]json.RawMessage)
		}
		req.Body[key.String()] = json.RawMessage(value.Raw)
		return true
	})
	return req, nil
}

// DecodeClause converts one query DSL object into a clause. Anything other
// than query_string and bool becomes a RawClause. Decoded clauses remember
// their source JSON, and EncodeRequest writes it back unchanged, so clauses
// the rewriter passes through keep their exact settings and shape. Decoded
// clauses are therefore read-only; the rewriter derives new ones instead of
// editing them.
func DecodeClause(v gjson.Result) Clause {
	if !v.IsObject() {
		return &RawClause{JSON: json.RawMessage(v.Raw)}
	}
	var kind string
	var inner gjson.Result
	n := 0
	v.ForEach(func(key, value gjson.Result) bool {
		kind, inner = key.String(), value
		n++
		return true
	})
	if n != 1 || !inner.IsObject() {
		return &RawClause{JSON: json.RawMessage(v.Raw)}
	}

	switch kind {
	case kindQueryString:
		t := decodeText(inner)
		t.source = json.RawMessage(v.Raw)
		return t
	case kindBool:
		b := decodeBool(inner)
		b.source = json.RawMessage(v.Raw)
		return b
	default:
		return &RawClause{JSON: json.RawMessage(v.Raw)}
	}
}

func decodeText(v gjson.Result) *TextClause {
	t := &TextClause{Query: v.Get(keyQuery).String()}
	a := &t.Attributes

	for _, f := range v.Get(keyFields).Array() {
		a.Fields = append(a.Fields, f.String())
	}
	a.DefaultField = v.Get(keyDefaultField).String()
	a.Analyzer = v.Get(keyAnalyzer).String()
	a.Fuzziness = v.Get(keyFuzziness).String()
	a.FuzzyPrefixLength = optInt(v.Get(keyFuzzyPrefixLength))
	a.AllowLeadingWildcard = optBool(v.Get(keyAllowLeadingWildcard))
	a.AnalyzeWildcard = optBool(v.Get(keyAnalyzeWildcard))
	a.AutoGeneratePhraseQuery = optBool(v.Get(keyAutoGeneratePhraseQuery))
	a.EnablePositionIncrements = optBool(v.Get(keyEnablePositionIncrements))
	a.LowercaseExpandedTerms = optBool(v.Get(keyLowercaseExpandedTerms))
	a.PhraseSlop = optInt(v.Get(keyPhraseSlop))
	a.Boost = optFloat(v.Get(keyBoost))
	a.DefaultOperator = ParseOperator(v.Get(keyDefaultOperator).String())
	t.MinimumShouldMatch = v.Get(keyMinimumShouldMatch).String()

	v.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		switch {
		case textKeys[k]:
		case k == keyName && value.String() == string(OriginDefaultSearch):
			t.Origin = OriginDefaultSearch
		default:
			if a.Extra == nil {
				a.Extra = make(map[string]json.RawMessage)
			}
			a.Extra[k] = json.RawMessage(value.Raw)
		}
		return true
	})
	return t
}

func decodeBool(v gjson.Result) *BoolClause {
	b := &BoolClause{
		Should:             decodeList(v.Get("should")),
		Must:               decodeList(v.Get("must")),
		Filter:             decodeList(v.Get("filter")),
		MustNot:            decodeList(v.Get("must_not")),
		MinimumShouldMatch: v.Get(keyMinimumShouldMatch).String(),
		Boost:              optFloat(v.Get(keyBoost)),
	}
	v.ForEach(func(key, value gjson.Result) bool {
		if !boolKeys[key.String()] {
			if b.Extra == nil {
				b.Extra = make(map[string]json.RawMessage)
			}
			b.Extra[key.String()] = json.RawMessage(value.Raw)
		}
		return true
	})
	return b
}

// decodeList accepts both the array form and the single-object shorthand.
func decodeList(v gjson.Result) []Clause {
	if !v.Exists() {
		return nil
	}
	if !v.IsArray() {
		return []Clause{DecodeClause(v)}
	}
	items := v.Array()
	out := make([]Clause, 0, len(items))
	for _, item := range items {
		out = append(out, DecodeClause(item))
	}
	return out
}

func optInt(v gjson.Result) *int {
	if !v.Exists() {
		return nil
	}
	return Ref(int(v.Int()))
}

func optBool(v gjson.Result) *bool {
	if !v.Exists() {
		return nil
	}
	return Ref(v.Bool())
}

func optFloat(v gjson.Result) *float64 {
	if !v.Exists() {
		return nil
	}
	return Ref(v.Float())
}

// EncodeRequest renders the request back into an Elasticsearch search body.
// Keys are emitted in sorted order so equal requests encode identically.
func EncodeRequest(req *Request) ([]byte, error) {
	out := make(map[string]any, len(req.Body)+1)
	for k, v := range req.Body {
		out[k] = v
	}
	if req.Query != nil {
		q, err := clauseValue(req.Query)
		if err != nil {
			return nil, err
		}
		out[keyQuery] = q
	}
	return marshal(out)
}

func clauseValue(c Clause) (any, error) {
	switch c := c.(type) {
	case *TextClause:
		if len(c.source) > 0 {
			return c.source, nil
		}
		return map[string]any{kindQueryString: textValue(c)}, nil
	case *BoolClause:
		if len(c.source) > 0 {
			return c.source, nil
		}
		body, err := boolValue(c)
		if err != nil {
			return nil, err
		}
		return map[string]any{kindBool: body}, nil
	case *RawClause:
		return c.JSON, nil
	default:
		return nil, fmt.Errorf("unsupported clause type %T", c)
	}
}

func textValue(t *TextClause) map[string]any {
	a := t.Attributes
	m := make(map[string]any, len(a.Extra)+8)
	for k, v := range a.Extra {
		m[k] = v
	}
	m[keyQuery] = t.Query
	if len(a.Fields) > 0 {
		m[keyFields] = a.Fields
	}
	putString(m, keyDefaultField, a.DefaultField)
	putString(m, keyAnalyzer, a.Analyzer)
	if a.Fuzziness != "" {
		// Numeric fuzziness goes back out as a number.
		if n, err := strconv.Atoi(a.Fuzziness); err == nil {
			m[keyFuzziness] = n
		} else {
			m[keyFuzziness] = a.Fuzziness
		}
	}
	putRef(m, keyFuzzyPrefixLength, a.FuzzyPrefixLength)
	putRef(m, keyAllowLeadingWildcard, a.AllowLeadingWildcard)
	putRef(m, keyAnalyzeWildcard, a.AnalyzeWildcard)
	putRef(m, keyAutoGeneratePhraseQuery, a.AutoGeneratePhraseQuery)
	putRef(m, keyEnablePositionIncrements, a.EnablePositionIncrements)
	putRef(m, keyLowercaseExpandedTerms, a.LowercaseExpandedTerms)
	putRef(m, keyPhraseSlop, a.PhraseSlop)
	putRef(m, keyBoost, a.Boost)
	if a.DefaultOperator != "" {
		m[keyDefaultOperator] = string(a.DefaultOperator)
	}
	putString(m, keyMinimumShouldMatch, t.MinimumShouldMatch)
	if t.Origin != OriginUser {
		m[keyName] = string(t.Origin)
	}
	return m
}

func boolValue(b *BoolClause) (map[string]any, error) {
	m := make(map[string]any, len(b.Extra)+6)
	for k, v := range b.Extra {
		m[k] = v
	}
	lists := []struct {
		key     string
		clauses []Clause
	}{
		{"should", b.Should},
		{"must", b.Must},
		{"filter", b.Filter},
		{"must_not", b.MustNot},
	}
	for _, l := range lists {
		if len(l.clauses) == 0 {
			continue
		}
		items := make([]any, 0, len(l.clauses))
		for _, c := range l.clauses {
			v, err := clauseValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		m[l.key] = items
	}
	putString(m, keyMinimumShouldMatch, b.MinimumShouldMatch)
	putRef(m, keyBoost, b.Boost)
	return m, nil
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func putRef[T any](m map[string]any, key string, p *T) {
	if p != nil {
		m[key] = *p
	}
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
