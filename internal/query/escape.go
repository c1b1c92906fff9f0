package query

import "strings"

// Escaper makes user text safe to embed in a query_string clause.
type Escaper interface {
	Escape(text string) string
}

// EscaperFunc adapts a function to the Escaper interface.
type EscaperFunc func(text string) string

// Escape calls f(text).
func (f EscaperFunc) Escape(text string) string {
	return f(text)
}

// NopEscaper returns text unchanged.
var NopEscaper Escaper = EscaperFunc(func(text string) string { return text })

// luceneReserved are the query_string characters that need a backslash.
// '<' and '>' cannot be escaped at all and are dropped instead.
const luceneReserved = `+-=&|!(){}[]^"~*?:\/`

// LuceneEscaper escapes the characters reserved by the Lucene query_string
// grammar. Double quotes are kept by default so quoted phrases survive, and
// wildcards are kept unless EscapeWildcards is set.
type LuceneEscaper struct {
	EscapeQuotes    bool
	EscapeWildcards bool
}

// Escape implements Escaper.
func (e LuceneEscaper) Escape(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + len(text)/4)

	for _, r := range text {
		switch {
		case r == '<' || r == '>':
			continue
		case r == '"' && !e.EscapeQuotes:
			sb.WriteRune(r)
		case (r == '*' || r == '?') && !e.EscapeWildcards:
			sb.WriteRune(r)
		case strings.ContainsRune(luceneReserved, r):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
