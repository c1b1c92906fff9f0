package synonym

// Span is one contiguous run of terms taken from a tokenized query.
type Span struct {
	Start  int
	Length int
	Phrase string
}

// Variations returns every contiguous sub-sequence of terms, ordered by start
// index and then by length. For N terms the result has N*(N+1)/2 entries;
// identical phrases from different positions are all reported.
//
// "Alloy tech now" yields: Alloy, "Alloy tech", "Alloy tech now", tech,
// "tech now", now.
func Variations(terms []string) []Span {
	n := len(terms)
	spans := make([]Span, 0, n*(n+1)/2)
	for s := 0; s < n; s++ {
		for c := 1; c <= n-s; c++ {
			spans = append(spans, Span{
				Start:  s,
				Length: c,
				Phrase: Join(terms[s : s+c]),
			})
		}
	}
	return spans
}
