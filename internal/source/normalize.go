package source

import (
	"github.com/Aman-CERP/synexpand/internal/synonym"
)

// normalize rewrites a phrase the way the tokenizer would rejoin it, so keys
// with stray whitespace still match query variations.
func normalize(phrase string) string {
	return synonym.Join(synonym.Tokenize(phrase))
}

// addEntry records phrase -> synonyms after normalization, skipping empties.
func addEntry(d synonym.Dictionary, phrase string, synonyms []string) {
	key := normalize(phrase)
	if key == "" {
		return
	}
	vals := make([]string, 0, len(synonyms))
	for _, s := range synonyms {
		if v := normalize(s); v != "" && v != key {
			vals = append(vals, v)
		}
	}
	d.Add(key, vals...)
}

// addGroup records a group after normalization, skipping empties.
func addGroup(d synonym.Dictionary, members []string) {
	norm := make([]string, 0, len(members))
	for _, m := range members {
		if v := normalize(m); v != "" {
			norm = append(norm, v)
		}
	}
	if len(norm) > 1 {
		d.AddGroup(norm...)
	}
}
