package synonym

import (
	"strings"
	"unicode"
)

const (
	quote = '"'

	// OperatorAND is the query_string keyword inserted between words of a
	// multi-word phrase.
	OperatorAND = "AND"

	// OperatorOR separates the disjuncts of an expansion fragment.
	OperatorOR = "OR"
)

// Tokenize splits a query into terms on whitespace. Text between a matching
// pair of double quotes is kept as part of a single term, quotes included,
// so `red "sports car"` yields [red "sports car"]. A quote without a closing
// partner is treated as an ordinary character.
//
// Returns nil for empty or whitespace-only input.
func Tokenize(query string) []string {
	runes := []rune(query)
	var terms []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			terms = append(terms, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == quote:
			end := indexRune(runes, quote, i+1)
			if end < 0 {
				current.WriteRune(r)
				continue
			}
			current.WriteString(string(runes[i : end+1]))
			i = end
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return terms
}

// IsQuoted reports whether the text is a single quoted term: the opening
// quote's partner is the last character. `"red" car "x"` is not quoted.
func IsQuoted(text string) bool {
	if len(text) < 2 || text[0] != quote || text[len(text)-1] != quote {
		return false
	}
	return strings.IndexByte(text[1:], quote) == len(text)-2
}

// Join joins terms with single spaces, the canonical phrase form.
func Join(terms []string) string {
	return strings.Join(terms, " ")
}

// Conjoin inserts AND between the terms of a phrase. Quoted text, either the
// whole phrase or a quoted term inside it, is never split.
func Conjoin(phrase string) string {
	if IsQuoted(phrase) {
		return phrase
	}
	terms := Tokenize(phrase)
	if len(terms) <= 1 {
		return strings.TrimSpace(phrase)
	}
	return strings.Join(terms, " "+OperatorAND+" ")
}

func indexRune(runes []rune, target rune, from int) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}
