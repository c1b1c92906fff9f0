package synonym

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Tokenize
// =============================================================================

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty", "", nil},
		{"whitespace only", "  \t\n ", nil},
		{"single word", "dagis", []string{"dagis"}},
		{"collapses whitespace", "  Alloy   tech\tnow ", []string{"Alloy", "tech", "now"}},
		{"quoted span is one term", `red "sports car" fast`, []string{"red", `"sports car"`, "fast"}},
		{"field prefixed phrase", `title:"red car" x`, []string{`title:"red car"`, "x"}},
		{"unmatched quote is literal", `say "hello world`, []string{"say", `"hello`, "world"}},
		{"adjacent quoted spans", `"a b""c d"`, []string{`"a b""c d"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.query))
		})
	}
}

func TestTokenize_RoundTripsFullVariation(t *testing.T) {
	queries := []string{
		"Alloy tech now",
		`"new york" pizza`,
		"a b c d e",
	}
	for _, q := range queries {
		terms := Tokenize(q)
		spans := Variations(terms)
		require.NotEmpty(t, spans)

		// The single full-length variation starts at 0 with length N.
		var full Span
		for _, s := range spans {
			if s.Start == 0 && s.Length == len(terms) {
				full = s
			}
		}
		assert.Equal(t, terms, Tokenize(full.Phrase), "query %q", q)
	}
}

func TestIsQuoted(t *testing.T) {
	assert.True(t, IsQuoted(`"a b"`))
	assert.True(t, IsQuoted(`""`))
	assert.False(t, IsQuoted(`"`))
	assert.False(t, IsQuoted(`"a b`))
	assert.False(t, IsQuoted(`a b"`))
	assert.False(t, IsQuoted("plain"))
	assert.False(t, IsQuoted(`"red" car "x"`))
	assert.False(t, IsQuoted(`"a" "b"`))
}

func TestConjoin(t *testing.T) {
	assert.Equal(t, "tech AND now", Conjoin("tech now"))
	assert.Equal(t, "technology", Conjoin("technology"))
	assert.Equal(t, `"sports car"`, Conjoin(`"sports car"`))
	assert.Equal(t, `fast AND "sports car"`, Conjoin(`fast "sports car"`))
	assert.Equal(t, `"red" AND car AND "x"`, Conjoin(`"red" car "x"`))
}

// =============================================================================
// Variations
// =============================================================================

func TestVariations_Count(t *testing.T) {
	for n := 0; n <= 8; n++ {
		terms := make([]string, n)
		for i := range terms {
			terms[i] = fmt.Sprintf("t%d", i)
		}
		assert.Len(t, Variations(terms), n*(n+1)/2, "n=%d", n)
	}
}

func TestVariations_AlloyTechNow(t *testing.T) {
	spans := Variations([]string{"Alloy", "tech", "now"})

	var phrases []string
	for _, s := range spans {
		phrases = append(phrases, s.Phrase)
	}
	assert.Equal(t, []string{
		"Alloy", "Alloy tech", "Alloy tech now",
		"tech", "tech now",
		"now",
	}, phrases)
}

func TestMatch_CollapsesDuplicateVariations(t *testing.T) {
	terms := []string{"a", "a", "a"}
	assert.Len(t, Variations(terms), 6)

	p := Match(terms, Dictionary{"a a": NewSet("pair")})
	assert.Equal(t, []string{"a a"}, p.ToExpand)
	assert.Empty(t, p.NotToExpand)
}

// =============================================================================
// Match
// =============================================================================

func TestMatch_ConjunctiveExample(t *testing.T) {
	dict := Dictionary{"tech now": NewSet("technology")}

	p := Match([]string{"Alloy", "tech", "now"}, dict)

	assert.Equal(t, []string{"tech now"}, p.ToExpand)
	assert.Equal(t, []string{"Alloy"}, p.NotToExpand)
}

func TestMatch_NoOverlap(t *testing.T) {
	dict := Dictionary{"car": NewSet("automobile")}

	p := Match([]string{"red", "bike"}, dict)

	assert.Empty(t, p.ToExpand)
	assert.Equal(t, []string{"red", "bike"}, p.NotToExpand)
}

func TestMatch_EmptyTerms(t *testing.T) {
	p := Match(nil, Dictionary{"a": NewSet("b")})
	assert.True(t, p.Empty())
}

func TestMatch_OrdersByFirstOccurrence(t *testing.T) {
	dict := Dictionary{
		"now":        NewSet("currently"),
		"alloy":      NewSet("metal"),
		"alloy tech": NewSet("alloytech"),
	}

	p := Match([]string{"alloy", "tech", "now"}, dict)

	assert.Equal(t, []string{"alloy", "alloy tech", "now"}, p.ToExpand)
	assert.Empty(t, p.NotToExpand)
}

func TestMatch_DeduplicatesRemainder(t *testing.T) {
	p := Match([]string{"red", "red", "car"}, Dictionary{})
	assert.Equal(t, []string{"red", "car"}, p.NotToExpand)
}

// The constituent words of an expandable phrase are suppressed everywhere,
// including a standalone repeat elsewhere in the query. This is current
// behavior, not necessarily the ideal one.
func TestMatch_ConstituentSuppressionIsGlobal(t *testing.T) {
	dict := Dictionary{"tech now": NewSet("technology")}

	p := Match([]string{"tech", "now", "later", "tech"}, dict)

	assert.Equal(t, []string{"tech now"}, p.ToExpand)
	assert.Equal(t, []string{"later"}, p.NotToExpand)
}

func TestMatch_QuotedTermInsidePhraseIsSuppressed(t *testing.T) {
	dict := Dictionary{`fast "sports car"`: NewSet("supercar")}

	p := Match(Tokenize(`fast "sports car" red`), dict)

	assert.Equal(t, []string{`fast "sports car"`}, p.ToExpand)
	assert.Equal(t, []string{"red"}, p.NotToExpand)
}

func TestMatch_PartitionDisjointness(t *testing.T) {
	dict := Dictionary{
		"new york":       NewSet("nyc"),
		"york":           NewSet("yorkshire"),
		"pizza":          NewSet("pie"),
		"new york pizza": NewSet(`"ny style"`),
	}
	queries := []string{
		"new york pizza",
		"best new york pizza in town",
		"pizza pizza york",
		"old york new",
		`"new york" pizza`,
	}

	for _, q := range queries {
		p := Match(Tokenize(q), dict)

		expandedWords := make(Set)
		for _, phrase := range p.ToExpand {
			expandedWords.Add(phrase)
			for _, w := range Tokenize(phrase) {
				expandedWords.Add(w)
			}
		}
		for _, term := range p.NotToExpand {
			assert.False(t, expandedWords.Has(term), "query %q: %q in both partitions", q, term)
		}
	}
}

// =============================================================================
// ExpandPhrase / ExpandAll / JoinFragments
// =============================================================================

func TestExpandPhrase(t *testing.T) {
	tests := []struct {
		name     string
		phrase   string
		synonyms Set
		want     string
	}{
		{
			name:     "multi-word phrase is conjoined",
			phrase:   "tech now",
			synonyms: NewSet("technology"),
			want:     "(tech AND now) OR (technology)",
		},
		{
			name:     "several synonyms in lexical order",
			phrase:   "dagis",
			synonyms: NewSet("lekis", "förskola"),
			want:     "(dagis) OR (förskola) OR (lekis)",
		},
		{
			name:     "multi-word synonym is conjoined",
			phrase:   "nyc",
			synonyms: NewSet("new york city"),
			want:     "(nyc) OR (new AND york AND city)",
		},
		{
			name:     "quoted synonym is never conjoined",
			phrase:   "nyc",
			synonyms: NewSet(`"new york city"`),
			want:     `(nyc) OR ("new york city")`,
		},
		{
			name:     "quoted phrase is never conjoined",
			phrase:   `"big apple"`,
			synonyms: NewSet("nyc"),
			want:     `("big apple") OR (nyc)`,
		},
		{
			name:     "synonym equal to phrase is skipped",
			phrase:   "car",
			synonyms: NewSet("car", "auto"),
			want:     "(car) OR (auto)",
		},
		{
			name:     "no synonyms",
			phrase:   "car",
			synonyms: NewSet(),
			want:     "(car)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPhrase(tt.phrase, tt.synonyms))
		})
	}
}

func TestExpandAll(t *testing.T) {
	dict := Dictionary{
		"tech now": NewSet("technology"),
		"alloy":    NewSet("metal"),
	}
	p := Match(Tokenize("alloy tech now"), dict)

	fragments := ExpandAll(p, dict)

	assert.Equal(t, []string{
		"(alloy) OR (metal)",
		"(tech AND now) OR (technology)",
	}, fragments)
}

func TestJoinFragments(t *testing.T) {
	assert.Equal(t, "", JoinFragments(nil))
	assert.Equal(t, "(a) OR (b)", JoinFragments([]string{"(a) OR (b)"}))
	assert.Equal(t, "((a) OR (b)) ((c) OR (d))", JoinFragments([]string{"(a) OR (b)", "(c) OR (d)"}))
}

// =============================================================================
// Dictionary
// =============================================================================

func TestDictionary_AddGroup(t *testing.T) {
	d := make(Dictionary)
	d.AddGroup("car", "auto", "automobile")

	assert.Equal(t, []string{"auto", "automobile"}, d["car"].Sorted())
	assert.Equal(t, []string{"automobile", "car"}, d["auto"].Sorted())
	assert.Equal(t, []string{"auto", "car"}, d["automobile"].Sorted())
}

func TestDictionary_NotReciprocal(t *testing.T) {
	d := make(Dictionary)
	d.Add("dagis", "förskola")

	assert.True(t, d["dagis"].Has("förskola"))
	_, ok := d["förskola"]
	assert.False(t, ok)
}

func TestDictionary_CloneIsDeep(t *testing.T) {
	d := Dictionary{"a": NewSet("b")}
	cp := d.Clone()
	cp["a"].Add("c")

	assert.False(t, d["a"].Has("c"))
	assert.Equal(t, []string{"a"}, cp.Keys())
}

func TestExpansionText_HasNoDanglingOperators(t *testing.T) {
	dict := Dictionary{"a b c": NewSet("x y", `"q r"`)}
	frag := ExpandPhrase("a b c", dict["a b c"])

	assert.False(t, strings.HasSuffix(frag, OperatorOR))
	assert.Equal(t, `(a AND b AND c) OR ("q r") OR (x AND y)`, frag)
}
