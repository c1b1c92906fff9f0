package synonym

// Partition splits a tokenized query into the phrases that have synonyms and
// the remaining terms that are searched as-is.
type Partition struct {
	// Terms is the tokenized query the partition was computed from.
	Terms []string

	// ToExpand holds the query phrases that are dictionary keys, ordered by
	// where they first occur in the query (start index, then length).
	ToExpand []string

	// NotToExpand holds the original terms, in query order and without
	// duplicates, that neither are an expandable phrase nor appear as a word
	// of one.
	NotToExpand []string
}

// Empty reports whether there is nothing left to search for.
func (p Partition) Empty() bool {
	return len(p.ToExpand) == 0 && len(p.NotToExpand) == 0
}

// Match intersects every phrase variation of terms with the dictionary keys
// and computes the complementary remainder.
//
// A word that belongs to an expandable multi-word phrase is removed from the
// remainder everywhere in the query, even where it occurs on its own. This
// can over-suppress a word that is repeated with a different meaning; it is
// the established behavior and callers rely on the remainder and the
// expansions never sharing a term.
func Match(terms []string, dict Dictionary) Partition {
	p := Partition{Terms: terms}
	if len(terms) == 0 {
		return p
	}

	seen := make(Set)
	for _, span := range Variations(terms) {
		if seen.Has(span.Phrase) {
			continue
		}
		if _, ok := dict[span.Phrase]; ok {
			seen.Add(span.Phrase)
			p.ToExpand = append(p.ToExpand, span.Phrase)
		}
	}

	suppressed := make(Set, len(p.ToExpand))
	for _, phrase := range p.ToExpand {
		suppressed.Add(phrase)
		for _, word := range Tokenize(phrase) {
			suppressed.Add(word)
		}
	}

	kept := make(Set, len(terms))
	for _, term := range terms {
		if suppressed.Has(term) || kept.Has(term) {
			continue
		}
		kept.Add(term)
		p.NotToExpand = append(p.NotToExpand, term)
	}

	return p
}
