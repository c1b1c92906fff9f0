package synonym

import "strings"

// ExpandPhrase builds the expansion fragment for one phrase: the phrase and
// each of its synonyms become one parenthesised disjunct, joined with OR.
// Unquoted multi-word disjuncts are AND-joined internally because the
// backend grammar would otherwise OR their words.
//
//	ExpandPhrase("tech now", {"technology"})       => (tech AND now) OR (technology)
//	ExpandPhrase("dagis", {"förskola", "lekis"})   => (dagis) OR (förskola) OR (lekis)
//
// Synonyms are emitted in lexical order; a synonym equal to the phrase is
// skipped.
func ExpandPhrase(phrase string, synonyms Set) string {
	disjuncts := make([]string, 0, len(synonyms)+1)
	disjuncts = append(disjuncts, group(Conjoin(phrase)))
	for _, syn := range synonyms.Sorted() {
		syn = strings.TrimSpace(syn)
		if syn == "" || syn == phrase {
			continue
		}
		disjuncts = append(disjuncts, group(Conjoin(syn)))
	}
	return strings.Join(disjuncts, " "+OperatorOR+" ")
}

// ExpandAll returns one fragment per expandable phrase in the partition, in
// partition order.
func ExpandAll(p Partition, dict Dictionary) []string {
	fragments := make([]string, 0, len(p.ToExpand))
	for _, phrase := range p.ToExpand {
		fragments = append(fragments, ExpandPhrase(phrase, dict[phrase]))
	}
	return fragments
}

// JoinFragments renders fragments as the text of a single query_string
// clause. A lone fragment is returned as-is; several are grouped and
// separated by whitespace so the backend default operator ORs them.
func JoinFragments(fragments []string) string {
	switch len(fragments) {
	case 0:
		return ""
	case 1:
		return fragments[0]
	}
	grouped := make([]string, len(fragments))
	for i, f := range fragments {
		grouped[i] = group(f)
	}
	return strings.Join(grouped, " ")
}

func group(s string) string {
	return "(" + s + ")"
}
