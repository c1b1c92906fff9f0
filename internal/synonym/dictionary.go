// Package synonym implements phrase-level synonym expansion for free-text
// search queries.
//
// The pipeline is:
//
//	Tokenize -> Variations -> Match -> ExpandAll
//
// Tokenize splits the query into terms (quoted spans stay whole), Variations
// enumerates every contiguous phrase, Match intersects those phrases with the
// dictionary and computes the remainder that must not be expanded, and
// ExpandAll turns each expandable phrase into an OR-of-ANDs fragment.
package synonym

import (
	"context"
	"sort"
	"time"
)

// Set is an unordered set of synonym phrases.
type Set map[string]struct{}

// NewSet builds a Set from the given phrases.
func NewSet(phrases ...string) Set {
	s := make(Set, len(phrases))
	for _, p := range phrases {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts a phrase.
func (s Set) Add(phrase string) {
	s[phrase] = struct{}{}
}

// Has reports whether the phrase is in the set.
func (s Set) Has(phrase string) bool {
	_, ok := s[phrase]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Dictionary maps a phrase to the set of phrases that may replace it.
// Entries are not required to be reciprocal.
type Dictionary map[string]Set

// Add records synonyms for phrase, merging with any existing entry.
func (d Dictionary) Add(phrase string, synonyms ...string) {
	set, ok := d[phrase]
	if !ok {
		set = make(Set, len(synonyms))
		d[phrase] = set
	}
	for _, s := range synonyms {
		set.Add(s)
	}
}

// AddGroup makes every member of the group a synonym of every other member.
func (d Dictionary) AddGroup(members ...string) {
	for i, m := range members {
		others := make([]string, 0, len(members)-1)
		for j, o := range members {
			if i != j && o != m {
				others = append(others, o)
			}
		}
		d.Add(m, others...)
	}
}

// Clone returns a deep copy. Snapshots handed to readers must not share sets
// with a dictionary that is still being built.
func (d Dictionary) Clone() Dictionary {
	out := make(Dictionary, len(d))
	for k, set := range d {
		cp := make(Set, len(set))
		for s := range set {
			cp[s] = struct{}{}
		}
		out[k] = cp
	}
	return out
}

// Keys returns the dictionary phrases in lexical order.
func (d Dictionary) Keys() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Loader fetches a complete dictionary from its backing store.
// Implementations must be safe for concurrent use.
type Loader interface {
	Load(ctx context.Context) (Dictionary, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Dictionary, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) (Dictionary, error) {
	return f(ctx)
}

// Provider returns the live dictionary, refreshed no more often than the
// given interval. A zero interval selects the provider's default.
// The returned dictionary is shared and must be treated as read-only.
type Provider interface {
	Synonyms(ctx context.Context, refresh time.Duration) (Dictionary, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, refresh time.Duration) (Dictionary, error)

// Synonyms calls f(ctx, refresh).
func (f ProviderFunc) Synonyms(ctx context.Context, refresh time.Duration) (Dictionary, error) {
	return f(ctx, refresh)
}
