package validation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/synexpand/internal/backend"
	"github.com/Aman-CERP/synexpand/internal/cache"
	"github.com/Aman-CERP/synexpand/internal/config"
	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/mcp"
	"github.com/Aman-CERP/synexpand/internal/rewrite"
	"github.com/Aman-CERP/synexpand/internal/source"
)

func newServer(t *testing.T, withIndex bool) *mcp.Server {
	t.Helper()
	cached := cache.New(source.NewStatic(source.Builtin()))
	t.Cleanup(func() { _ = cached.Close() })

	s, err := mcp.NewServer(rewrite.New(cached), cached, config.NewConfig())
	require.NoError(t, err)

	if withIndex {
		idx, err := backend.Open("")
		require.NoError(t, err)
		t.Cleanup(func() { _ = idx.Close() })
		require.NoError(t, idx.Add(context.Background(), []backend.Document{
			{ID: "preschool", Fields: map[string]string{"title": "Förskola i Stockholm"}},
			{ID: "daycare", Fields: map[string]string{"title": "Dagis nära dig"}},
			{ID: "car", Fields: map[string]string{"title": "Red sports car"}},
		}))
		s.SetIndex(idx)
	}
	return s
}

func loadTestQueries(t *testing.T) *QueryConfig {
	t.Helper()
	cfg, err := LoadQueries(filepath.Join("testdata", "queries.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestLoadQueries(t *testing.T) {
	cfg := loadTestQueries(t)

	assert.Len(t, cfg.Expansion, 4)
	assert.Len(t, cfg.Search, 2)
	assert.Len(t, cfg.Negative, 3)
	assert.Equal(t, 9, cfg.Len())

	for _, spec := range cfg.Expansion {
		assert.Equal(t, KindExpansion, spec.Kind)
	}
	for _, spec := range cfg.Search {
		assert.Equal(t, KindSearch, spec.Kind)
	}
	for _, spec := range cfg.Negative {
		assert.Equal(t, KindNegative, spec.Kind)
	}
}

func TestLoadQueries_Missing(t *testing.T) {
	_, err := LoadQueries(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, &synerrors.SynError{Code: synerrors.ErrCodeFileNotFound})
}

func TestParseQueries_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "expansion: [: nope"},
		{"missing id", "expansion:\n  - query: dagis\n    expected: [dagis]\n"},
		{"no expectation", "search:\n  - id: S1\n    query: dagis\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQueries([]byte(tt.yaml))
			require.Error(t, err)
			se, ok := synerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, synerrors.CategoryValidation, se.Category)
		})
	}
}

func TestParseQueries_NegativeNeedsNoExpectation(t *testing.T) {
	cfg, err := ParseQueries([]byte("negative:\n  - id: N1\n    query: ''\n"))
	require.NoError(t, err)
	require.Len(t, cfg.Negative, 1)
}

func TestNewValidator_RequiresServer(t *testing.T) {
	_, err := NewValidator(nil)
	assert.Error(t, err)
}

func TestRunAll_WithIndex(t *testing.T) {
	v, err := NewValidator(newServer(t, true))
	require.NoError(t, err)

	res := v.RunAll(context.Background(), loadTestQueries(t))

	for _, group := range [][]TestResult{res.Expansion, res.Search, res.Negative} {
		for _, tr := range group {
			assert.True(t, tr.Passed, "%s: got %v, error %q", tr.Spec.ID, tr.TopResults, tr.Error)
		}
	}
	assert.Equal(t, 4, res.ExpansionPass)
	assert.Equal(t, 2, res.SearchPass)
	assert.Equal(t, 0, res.SearchSkipped)
	assert.Equal(t, 3, res.NegPass)
	assert.Zero(t, res.Failed())
}

func TestRunAll_WithoutIndexSkipsSearch(t *testing.T) {
	v, err := NewValidator(newServer(t, false))
	require.NoError(t, err)

	res := v.RunAll(context.Background(), loadTestQueries(t))

	assert.Equal(t, 2, res.SearchSkipped)
	assert.Zero(t, res.SearchPass)
	for _, tr := range res.Search {
		assert.True(t, tr.Skipped)
	}
	assert.Zero(t, res.Failed())
}

func TestRunQuery_ExpansionFailure(t *testing.T) {
	v, err := NewValidator(newServer(t, false))
	require.NoError(t, err)

	tr := v.RunQuery(context.Background(), QuerySpec{
		ID:       "X1",
		Query:    "red bicycle",
		Expected: []string{"bicycle"},
		Kind:     KindExpansion,
	})
	assert.False(t, tr.Passed)
	assert.Equal(t, -1, tr.MatchedAt)
	assert.Empty(t, tr.Error)
}

func TestRunQuery_NegativeAcceptsErrors(t *testing.T) {
	v, err := NewValidator(newServer(t, false))
	require.NoError(t, err)

	// Nothing to expand and nothing expected.
	tr := v.RunQuery(context.Background(), QuerySpec{ID: "N", Query: "", Kind: KindNegative})
	assert.True(t, tr.Passed)
}

func TestExtractHitIDs(t *testing.T) {
	text := "## Search Results for \"dagis\"\n\nFound 2 results\n\n" +
		"### 1. daycare (score 0.912)\n- **title:** Dagis nära dig\n\n" +
		"### 2. docs.jsonl:3 (score 0.101)\n"

	assert.Equal(t, []string{"daycare", "docs.jsonl:3"}, extractHitIDs(text))
	assert.Empty(t, extractHitIDs("No results found for \"x\""))
}

func TestCheckAnyAndAll(t *testing.T) {
	ok, at := checkAny([]string{"a", "b", "c"}, []string{"z", "b"})
	assert.True(t, ok)
	assert.Equal(t, 1, at)

	ok, at = checkAny([]string{"a"}, []string{"z"})
	assert.False(t, ok)
	assert.Equal(t, -1, at)

	ok, at = checkAll([]string{"nyc", "dagis"}, []string{"dagis", "NYC"})
	assert.True(t, ok)
	assert.Equal(t, 1, at)

	ok, _ = checkAll([]string{"nyc"}, []string{"nyc", "dagis"})
	assert.False(t, ok)
}
