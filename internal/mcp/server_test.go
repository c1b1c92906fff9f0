package mcp

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/synexpand/internal/backend"
	"github.com/Aman-CERP/synexpand/internal/config"
	"github.com/Aman-CERP/synexpand/internal/rewrite"
	"github.com/Aman-CERP/synexpand/internal/synonym"
	"github.com/Aman-CERP/synexpand/internal/telemetry"
)

func testDictionary() synonym.Dictionary {
	return synonym.Dictionary{
		"dagis":    synonym.NewSet("förskola", "lekis"),
		"tech now": synonym.NewSet("technology"),
	}
}

func staticProvider(dict synonym.Dictionary) synonym.Provider {
	return synonym.ProviderFunc(func(context.Context, time.Duration) (synonym.Dictionary, error) {
		return dict, nil
	})
}

func newTestServer(t *testing.T, provider synonym.Provider) *Server {
	t.Helper()
	s, err := NewServer(rewrite.New(provider), provider, config.NewConfig())
	require.NoError(t, err)
	return s
}

func newTestIndex(t *testing.T) *backend.Index {
	t.Helper()
	idx, err := backend.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Add(context.Background(), []backend.Document{
		{ID: "preschool", Fields: map[string]string{"title": "Förskola i Stockholm"}},
		{ID: "daycare", Fields: map[string]string{"title": "Dagis nära dig"}},
		{ID: "car", Fields: map[string]string{"title": "Red sports car"}},
	}))
	return idx
}

// =============================================================================
// Construction
// =============================================================================

func TestNewServer_RequiresRewriter(t *testing.T) {
	p := staticProvider(testDictionary())

	_, err := NewServer(nil, p, nil)
	assert.Error(t, err)

	_, err = NewServer(rewrite.New(p), nil, nil)
	assert.Error(t, err)
}

func TestNewServer_NilConfigUsesDefaults(t *testing.T) {
	p := staticProvider(testDictionary())

	s, err := NewServer(rewrite.New(p), p, nil)
	require.NoError(t, err)
	assert.NotNil(t, s.MCPServer())
	assert.Equal(t, time.Hour, s.refresh)
}

func TestNewServer_InvalidRefreshInterval(t *testing.T) {
	p := staticProvider(testDictionary())
	cfg := config.NewConfig()
	cfg.Synonyms.RefreshInterval = "soon"

	_, err := NewServer(rewrite.New(p), p, cfg)
	assert.Error(t, err)
}

func TestServer_Info(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))
	name, ver := s.Info()
	assert.Equal(t, "synexpand", name)
	assert.NotEmpty(t, ver)
}

func TestServer_ListTools(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	names := func() []string {
		var out []string
		for _, tool := range s.ListTools() {
			assert.NotEmpty(t, tool.Description)
			out = append(out, tool.Name)
		}
		return out
	}

	assert.Equal(t, []string{ToolRewriteQuery, ToolExplainSynonyms}, names())

	s.SetIndex(newTestIndex(t))
	assert.Equal(t, []string{ToolRewriteQuery, ToolExplainSynonyms, ToolSearch}, names())

	// A second index is ignored.
	s.SetIndex(newTestIndex(t))
	assert.Len(t, s.ListTools(), 3)
}

// =============================================================================
// rewrite_query
// =============================================================================

func TestCallTool_RewriteQuery(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	got, err := s.CallTool(context.Background(), ToolRewriteQuery, map[string]any{
		"body": `{"size":5,"query":{"query_string":{"query":"dagis"}}}`,
	})
	require.NoError(t, err)

	out, ok := got.(*RewriteOutput)
	require.True(t, ok, "expected *RewriteOutput, got %T", got)
	assert.True(t, out.Rewritten)
	assert.Equal(t, "merged", out.Stage)
	assert.Empty(t, out.Reason)
	assert.Equal(t, []string{"dagis"}, out.ToExpand)
	assert.Contains(t, out.Body, "förskola")
	assert.Contains(t, out.Body, `"size":5`)
}

func TestCallTool_RewriteQuery_NoTextClauseReturnsBodyUnchanged(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))
	body := `{ "query": {"match": {"title": "dagis"}} }`

	got, err := s.CallTool(context.Background(), ToolRewriteQuery, map[string]any{"body": body})
	require.NoError(t, err)

	out := got.(*RewriteOutput)
	assert.False(t, out.Rewritten)
	assert.Equal(t, "noop", out.Stage)
	assert.Equal(t, string(rewrite.ReasonNoTextClause), out.Reason)
	assert.Equal(t, body, out.Body)
}

func TestCallTool_RewriteQuery_NoSynonymsKeepsTerms(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	got, err := s.CallTool(context.Background(), ToolRewriteQuery, map[string]any{
		"body": `{"query":{"query_string":{"query":"red car"}}}`,
	})
	require.NoError(t, err)

	out := got.(*RewriteOutput)
	assert.Empty(t, out.ToExpand)
	assert.Equal(t, []string{"red", "car"}, out.NotToExpand)
	assert.Contains(t, out.Body, `"query":"red car"`)
}

func TestCallTool_RewriteQuery_Unsupported(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	got, err := s.CallTool(context.Background(), ToolRewriteQuery, map[string]any{
		"body":               `{"query":{"query_string":{"query":"dagis"}}}`,
		"synonyms_supported": false,
	})
	require.NoError(t, err)

	out := got.(*RewriteOutput)
	assert.False(t, out.Rewritten)
	assert.Equal(t, string(rewrite.ReasonUnsupported), out.Reason)
}

func TestCallTool_RewriteQuery_InvalidParams(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing body", map[string]any{}},
		{"blank body", map[string]any{"body": "  "}},
		{"body not an object", map[string]any{"body": `["dagis"]`}},
		{"malformed body", map[string]any{"body": `{"query":`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CallTool(context.Background(), ToolRewriteQuery, tt.args)
			require.Error(t, err)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestCallTool_RewriteQuery_ProviderFailure(t *testing.T) {
	failing := synonym.ProviderFunc(func(context.Context, time.Duration) (synonym.Dictionary, error) {
		return nil, errors.New("connection refused")
	})
	s := newTestServer(t, failing)

	_, err := s.CallTool(context.Background(), ToolRewriteQuery, map[string]any{
		"body": `{"query":{"query_string":{"query":"dagis"}}}`,
	})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeSynonymsUnavailable, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "synonyms.source")
}

// =============================================================================
// explain_synonyms
// =============================================================================

func TestCallTool_ExplainSynonyms(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	got, err := s.CallTool(context.Background(), ToolExplainSynonyms, map[string]any{"query": "Alloy tech now"})
	require.NoError(t, err)

	md, ok := got.(string)
	require.True(t, ok)
	assert.Contains(t, md, `## Synonym expansion for "Alloy tech now"`)
	assert.Contains(t, md, "- `tech now` → technology")
	assert.Contains(t, md, "**Not expanded:** `Alloy`")
	assert.Contains(t, md, "(tech AND now) OR (technology)")
}

func TestExplain_Output(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	out, err := s.explain(context.Background(), "dagis i stan")
	require.NoError(t, err)

	assert.Equal(t, []string{"dagis", "i", "stan"}, out.Terms)
	assert.Equal(t, []string{"dagis"}, out.ToExpand)
	assert.Equal(t, []string{"i", "stan"}, out.NotToExpand)
	assert.Equal(t, "i stan", out.Remainder)
	assert.Equal(t, "(dagis) OR (förskola) OR (lekis)", out.Expanded)
	assert.Equal(t, []string{"förskola", "lekis"}, out.Synonyms["dagis"])
}

func TestCallTool_ExplainSynonyms_EmptyQuery(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	_, err := s.CallTool(context.Background(), ToolExplainSynonyms, map[string]any{"query": " "})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

// =============================================================================
// search
// =============================================================================

func TestCallTool_Search_RequiresIndex(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	_, err := s.CallTool(context.Background(), ToolSearch, map[string]any{"query": "dagis"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)

	_, err = s.search(context.Background(), SearchInput{Query: "dagis"})
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeIndexUnavailable, mcpErr.Code)
}

func TestSearch_ExpandsWithSynonyms(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))
	s.SetIndex(newTestIndex(t))

	out, err := s.search(context.Background(), SearchInput{Query: "dagis"})
	require.NoError(t, err)

	ids := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	assert.True(t, out.Rewritten)
	assert.Equal(t, []string{"daycare", "preschool"}, ids)
	assert.Equal(t, uint64(2), out.Total)
}

func TestSearch_UnsupportedFallsBackToPlainQuery(t *testing.T) {
	p := staticProvider(testDictionary())
	cfg := config.NewConfig()
	cfg.Rewrite.SynonymsSupported = false
	s, err := NewServer(rewrite.New(p), p, cfg)
	require.NoError(t, err)
	s.SetIndex(newTestIndex(t))

	out, err := s.search(context.Background(), SearchInput{Query: "dagis"})
	require.NoError(t, err)
	assert.False(t, out.Rewritten)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "daycare", out.Results[0].ID)
}

func TestCallTool_Search_Markdown(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))
	s.SetIndex(newTestIndex(t))

	got, err := s.CallTool(context.Background(), ToolSearch, map[string]any{"query": "dagis", "limit": float64(1)})
	require.NoError(t, err)

	md := got.(string)
	assert.Contains(t, md, `## Search Results for "dagis"`)
	assert.Contains(t, md, "Found 1 result of 2 (expanded with synonyms)")
	assert.Contains(t, md, "- **title:**")
}

func TestCallTool_UnknownTool(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))

	_, err := s.CallTool(context.Background(), "nope", nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "nope")
}

func TestServe_UnknownTransport(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))
	err := s.Serve(context.Background(), "sse")
	assert.ErrorContains(t, err, "unknown transport")
}

// =============================================================================
// Telemetry
// =============================================================================

func TestServer_RecordsRewriteTelemetry(t *testing.T) {
	s := newTestServer(t, staticProvider(testDictionary()))
	s.SetIndex(newTestIndex(t))
	m := telemetry.New(nil)
	defer func() { _ = m.Close() }()
	s.SetMetrics(m)

	ctx := context.Background()
	_, err := s.CallTool(ctx, ToolRewriteQuery, map[string]any{
		"body": `{"query":{"query_string":{"query":"dagis i stan"}}}`,
	})
	require.NoError(t, err)
	_, err = s.CallTool(ctx, ToolRewriteQuery, map[string]any{
		"body":               `{"query":{"query_string":{"query":"dagis"}}}`,
		"synonyms_supported": false,
	})
	require.NoError(t, err)
	_, err = s.CallTool(ctx, ToolSearch, map[string]any{"query": "red car"})
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRewrites)
	assert.Equal(t, int64(2), snap.OutcomeCounts[telemetry.OutcomeMerged])
	assert.Equal(t, int64(1), snap.OutcomeCounts[string(rewrite.ReasonUnsupported)])
	assert.Equal(t, []telemetry.PhraseCount{{Phrase: "dagis", Count: 1}}, snap.TopPhrases)
	assert.Equal(t, []string{"red car"}, snap.UnexpandedQueries)
}
