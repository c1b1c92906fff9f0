package cmd

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
)

func searchIDs(t *testing.T, out string) []string {
	t.Helper()
	var res searchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestSearchCmd_ExpandsWithSynonyms(t *testing.T) {
	dir, cfgPath := writeProject(t)
	docs := filepath.Join(dir, "docs.jsonl")

	out, _, err := execute(t, "", "--config", cfgPath, "search", "dagis", "--docs", docs, "--format", "json")
	require.NoError(t, err)

	assert.Equal(t, []string{"daycare", "preschool"}, searchIDs(t, out))
	assert.True(t, gjson.Get(out, "rewritten").Bool())
	assert.Equal(t, "(dagis) OR (förskola) OR (lekis)",
		gjson.Get(out, "request.query.bool.should.0.query_string.query").String())
}

func TestSearchCmd_NoSynonyms(t *testing.T) {
	dir, cfgPath := writeProject(t)
	docs := filepath.Join(dir, "docs.jsonl")

	out, _, err := execute(t, "", "--config", cfgPath, "search", "dagis", "--docs", docs, "--format", "json", "--no-synonyms")
	require.NoError(t, err)

	assert.Equal(t, []string{"daycare"}, searchIDs(t, out))
	assert.False(t, gjson.Get(out, "rewritten").Bool())
}

func TestSearchCmd_Text(t *testing.T) {
	dir, cfgPath := writeProject(t)
	docs := filepath.Join(dir, "docs.jsonl")

	out, _, err := execute(t, "", "--config", cfgPath, "search", "auto", "--docs", docs)
	require.NoError(t, err)

	assert.Contains(t, out, "expanded with synonyms")
	assert.Contains(t, out, "1. car")
	assert.Contains(t, out, "title: Red sports car")
}

func TestSearchCmd_NoResults(t *testing.T) {
	dir, cfgPath := writeProject(t)
	docs := filepath.Join(dir, "docs.jsonl")

	out, _, err := execute(t, "", "--config", cfgPath, "search", "bicycle", "--docs", docs)
	require.NoError(t, err)
	assert.Contains(t, out, `No results found for "bicycle"`)
}

func TestSearchCmd_NothingToSearch(t *testing.T) {
	_, cfgPath := writeProject(t)

	_, _, err := execute(t, "", "--config", cfgPath, "search", "dagis")
	require.Error(t, err)
	se, ok := synerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, synerrors.CategoryValidation, se.Category)
}
