package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
)

func TestRewriteCmd_Stdin(t *testing.T) {
	_, cfgPath := writeProject(t)

	out, _, err := execute(t, `{"query":{"query_string":{"query":"dagis"}}}`,
		"--config", cfgPath, "rewrite")
	require.NoError(t, err)

	require.True(t, gjson.Valid(out), out)
	assert.Equal(t, "(dagis) OR (förskola) OR (lekis)",
		gjson.Get(out, "query.bool.should.0.query_string.query").String())
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestRewriteCmd_BodyFile(t *testing.T) {
	dir, cfgPath := writeProject(t)
	body := filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(body,
		[]byte(`{"size":3,"query":{"query_string":{"query":"Alloy tech now","default_operator":"AND"}}}`), 0o644))

	out, _, err := execute(t, "", "--config", cfgPath, "rewrite", "--body", body)
	require.NoError(t, err)

	should := gjson.Get(out, "query.bool.should")
	require.Len(t, should.Array(), 2)
	assert.Equal(t, "Alloy", should.Get("0.query_string.query").String())
	assert.Equal(t, "100%", should.Get("0.query_string.minimum_should_match").String())
	assert.Equal(t, "(tech AND now) OR (technology)", should.Get("1.query_string.query").String())
	assert.Equal(t, int64(3), gjson.Get(out, "size").Int())
}

func TestRewriteCmd_UnsupportedIsByteIdentical(t *testing.T) {
	_, cfgPath := writeProject(t)
	body := `{ "query" : {"query_string": {"query": "dagis"}} }`

	out, stderr, err := execute(t, body, "--config", cfgPath, "rewrite", "--unsupported", "--summary")
	require.NoError(t, err)

	assert.Equal(t, body+"\n", out)
	assert.Contains(t, stderr, "stage: noop")
	assert.Contains(t, stderr, "reason: synonyms_unsupported")
}

func TestRewriteCmd_Summary(t *testing.T) {
	_, cfgPath := writeProject(t)

	_, stderr, err := execute(t, `{"query":{"query_string":{"query":"dagis nära"}}}`,
		"--config", cfgPath, "rewrite", "--summary")
	require.NoError(t, err)

	assert.Contains(t, stderr, "stage: merged")
	assert.Contains(t, stderr, `expanded: ["dagis"]`)
	assert.Contains(t, stderr, `kept: ["nära"]`)
}

func TestRewriteCmd_Pretty(t *testing.T) {
	_, cfgPath := writeProject(t)

	out, _, err := execute(t, `{"query":{"query_string":{"query":"dagis"}}}`,
		"--config", cfgPath, "rewrite", "--pretty")
	require.NoError(t, err)

	assert.Contains(t, out, "\n  \"query\": {")
	assert.True(t, json.Valid([]byte(out)))
}

func TestRewriteCmd_InvalidBody(t *testing.T) {
	_, cfgPath := writeProject(t)

	_, _, err := execute(t, `{"query":`, "--config", cfgPath, "rewrite")
	require.Error(t, err)
	assert.ErrorIs(t, err, &synerrors.SynError{Code: synerrors.ErrCodeInvalidBody})
}

func TestRewriteCmd_MissingBodyFile(t *testing.T) {
	_, cfgPath := writeProject(t)

	_, _, err := execute(t, "", "--config", cfgPath, "rewrite", "--body", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, &synerrors.SynError{Code: synerrors.ErrCodeFileNotFound})
}
