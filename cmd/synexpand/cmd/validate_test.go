package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/synexpand/internal/validation"
)

const testCases = `expansion:
  - id: E1
    name: preschool
    query: dagis
    expected: [dagis]
search:
  - id: S1
    query: dagis
    expected: [preschool]
negative:
  - id: N1
    query: '"tech'
`

func writeCases(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCmd_Pass(t *testing.T) {
	dir, cfgPath := writeProject(t)
	cases := writeCases(t, dir, testCases)

	out, _, err := execute(t, "", "--config", cfgPath, "validate", cases, "--docs", filepath.Join(dir, "docs.jsonl"))
	require.NoError(t, err)

	assert.Contains(t, out, "E1 preschool")
	assert.Contains(t, out, "expansion: 1/1")
	assert.Contains(t, out, "search: 1/1 (0 skipped)")
}

func TestValidateCmd_SkipsSearchWithoutDocs(t *testing.T) {
	dir, cfgPath := writeProject(t)
	cases := writeCases(t, dir, testCases)

	out, _, err := execute(t, "", "--config", cfgPath, "validate", cases)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped, no index")
}

func TestValidateCmd_FailureIsAnError(t *testing.T) {
	dir, cfgPath := writeProject(t)
	cases := writeCases(t, dir, "expansion:\n  - id: E9\n    query: red bicycle\n    expected: [bicycle]\n")

	out, _, err := execute(t, "", "--config", cfgPath, "validate", cases, "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 case(s) did not pass")

	var res validation.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Expansion, 1)
	assert.False(t, res.Expansion[0].Passed)
}
