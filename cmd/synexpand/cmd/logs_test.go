package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLog = `{"time":"2026-03-01T10:00:00.000Z","level":"INFO","msg":"serve_started","transport":"stdio"}
{"time":"2026-03-01T10:00:01.000Z","level":"DEBUG","msg":"rewrite_complete","stage":"merged"}
{"time":"2026-03-01T10:00:02.000Z","level":"WARN","msg":"synonyms_refresh_failed","error":"boom"}
not json
`

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synexpand.log")
	require.NoError(t, os.WriteFile(path, []byte(testLog), 0o644))
	return path
}

func TestLogsCmd_Tail(t *testing.T) {
	path := writeLog(t)

	out, stderr, err := execute(t, "", "logs", "--file", path, "--no-color")
	require.NoError(t, err)

	assert.Contains(t, stderr, "Log file: "+path)
	assert.Contains(t, out, "INFO  serve_started transport=stdio")
	assert.Contains(t, out, "rewrite_complete stage=merged")
	assert.Contains(t, out, "not json")
}

func TestLogsCmd_Lines(t *testing.T) {
	path := writeLog(t)

	out, _, err := execute(t, "", "logs", "--file", path, "--no-color", "-n", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "synonyms_refresh_failed")
	assert.Equal(t, "not json", lines[1])
}

func TestLogsCmd_LevelAndFilter(t *testing.T) {
	path := writeLog(t)

	out, _, err := execute(t, "", "logs", "--file", path, "--no-color", "--level", "warn")
	require.NoError(t, err)
	assert.NotContains(t, out, "serve_started")
	assert.Contains(t, out, "synonyms_refresh_failed")

	out, _, err = execute(t, "", "logs", "--file", path, "--no-color", "--filter", "rewrite_")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "rewrite_complete")
}

func TestLogsCmd_InvalidFilter(t *testing.T) {
	path := writeLog(t)

	_, _, err := execute(t, "", "logs", "--file", path, "--filter", "(")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	_, _, err := execute(t, "", "logs", "--file", filepath.Join(t.TempDir(), "none.log"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file not found")
}
