package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/synexpand/internal/config"
	"github.com/Aman-CERP/synexpand/internal/telemetry"
)

// writeTelemetry records a few rewrites into a fresh database.
func writeTelemetry(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telemetry.db")

	store, err := telemetry.OpenSQLiteStore(path)
	require.NoError(t, err)
	m := telemetry.NewWithConfig(store, telemetry.Config{})
	m.Record(telemetry.RewriteEvent{Query: "dagis", Outcome: telemetry.OutcomeMerged, Expanded: []string{"dagis"}})
	m.Record(telemetry.RewriteEvent{Query: "dagis nära", Outcome: telemetry.OutcomeMerged, Expanded: []string{"dagis"}})
	m.Record(telemetry.RewriteEvent{Query: "red bicycle", Outcome: telemetry.OutcomeMerged})
	m.Record(telemetry.RewriteEvent{Query: "", Outcome: "no_query", Latency: 30 * time.Millisecond})
	require.NoError(t, m.Close())
	require.NoError(t, store.Close())
	return path
}

func TestStatsCmd_Text(t *testing.T) {
	path := writeTelemetry(t)

	out, _, err := execute(t, "", "stats", "--db", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Rewrites over the last 7 day(s): 4")
	assert.Contains(t, out, "merged: 3")
	assert.Contains(t, out, "no_query: 1")
	assert.Contains(t, out, "p100: 1")
	assert.Contains(t, out, "- dagis (2)")
	assert.Contains(t, out, "- red bicycle")
}

func TestStatsCmd_JSON(t *testing.T) {
	path := writeTelemetry(t)

	out, _, err := execute(t, "", "stats", "--db", path, "--json", "--days", "1")
	require.NoError(t, err)

	var snap telemetry.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, int64(4), snap.TotalRewrites)
	assert.Equal(t, []telemetry.PhraseCount{{Phrase: "dagis", Count: 2}}, snap.TopPhrases)
}

func TestStatsCmd_NothingRecorded(t *testing.T) {
	out, _, err := execute(t, "", "stats", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No telemetry recorded yet")
}

func TestOpenServeMetrics(t *testing.T) {
	_, cfgPath := writeProject(t)
	cfg, err := config.LoadFile(cfgPath)
	require.NoError(t, err)

	m, closeMetrics := openServeMetrics(cfg)
	assert.Nil(t, m, "disabled by default")
	closeMetrics()

	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Path = filepath.Join(t.TempDir(), "telemetry.db")
	m, closeMetrics = openServeMetrics(cfg)
	require.NotNil(t, m)
	m.Record(telemetry.RewriteEvent{Query: "dagis", Outcome: telemetry.OutcomeMerged, Expanded: []string{"dagis"}})
	closeMetrics()

	out, _, err := execute(t, "", "stats", "--db", cfg.Telemetry.Path, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"phrase": "dagis"`)
}
