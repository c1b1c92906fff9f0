package telemetry

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OutcomeCounts_Incremental(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveOutcomeCounts("2026-10-18", map[string]int64{"merged": 5, "no_query": 1}))
	require.NoError(t, store.SaveOutcomeCounts("2026-10-19", map[string]int64{"merged": 3}))

	got, err := store.GetOutcomeCounts("2026-10-19", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"merged": 3}, got)

	got, err = store.GetOutcomeCounts("2026-10-01", "2026-10-31")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"merged": 8, "no_query": 1}, got)
}

func TestSQLiteStore_TopPhrases(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertPhraseCounts(map[string]int64{"dagis": 2, "tech now": 1}))
	require.NoError(t, store.UpsertPhraseCounts(map[string]int64{"tech now": 4}))
	require.NoError(t, store.UpsertPhraseCounts(nil))

	got, err := store.GetTopPhrases(1)
	require.NoError(t, err)
	assert.Equal(t, []PhraseCount{{Phrase: "tech now", Count: 5}}, got)
}

func TestSQLiteStore_UnexpandedQueries_Trimmed(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	for i := 0; i < maxUnexpandedQueries+5; i++ {
		require.NoError(t, store.AddUnexpandedQuery(fmt.Sprintf("q%d", i), now))
	}

	got, err := store.GetUnexpandedQueries(1000)
	require.NoError(t, err)
	require.Len(t, got, maxUnexpandedQueries)
	assert.Equal(t, fmt.Sprintf("q%d", maxUnexpandedQueries+4), got[0], "newest first")
}

func TestSQLiteStore_LatencyCounts(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveLatencyCounts("2026-10-19", map[LatencyBucket]int64{BucketP1: 10, BucketSlow: 1}))
	require.NoError(t, store.SaveLatencyCounts("2026-10-19", map[LatencyBucket]int64{BucketP1: 2}))

	got, err := store.GetLatencyCounts("2026-10-19", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, map[LatencyBucket]int64{BucketP1: 12, BucketSlow: 1}, got)
}

func TestNewSQLiteStore_SharedDB(t *testing.T) {
	_, err := NewSQLiteStore(nil)
	require.Error(t, err)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()
	require.NoError(t, InitSchema(db))

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	require.NoError(t, store.SaveOutcomeCounts("2026-10-19", map[string]int64{"merged": 1}))
	require.NoError(t, store.Close())

	// The caller's database is still open.
	require.NoError(t, db.Ping())
}

func TestReport(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveOutcomeCounts("2026-10-12", map[string]int64{"merged": 100}))
	require.NoError(t, store.SaveOutcomeCounts("2026-10-18", map[string]int64{"merged": 4, "no_query": 1}))
	require.NoError(t, store.SaveLatencyCounts("2026-10-19", map[LatencyBucket]int64{BucketP1: 5}))
	require.NoError(t, store.UpsertPhraseCounts(map[string]int64{"dagis": 4}))
	require.NoError(t, store.AddUnexpandedQuery("red bicycle", now))

	snap, err := Report(store, 7, 10, now)
	require.NoError(t, err)

	assert.Equal(t, int64(5), snap.TotalRewrites)
	assert.Equal(t, map[string]int64{"merged": 4, "no_query": 1}, snap.OutcomeCounts)
	assert.Equal(t, int64(5), snap.LatencyDistribution[BucketP1])
	assert.Equal(t, []PhraseCount{{Phrase: "dagis", Count: 4}}, snap.TopPhrases)
	assert.Equal(t, []string{"red bicycle"}, snap.UnexpandedQueries)
	assert.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), snap.Since)
}
