package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/synexpand/internal/cache"
	"github.com/Aman-CERP/synexpand/internal/query"
	"github.com/Aman-CERP/synexpand/internal/rewrite"
	"github.com/Aman-CERP/synexpand/internal/source"
	"github.com/Aman-CERP/synexpand/internal/watcher"
)

// Watcher Integration Tests - editing the synonyms file while a rewriter is
// serving must become visible without a restart.

func expandedPhrases(t *testing.T, rw *rewrite.Rewriter, text string) []string {
	t.Helper()
	res, err := rw.Rewrite(context.Background(), &query.Request{
		SynonymsSupported: true,
		Query:             query.NewText(text),
	}, 0)
	require.NoError(t, err)
	return res.Partition.ToExpand
}

// TestWatcher_EditedSynonymsReachRewriter tests the watch -> invalidate ->
// background reload path.
func TestWatcher_EditedSynonymsReachRewriter(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a rewriter over a cached YAML dictionary and a watcher on the file
	dir := t.TempDir()
	path := filepath.Join(dir, "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms:\n  dagis: förskola\n"), 0o644))

	c := cache.New(source.NewYAMLFile(path), cache.WithDefaultTTL(time.Hour))
	defer func() { _ = c.Close() }()
	rw := rewrite.New(c)

	assert.Equal(t, []string{"dagis"}, expandedPhrases(t, rw, "dagis bil"))

	w, err := watcher.New(watcher.Options{DebounceWindow: 50 * time.Millisecond}, path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changed := make(chan struct{}, 1)
	go func() {
		_ = w.Run(ctx, func([]watcher.FileEvent) {
			c.Invalidate()
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Wait for watcher to initialize
	time.Sleep(200 * time.Millisecond)

	// When: the file gains an entry
	require.NoError(t, os.WriteFile(path, []byte("synonyms:\n  dagis: förskola\n  bil: car\n"), 0o644))

	select {
	case <-changed:
	case <-ctx.Done():
		t.Fatal("Timed out waiting for change event")
	}

	// Then: the rewriter picks it up once the background reload lands
	require.Eventually(t, func() bool {
		return len(expandedPhrases(t, rw, "dagis bil")) == 2
	}, 5*time.Second, 50*time.Millisecond)
}

// TestWatcher_BrokenEditKeepsLastGoodDictionary tests that a malformed file
// does not replace the snapshot being served.
func TestWatcher_BrokenEditKeepsLastGoodDictionary(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms:\n  dagis: förskola\n"), 0o644))

	c := cache.New(source.NewYAMLFile(path), cache.WithDefaultTTL(time.Hour))
	defer func() { _ = c.Close() }()
	rw := rewrite.New(c)
	require.Equal(t, []string{"dagis"}, expandedPhrases(t, rw, "dagis"))

	// When: the file is broken and the cache invalidated
	require.NoError(t, os.WriteFile(path, []byte("synonyms: [oops\n"), 0o644))
	c.Invalidate()

	// Then: reads keep serving the previous dictionary
	for i := 0; i < 10; i++ {
		assert.Equal(t, []string{"dagis"}, expandedPhrases(t, rw, "dagis"))
		time.Sleep(20 * time.Millisecond)
	}
}

// TestWatcher_DeletedFileIsReported tests that removing the watched file
// emits an event the server can react to.
func TestWatcher_DeletedFileIsReported(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms: {}\n"), 0o644))

	w, err := watcher.New(watcher.Options{DebounceWindow: 50 * time.Millisecond}, path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan []watcher.FileEvent, 4)
	go func() {
		_ = w.Run(ctx, func(events []watcher.FileEvent) { got <- events })
	}()
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.Remove(path))

	for {
		select {
		case events := <-got:
			for _, e := range events {
				if e.Operation == watcher.OpDelete || e.Operation == watcher.OpRename {
					return
				}
			}
		case <-ctx.Done():
			t.Fatal("Timed out waiting for delete event")
		}
	}
}
