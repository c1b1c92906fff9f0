package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// maxUnexpandedQueries bounds the unexpanded_queries table.
const maxUnexpandedQueries = 100

const schema = `
-- Rewrite outcomes (aggregated daily)
CREATE TABLE IF NOT EXISTS rewrite_outcome_stats (
	date TEXT NOT NULL,
	outcome TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, outcome)
);

-- Expanded phrases (with frequency count)
CREATE TABLE IF NOT EXISTS expanded_phrases (
	phrase TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 1,
	last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_expanded_phrases_count ON expanded_phrases(count DESC);

-- Queries with no dictionary match (circular buffer)
CREATE TABLE IF NOT EXISTS unexpanded_queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT NOT NULL,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Latency histogram
CREATE TABLE IF NOT EXISTS rewrite_latency_stats (
	date TEXT NOT NULL,
	bucket TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, bucket)
);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	owns bool
}

// OpenSQLiteStore opens (or creates) a telemetry database at path. An empty
// path opens an in-memory database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create telemetry directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragma: %w", err)
	}
	if err := InitSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, owns: true}, nil
}

// NewSQLiteStore wraps a database owned by the caller. The schema must
// already exist (see InitSchema).
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteStore{db: db}, nil
}

// InitSchema creates the telemetry tables if they don't exist.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// SaveOutcomeCounts adds to the daily outcome counts.
func (s *SQLiteStore) SaveOutcomeCounts(date string, counts map[string]int64) error {
	return s.upsertDaily(`
		INSERT INTO rewrite_outcome_stats (date, outcome, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, outcome) DO UPDATE SET count = count + excluded.count
	`, date, counts)
}

// GetOutcomeCounts sums outcome counts over a date range (inclusive).
func (s *SQLiteStore) GetOutcomeCounts(from, to string) (map[string]int64, error) {
	return s.sumDaily(`
		SELECT outcome, SUM(count) as total
		FROM rewrite_outcome_stats
		WHERE date >= ? AND date <= ?
		GROUP BY outcome
	`, from, to)
}

// UpsertPhraseCounts adds to the phrase frequency counts.
func (s *SQLiteStore) UpsertPhraseCounts(phrases map[string]int64) error {
	if len(phrases) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO expanded_phrases (phrase, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(phrase) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for phrase, count := range phrases {
		if _, err := stmt.Exec(phrase, count); err != nil {
			return fmt.Errorf("upsert phrase count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTopPhrases retrieves the top N phrases by frequency.
func (s *SQLiteStore) GetTopPhrases(limit int) ([]PhraseCount, error) {
	rows, err := s.db.Query(`
		SELECT phrase, count
		FROM expanded_phrases
		ORDER BY count DESC, phrase
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top phrases: %w", err)
	}
	defer rows.Close()

	var phrases []PhraseCount
	for rows.Next() {
		var pc PhraseCount
		if err := rows.Scan(&pc.Phrase, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		phrases = append(phrases, pc)
	}
	return phrases, rows.Err()
}

// AddUnexpandedQuery appends a query, keeping only the newest
// maxUnexpandedQueries entries.
func (s *SQLiteStore) AddUnexpandedQuery(query string, timestamp time.Time) error {
	if _, err := s.db.Exec(`
		INSERT INTO unexpanded_queries (query, timestamp)
		VALUES (?, ?)
	`, query, timestamp); err != nil {
		return fmt.Errorf("insert unexpanded query: %w", err)
	}

	if _, err := s.db.Exec(`
		DELETE FROM unexpanded_queries
		WHERE id NOT IN (
			SELECT id FROM unexpanded_queries
			ORDER BY id DESC
			LIMIT ?
		)
	`, maxUnexpandedQueries); err != nil {
		return fmt.Errorf("trim unexpanded queries: %w", err)
	}
	return nil
}

// GetUnexpandedQueries retrieves recent unexpanded queries, newest first.
func (s *SQLiteStore) GetUnexpandedQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query
		FROM unexpanded_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unexpanded queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveLatencyCounts adds to the daily latency histogram.
func (s *SQLiteStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	byName := make(map[string]int64, len(counts))
	for b, n := range counts {
		byName[string(b)] = n
	}
	return s.upsertDaily(`
		INSERT INTO rewrite_latency_stats (date, bucket, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
	`, date, byName)
}

// GetLatencyCounts sums the latency histogram over a date range.
func (s *SQLiteStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	byName, err := s.sumDaily(`
		SELECT bucket, SUM(count) as total
		FROM rewrite_latency_stats
		WHERE date >= ? AND date <= ?
		GROUP BY bucket
	`, from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[LatencyBucket]int64, len(byName))
	for name, n := range byName {
		counts[LatencyBucket(name)] = n
	}
	return counts, nil
}

func (s *SQLiteStore) upsertDaily(stmtSQL, date string, counts map[string]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(stmtSQL)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, count := range counts {
		if _, err := stmt.Exec(date, key, count); err != nil {
			return fmt.Errorf("insert daily count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) sumDaily(querySQL, from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(querySQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.owns {
		return nil
	}
	return s.db.Close()
}

// Report reads a Snapshot covering the last days days (including today)
// from a store. Expansion and repetition counts are not persisted and stay
// zero.
func Report(store Store, days, limit int, now time.Time) (*Snapshot, error) {
	if days <= 0 {
		days = 1
	}
	start := now.AddDate(0, 0, -(days - 1))
	from, to := start.Format("2006-01-02"), now.Format("2006-01-02")

	outcomes, err := store.GetOutcomeCounts(from, to)
	if err != nil {
		return nil, err
	}
	latencies, err := store.GetLatencyCounts(from, to)
	if err != nil {
		return nil, err
	}
	phrases, err := store.GetTopPhrases(limit)
	if err != nil {
		return nil, err
	}
	unexpanded, err := store.GetUnexpandedQueries(limit)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		OutcomeCounts:       outcomes,
		TopPhrases:          phrases,
		UnexpandedQueries:   unexpanded,
		LatencyDistribution: latencies,
		Since:               time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()),
	}
	for _, n := range outcomes {
		snap.TotalRewrites += n
	}
	return snap, nil
}
