package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/synonym"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS synonyms (
	phrase  TEXT NOT NULL,
	synonym TEXT NOT NULL,
	PRIMARY KEY (phrase, synonym)
) WITHOUT ROWID;
`

// SQLiteStore keeps a dictionary in a SQLite database. Loads read the whole
// table; imports run in one transaction under a file lock, so readers in
// other processes see either the old or the new dictionary.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	lock   *FileLock
	closed bool
}

// OpenSQLite opens (or creates) a store at path. An empty path opens an
// in-memory store, for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, synerrors.New(synerrors.ErrCodeFilePermission, "failed to create directory "+dir, err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: one writer, and an in-memory database stays the
	// same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN parameters may be ignored by modernc.org/sqlite; set them again.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, synerrors.New(synerrors.ErrCodeCorruptStore, "failed to initialize synonyms schema", err).
			WithDetail("path", path)
	}

	s := &SQLiteStore{db: db, path: path}
	if path != "" {
		s.lock = NewFileLock(path)
	}
	return s, nil
}

// Path returns the database path, empty for an in-memory store.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load implements synonym.Loader.
func (s *SQLiteStore) Load(ctx context.Context) (synonym.Dictionary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT phrase, synonym FROM synonyms ORDER BY phrase, synonym`)
	if err != nil {
		return nil, loadError(err)
	}
	defer rows.Close()

	dict := synonym.Dictionary{}
	for rows.Next() {
		var phrase, syn string
		if err := rows.Scan(&phrase, &syn); err != nil {
			return nil, loadError(err)
		}
		dict.Add(phrase, syn)
	}
	if err := rows.Err(); err != nil {
		return nil, loadError(err)
	}
	return dict, nil
}

// Import writes dict into the store. With replace set the existing rows are
// removed first; otherwise entries are merged. Returns the number of
// new phrase/synonym pairs written.
func (s *SQLiteStore) Import(ctx context.Context, dict synonym.Dictionary, replace bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errStoreClosed
	}

	if s.lock != nil {
		if err := s.lock.Lock(ctx); err != nil {
			return 0, err
		}
		defer func() { _ = s.lock.Unlock() }()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM synonyms`); err != nil {
			return 0, fmt.Errorf("clear synonyms: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO synonyms (phrase, synonym) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, phrase := range dict.Keys() {
		key := normalize(phrase)
		if key == "" {
			continue
		}
		for _, syn := range dict[phrase].Sorted() {
			val := normalize(syn)
			if val == "" || val == key {
				continue
			}
			res, err := stmt.ExecContext(ctx, key, val)
			if err != nil {
				return 0, fmt.Errorf("insert %q: %w", key, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				written += int(n)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	slog.Debug("synonyms_imported",
		slog.String("path", s.path),
		slog.Int("pairs", written),
		slog.Bool("replace", replace))
	return written, nil
}

// Count returns the number of phrases with at least one synonym.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errStoreClosed
	}

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT phrase) FROM synonyms`).Scan(&n)
	if err != nil {
		return 0, loadError(err)
	}
	return n, nil
}

// Close closes the database. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var errStoreClosed = errors.New("synonyms store is closed")

// loadError marks read failures as provider-unavailable, which the retry
// wrapper treats as transient.
func loadError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return synerrors.New(synerrors.ErrCodeSynonymsTimeout, "synonyms query timed out", err)
	}
	return synerrors.New(synerrors.ErrCodeSynonymsUnavailable, "failed to read synonyms store", err)
}
