// Package backend is a small embedded search backend that executes the
// query DSL produced by the rewriter against a bleve index. It lets the
// rewrite be checked end to end without an external cluster.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/tidwall/gjson"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	esquery "github.com/Aman-CERP/synexpand/internal/query"
)

const (
	// TextAnalyzerName is the default analyzer: unicode word boundaries and
	// lowercasing, no stemming and no stop words.
	TextAnalyzerName = "synexpand_text"

	// DefaultSize is used when a request carries no "size".
	DefaultSize = 10
)

// ErrIndexClosed is returned by operations on a closed index.
var ErrIndexClosed = errors.New("index is closed")

// Document is one searchable record. Every field is indexed as text.
type Document struct {
	ID     string
	Fields map[string]string
}

// Hit is one search result.
type Hit struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Result is the outcome of a search.
type Result struct {
	Total uint64
	Hits  []Hit
}

// Index wraps a bleve index.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
	logger *slog.Logger
}

// Open opens the index at path, creating it if needed. An empty path gives
// an in-memory index.
func Open(path string) (*Index, error) {
	m, err := newMapping()
	if err != nil {
		return nil, synerrors.New(synerrors.ErrCodeIndexFailed, "failed to create index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, synerrors.New(synerrors.ErrCodeFilePermission, "failed to create index directory", err).
				WithDetail("path", path)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, synerrors.New(synerrors.ErrCodeCorruptStore, "failed to open index", err).
			WithDetail("path", path).
			WithSuggestion("Remove the index directory and load the documents again")
	}

	return &Index{index: idx, path: path, logger: slog.Default()}, nil
}

// SetLogger replaces the logger used for search diagnostics.
func (x *Index) SetLogger(l *slog.Logger) {
	if l != nil {
		x.logger = l
	}
}

func newMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(TextAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add text analyzer: %w", err)
	}
	m.DefaultAnalyzer = TextAnalyzerName
	return m, nil
}

// Add indexes docs in one batch. Documents with an existing ID replace it.
func (x *Index) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return ErrIndexClosed
	}

	batch := x.index.NewBatch()
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.ID == "" {
			return synerrors.ValidationError("document has no id", nil)
		}
		if err := batch.Index(d.ID, d.Fields); err != nil {
			return synerrors.New(synerrors.ErrCodeIndexFailed, "failed to index document", err).
				WithDetail("id", d.ID)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return synerrors.New(synerrors.ErrCodeIndexFailed, "failed to execute batch", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (x *Index) Count() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return 0, ErrIndexClosed
	}
	return x.index.DocCount()
}

// Search runs the request's query. "size" and "from" are read from the
// request body; a request without a query matches everything.
func (x *Index) Search(ctx context.Context, req *esquery.Request) (*Result, error) {
	size, from := DefaultSize, 0
	if raw, ok := req.Body["size"]; ok {
		size = int(gjson.ParseBytes(raw).Int())
	}
	if raw, ok := req.Body["from"]; ok {
		from = int(gjson.ParseBytes(raw).Int())
	}
	return x.SearchClause(ctx, req.Query, size, from)
}

// SearchClause runs a single clause.
func (x *Index) SearchClause(ctx context.Context, clause esquery.Clause, size, from int) (*Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, ErrIndexClosed
	}

	c := &compiler{hasAnalyzer: func(name string) bool {
		return x.index.Mapping().AnalyzerNamed(name) != nil
	}}
	q, err := c.Compile(clause)
	if err != nil {
		return nil, synerrors.New(synerrors.ErrCodeInvalidQuery, "query cannot be executed", err)
	}

	sr := bleve.NewSearchRequestOptions(q, max(size, 0), max(from, 0), false)
	sr.Fields = []string{"*"}

	res, err := x.index.SearchInContext(ctx, sr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, synerrors.New(synerrors.ErrCodeSearchFailed, "search failed", err)
	}

	out := &Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	x.logger.Debug("backend_search",
		slog.Int("hits", len(out.Hits)),
		slog.Uint64("total", out.Total),
		slog.Duration("took", res.Took))
	return out, nil
}

// Close closes the index. It is safe to call more than once.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	return x.index.Close()
}
