package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/Aman-CERP/synexpand/internal/cache"
	"github.com/Aman-CERP/synexpand/internal/config"
	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/query"
	"github.com/Aman-CERP/synexpand/internal/rewrite"
	"github.com/Aman-CERP/synexpand/internal/source"
	"github.com/Aman-CERP/synexpand/internal/synonym"
)

// loadConfig loads --config when given, else the project configuration of
// the current directory. It returns the config and the project root.
func loadConfig() (*config.Config, string, error) {
	if configFile != "" {
		cfg, err := config.LoadFile(configFile)
		if err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", synerrors.IOError("cannot determine working directory", err)
	}
	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

// stack is the rewriter stack built from a config: loader, cache and
// rewriter. Close releases the cache and the loader.
type stack struct {
	cfg      *config.Config
	loader   synonym.Loader
	cache    *cache.Cache
	rewriter *rewrite.Rewriter
	closer   io.Closer
}

func newStack(cfg *config.Config, logger *slog.Logger) (*stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ttl, err := cfg.RefreshInterval()
	if err != nil {
		return nil, err
	}

	loader, closer, err := source.Open(cfg.Synonyms.Source, cfg.Synonyms.Path)
	if err != nil {
		return nil, err
	}
	retrying := source.NewRetrying(loader, synerrors.DefaultRetryConfig())

	c := cache.New(retrying,
		cache.WithDefaultTTL(ttl),
		cache.WithMaxEntries(cfg.Synonyms.CacheEntries),
		cache.WithLogger(logger))

	rw := rewrite.New(c,
		rewrite.WithEscaper(query.LuceneEscaper{EscapeWildcards: cfg.Rewrite.EscapeWildcards}),
		rewrite.WithPositionalExtraction(cfg.Rewrite.PositionalExtraction),
		rewrite.WithLogger(logger))

	return &stack{
		cfg:      cfg,
		loader:   retrying,
		cache:    c,
		rewriter: rw,
		closer:   closer,
	}, nil
}

func (st *stack) Close() error {
	return errors.Join(st.cache.Close(), st.closer.Close())
}
