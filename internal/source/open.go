package source

import (
	"fmt"
	"io"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/synonym"
)

// Source kinds accepted in configuration.
const (
	KindBuiltin = "builtin"
	KindYAML    = "yaml"
	KindSQLite  = "sqlite"
)

// Kinds lists the valid source kinds.
func Kinds() []string {
	return []string{KindBuiltin, KindYAML, KindSQLite}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the loader for kind. The returned closer releases whatever the
// loader holds open and is never nil on success.
func Open(kind, path string) (synonym.Loader, io.Closer, error) {
	switch kind {
	case KindBuiltin, "":
		return NewStatic(Builtin()), nopCloser{}, nil
	case KindYAML:
		if path == "" {
			return nil, nil, synerrors.ConfigError("synonyms.path is required for the yaml source", nil)
		}
		return NewYAMLFile(path), nopCloser{}, nil
	case KindSQLite:
		if path == "" {
			return nil, nil, synerrors.ConfigError("synonyms.path is required for the sqlite source", nil)
		}
		store, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, synerrors.ConfigError(fmt.Sprintf("unknown synonyms source %q", kind), nil).
			WithSuggestion("Use one of: builtin, yaml, sqlite")
	}
}
