// Package source loads synonym dictionaries from the places they are kept:
// an in-memory table, a YAML file, or a SQLite database. Every source is a
// synonym.Loader; caching and refresh are left to internal/cache.
package source

import (
	"context"

	"github.com/Aman-CERP/synexpand/internal/synonym"
)

// Static serves a fixed dictionary. Each Load returns a private copy.
type Static struct {
	dict synonym.Dictionary
}

// NewStatic copies dict into a new Static source.
func NewStatic(dict synonym.Dictionary) *Static {
	if dict == nil {
		dict = synonym.Dictionary{}
	}
	return &Static{dict: dict.Clone()}
}

// Load implements synonym.Loader.
func (s *Static) Load(ctx context.Context) (synonym.Dictionary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.dict.Clone(), nil
}

// Builtin returns the small demonstration dictionary used when no source is
// configured.
func Builtin() synonym.Dictionary {
	d := synonym.Dictionary{}
	d.Add("dagis", "förskola", "lekis")
	d.Add("tech now", "technology")
	d.AddGroup("car", "auto", "automobile")
	d.Add("nyc", `"new york city"`)
	return d
}
