package source

import (
	"context"
	"log/slog"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/synonym"
)

// Retrying wraps a loader so transient failures are retried with backoff.
// Only errors marked retryable (see errors.IsRetryable) are retried by the
// default configuration.
type Retrying struct {
	inner synonym.Loader
	cfg   synerrors.RetryConfig
}

// NewRetrying wraps inner with cfg.
func NewRetrying(inner synonym.Loader, cfg synerrors.RetryConfig) *Retrying {
	return &Retrying{inner: inner, cfg: cfg}
}

// Load implements synonym.Loader.
func (r *Retrying) Load(ctx context.Context) (synonym.Dictionary, error) {
	attempt := 0
	return synerrors.RetryWithResult(ctx, r.cfg, func() (synonym.Dictionary, error) {
		attempt++
		dict, err := r.inner.Load(ctx)
		if err != nil && attempt <= r.cfg.MaxRetries {
			args := append([]any{slog.Int("attempt", attempt)}, synerrors.LogArgs(err)...)
			slog.Debug("synonyms_load_failed", args...)
		}
		return dict, err
	})
}
