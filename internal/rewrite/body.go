package rewrite

import (
	"context"
	"errors"
	"time"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/query"
)

// RewriteBody rewrites an Elasticsearch search body. When nothing is
// rewritten the body is returned byte for byte as received.
func (r *Rewriter) RewriteBody(ctx context.Context, body []byte, synonymsSupported bool, refresh time.Duration) ([]byte, *Result, error) {
	req, err := query.DecodeRequest(body, synonymsSupported)
	if err != nil {
		code := synerrors.ErrCodeInternal
		if errors.Is(err, query.ErrInvalidBody) {
			code = synerrors.ErrCodeInvalidBody
		}
		return nil, nil, synerrors.New(code, "cannot decode search body", err).
			WithSuggestion("Pass a JSON object such as {\"query\": {\"query_string\": {\"query\": \"...\"}}}")
	}

	res, err := r.Rewrite(ctx, req, refresh)
	if err != nil {
		return nil, nil, err
	}
	if !res.Rewritten() {
		return body, res, nil
	}

	out, err := query.EncodeRequest(res.Request)
	if err != nil {
		return nil, nil, synerrors.Wrap(synerrors.ErrCodeInternal, err)
	}
	return out, res, nil
}
