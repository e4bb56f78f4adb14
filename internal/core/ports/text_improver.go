package ports

import "context"

// TextImprover rewrites a raw question for clarity. It is best-effort:
// callers fall back to the raw text on any error.
type TextImprover interface {
	Improve(ctx context.Context, raw string) (string, error)
}
