// Package scope carries the owner scope that partitions every document,
// chunk, and cache entry. Operations never cross scopes.
package scope

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const scopeKey contextKey = "ownerScope"

func WithScope(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, scopeKey, id)
}

// FromContext returns the owner scope on the context, or uuid.Nil when the
// request was never scoped.
func FromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(scopeKey).(uuid.UUID)
	return id
}
