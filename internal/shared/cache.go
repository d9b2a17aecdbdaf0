package shared

import (
	"context"
	"log/slog"
)

// Invalidator drops cached read models after a write commits.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// BumpQuietly invalidates and logs failures; a stale cache expires on its own TTL.
func BumpQuietly(ctx context.Context, inv Invalidator, logger *slog.Logger) {
	if inv == nil {
		return
	}
	if err := inv.Bump(ctx); err != nil && logger != nil {
		logger.Warn("cache invalidation failed", slog.Any("error", err))
	}
}
