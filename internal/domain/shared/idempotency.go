package shared

import (
	"context"
	"time"
)

// IdempotencyStore deduplicates redelivered invalidation events by id.
// Entries expire after the ttl given when they were marked.
type IdempotencyStore interface {
	// MarkProcessed claims id. It reports false when id is already claimed.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, id string) (bool, error)
	Close() error
}
