package domain

import (
	"context"
	"time"
)

// Cache is a best-effort read cache. Misses and failures are never errors.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
}
