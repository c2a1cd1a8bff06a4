package domain

import (
	"context"
	"time"
)

// MarketCache is a read-through cache for Market records. It is strictly a
// read-model optimization: the engine never reads ledger state from it, and
// entries are invalidated whenever an event touches the market.
type MarketCache interface {
	Get(ctx context.Context, id int64) (Market, error)
	Set(ctx context.Context, m Market) error
	Invalidate(ctx context.Context, id int64) error
}

// RateLimiter limits request rates per key.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the given
	// limit per window, counting the request if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
