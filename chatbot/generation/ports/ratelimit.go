package ports

import "context"

// RateLimiter throttles work per key (a conversation identity).
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
