package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// ErrRateLimitExceeded is returned when a key has no tokens left.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// TokenBucket keeps one bucket per key. Tokens come back only through
// refill, so the release func returned by Acquire is a no-op; callers may
// still defer it to stay interchangeable with concurrency limiters.
type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   int
	refillRate time.Duration
	now        func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucket allows bursts of capacity and one more token every refillRate.
func NewTokenBucket(capacity int, refillRate time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if refillRate <= 0 {
		refillRate = time.Second
	}
	return &TokenBucket{
		buckets:    make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
}

func (tb *TokenBucket) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, lastRefill: now}
		tb.buckets[key] = b
	}

	if n := int(now.Sub(b.lastRefill) / tb.refillRate); n > 0 {
		b.tokens = min(b.tokens+n, tb.capacity)
		b.lastRefill = b.lastRefill.Add(time.Duration(n) * tb.refillRate)
	}

	if b.tokens <= 0 {
		return nil, ErrRateLimitExceeded
	}
	b.tokens--
	return func() {}, nil
}

// Forget drops a key's bucket, e.g. after its conversation is reset.
func (tb *TokenBucket) Forget(key string) {
	tb.mu.Lock()
	delete(tb.buckets, key)
	tb.mu.Unlock()
}

// NoopRateLimiter never limits.
type NoopRateLimiter struct{}

func (NoopRateLimiter) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

var (
	_ ports.RateLimiter = (*TokenBucket)(nil)
	_ ports.RateLimiter = NoopRateLimiter{}
)
