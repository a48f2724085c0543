package adapters

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLRUCache_BasicOperations tests set/get and eviction order.
func TestLRUCache_BasicOperations(t *testing.T) {
	cache := NewLRUCache(2)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key1", []int{1, 2}, 3600))
	ids, ok := cache.Get(ctx, "key1")
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2}, ids)

	require.NoError(t, cache.Set(ctx, "key2", []int{3}, 3600))
	// touch key1 so key2 becomes the eviction candidate
	_, _ = cache.Get(ctx, "key1")
	require.NoError(t, cache.Set(ctx, "key3", []int{4}, 3600))

	_, ok = cache.Get(ctx, "key2")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "key1")
	assert.True(t, ok)
	_, ok = cache.Get(ctx, "key3")
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Len())
}

func TestLRUCache_Expiry(t *testing.T) {
	cache := NewLRUCache(4)
	now := time.Unix(1000, 0)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", []int{1}, 10))
	require.NoError(t, cache.Set(ctx, "forever", []int{2}, 0))

	now = now.Add(11 * time.Second)
	_, ok := cache.Get(ctx, "short")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestLRUCache_ReturnsCopies(t *testing.T) {
	cache := NewLRUCache(1)
	ctx := context.Background()

	in := []int{1, 2, 3}
	require.NoError(t, cache.Set(ctx, "k", in, 0))
	in[0] = 99

	out, _ := cache.Get(ctx, "k")
	out[1] = 99

	again, _ := cache.Get(ctx, "k")
	assert.Equal(t, []int{1, 2, 3}, again)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
}

// TestTokenBucket_BasicRateLimiting tests burst capacity and refill.
func TestTokenBucket_BasicRateLimiting(t *testing.T) {
	limiter := NewTokenBucket(2, time.Second)
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for range 2 {
		release, err := limiter.Acquire(ctx, "guild:user")
		require.NoError(t, err)
		release()
	}

	_, err := limiter.Acquire(ctx, "guild:user")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	// other identities have their own bucket
	_, err = limiter.Acquire(ctx, "guild:other")
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = limiter.Acquire(ctx, "guild:user")
	assert.NoError(t, err)
	_, err = limiter.Acquire(ctx, "guild:user")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	limiter.Forget("guild:user")
	_, err = limiter.Acquire(ctx, "guild:user")
	assert.NoError(t, err)
}

func TestTokenBucket_CancelledContext(t *testing.T) {
	limiter := NewTokenBucket(1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := limiter.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

type countingTokenizer struct {
	calls int
}

func (c *countingTokenizer) Encode(text string) ([]int, error) {
	c.calls++
	if text == "boom" {
		return nil, errors.New("boom")
	}
	return make([]int, len(strings.Fields(text))), nil
}

func (c *countingTokenizer) EncodeWithSpecial(text string) ([]int, error) {
	ids, err := c.Encode(text)
	return append(ids, -1), err
}

func (c *countingTokenizer) Decode([]int, bool) (string, error) { return "", nil }
func (c *countingTokenizer) EOSToken() string                   { return "" }
func (c *countingTokenizer) ModelMaxLength() int                { return 0 }

func TestCachedTokenizer(t *testing.T) {
	inner := &countingTokenizer{}
	tok := NewCachedTokenizer(inner, NewLRUCache(8), 0)

	a, err := tok.Encode("one two")
	require.NoError(t, err)
	b, err := tok.Encode("one two")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)

	// with and without specials are cached separately
	s, err := tok.EncodeWithSpecial("one two")
	require.NoError(t, err)
	assert.Len(t, s, 3)
	assert.Equal(t, 2, inner.calls)

	_, err = tok.Encode("boom")
	assert.Error(t, err)
	_, err = tok.Encode("boom")
	assert.Error(t, err)
	assert.Equal(t, 4, inner.calls, "errors are not cached")
}

func TestZerologTracer_Spans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewZerologTracer(zerolog.New(&buf).Level(zerolog.DebugLevel))

	ctx, finish := tracer.StartSpan(context.Background(), "respond", map[string]any{"adapter": "causal"})
	tracer.Event(ctx, "truncated", map[string]any{"evicted": 2})
	finish(errors.New("backend down"))

	out := buf.String()
	assert.Contains(t, out, `"span":"respond"`)
	assert.Contains(t, out, `"adapter":"causal"`)
	assert.Contains(t, out, `"event":"truncated"`)
	assert.Contains(t, out, `"evicted":2`)
	assert.Contains(t, out, `"error":"backend down"`)
	assert.Equal(t, 3, strings.Count(out, "\n"))
}
