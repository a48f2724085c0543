package ports

import "context"

// TokenCache memoizes tokenizer output keyed by input text.
type TokenCache interface {
	Get(ctx context.Context, key string) (ids []int, ok bool)
	Set(ctx context.Context, key string, ids []int, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
