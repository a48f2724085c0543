package adapters

import (
	"context"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// CachedTokenizer memoizes encodings of whole serialized prompts.
type CachedTokenizer struct {
	ports.Tokenizer
	cache ports.TokenCache
	ttl   int
}

func NewCachedTokenizer(tok ports.Tokenizer, cache ports.TokenCache, ttlSeconds int) *CachedTokenizer {
	return &CachedTokenizer{Tokenizer: tok, cache: cache, ttl: ttlSeconds}
}

func (c *CachedTokenizer) Encode(text string) ([]int, error) {
	return c.cached("raw\x00"+text, c.Tokenizer.Encode, text)
}

func (c *CachedTokenizer) EncodeWithSpecial(text string) ([]int, error) {
	return c.cached("special\x00"+text, c.Tokenizer.EncodeWithSpecial, text)
}

func (c *CachedTokenizer) cached(key string, encode func(string) ([]int, error), text string) ([]int, error) {
	ctx := context.Background()
	if ids, ok := c.cache.Get(ctx, key); ok {
		return ids, nil
	}
	ids, err := encode(text)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, key, ids, c.ttl)
	return ids, nil
}

var _ ports.Tokenizer = (*CachedTokenizer)(nil)
