//go:build !llama || no_llama

package models

import (
	"context"
	"fmt"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// GGUFProvider is unavailable in builds without the llama tag.
type GGUFProvider struct{}

// NewGGUFProvider validates the config and reports that llama.cpp is not
// compiled in.
func NewGGUFProvider(config *GGUFModelConfig) (*GGUFProvider, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return nil, fmt.Errorf("%w: llama.cpp not available in this build (rebuild with -tags llama)", ErrBackendUnavailable)
}

func (p *GGUFProvider) Generate(context.Context, ports.Prompt, ports.Options) (ports.Completion, error) {
	return ports.Completion{}, ErrBackendUnavailable
}

func (p *GGUFProvider) GetHealth() *ModelHealth { return &ModelHealth{} }

func (p *GGUFProvider) IsHealthy() bool { return false }

func (p *GGUFProvider) CheckHealth(context.Context) error { return ErrBackendUnavailable }

func (p *GGUFProvider) Close() error { return nil }

var _ ports.Generator = (*GGUFProvider)(nil)
