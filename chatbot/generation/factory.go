package generation

import (
	"fmt"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/config"
)

// NewAdapter builds the adapter for a model family. eos is only used by
// causal models; empty falls back to the tokenizer's EOS token.
func NewAdapter(family Family, cfg Config, eos string) (Adapter, error) {
	if cfg.Tokenizer == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("adapter %q needs a tokenizer and a generator", family)
	}
	switch family {
	case FamilySeqToSeq:
		return NewSeqToSeqAdapter(cfg), nil
	case FamilyCausal:
		return NewCausalAdapter(cfg, eos), nil
	default:
		return nil, fmt.Errorf("unknown model family %q", family)
	}
}

// NewAdapterForModel builds the adapter for a model id using its preset.
// The context limit is cfg.ContextLimit, else the tokenizer's
// model_max_length, else the preset's. Options are the preset's overlaid
// with overrides.
func NewAdapterForModel(model string, cfg Config, overrides config.GenerationConfig) (Adapter, error) {
	return newFromPreset(GetModelConfig(model), "", cfg, overrides)
}

// FromConfig builds the adapter described by the model and generation
// config sections. A non-empty model.family replaces the preset's family.
func FromConfig(mc config.ModelConfig, gc config.GenerationConfig, cfg Config) (Adapter, error) {
	if mc.ContextLimit > 0 {
		cfg.ContextLimit = mc.ContextLimit
	}
	return newFromPreset(GetModelConfig(mc.Name), Family(mc.Family), cfg, gc)
}

func newFromPreset(preset *ModelConfig, family Family, cfg Config, overrides config.GenerationConfig) (Adapter, error) {
	if cfg.ContextLimit <= 0 && (cfg.Tokenizer == nil || cfg.Tokenizer.ModelMaxLength() <= 0) {
		cfg.ContextLimit = preset.ContextLength
	}
	if family == "" {
		family = preset.Family
	}
	cfg.Options = MergeOptions(preset.Options, overrides)
	return NewAdapter(family, cfg, preset.EOSToken)
}
