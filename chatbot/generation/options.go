package generation

import (
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/config"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// Tunable is implemented by adapters whose options can change at runtime.
type Tunable interface {
	Options() ports.Options
	SetOptions(ports.Options)
}

// MergeOptions overlays the non-zero fields of cfg on a preset.
func MergeOptions(preset ports.Options, cfg config.GenerationConfig) ports.Options {
	out := preset
	if cfg.NumBeams > 0 {
		out.NumBeams = cfg.NumBeams
	}
	if cfg.Temperature > 0 {
		out.Temperature = cfg.Temperature
	}
	if cfg.TopP > 0 && cfg.TopP <= 1 {
		out.TopP = cfg.TopP
	}
	if cfg.TopK > 0 {
		out.TopK = cfg.TopK
	}
	if cfg.MinLength > 0 {
		out.MinLength = cfg.MinLength
	}
	if cfg.MaxLength > 0 {
		out.MaxLength = cfg.MaxLength
	}
	if cfg.MaxNewTokens > 0 {
		out.MaxNewTokens = cfg.MaxNewTokens
	}
	if cfg.DoSample != nil {
		out.DoSample = *cfg.DoSample
	}
	if cfg.RepetitionPenalty > 0 {
		out.RepetitionPenalty = cfg.RepetitionPenalty
	}
	if cfg.Seed != 0 {
		out.Seed = cfg.Seed
	}
	if len(cfg.Stop) > 0 {
		out.Stop = append([]string(nil), cfg.Stop...)
	}
	if cfg.TimeoutMs > 0 {
		out.TimeoutMs = cfg.TimeoutMs
	}
	return out
}
