package generation

import (
	"strings"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// Family selects the serialization rule.
type Family string

const (
	FamilySeqToSeq Family = "seq2seq"
	FamilyCausal   Family = "causal"
)

const (
	DefaultBlenderBot = "facebook/blenderbot-400M-distill"
	DefaultDialoGPT   = "microsoft/DialoGPT-medium"
	DefaultGPTJ       = "EleutherAI/gpt-j-6B"

	gpt2EOS = "<|endoftext|>"

	blenderBotContext = 128
	dialoGPTContext   = 1024
	gptjContext       = 2048
)

// ModelConfig is the known-good setup for a model.
type ModelConfig struct {
	Name          string
	Path          string
	Family        Family
	ContextLength int
	EOSToken      string
	Options       ports.Options
}

// GetModelConfig returns the preset for a model id or path. Unknown models
// are treated as causal with a 1024 token window.
func GetModelConfig(modelPath string) *ModelConfig {
	p := strings.ToLower(modelPath)
	switch {
	case strings.Contains(p, "blenderbot"):
		return &ModelConfig{
			Name:          "BlenderBot 400M distill",
			Path:          modelPath,
			Family:        FamilySeqToSeq,
			ContextLength: blenderBotContext,
			Options: ports.Options{
				NumBeams:    3,
				MinLength:   0,
				Temperature: 1.5,
				TopP:        0.9,
			},
		}
	case strings.Contains(p, "dialogpt"):
		return &ModelConfig{
			Name:          "DialoGPT medium",
			Path:          modelPath,
			Family:        FamilyCausal,
			ContextLength: dialoGPTContext,
			EOSToken:      gpt2EOS,
			Options: ports.Options{
				DoSample:    true,
				MaxLength:   1000,
				NumBeams:    1,
				Temperature: 1,
				TopK:        50,
				TopP:        0.95,
			},
		}
	case strings.Contains(p, "gpt-j"):
		return &ModelConfig{
			Name:          "GPT-J 6B",
			Path:          modelPath,
			Family:        FamilyCausal,
			ContextLength: gptjContext,
			EOSToken:      gpt2EOS,
			Options: ports.Options{
				DoSample:  true,
				MinLength: 128,
				MaxLength: 128,
			},
		}
	default:
		return &ModelConfig{
			Name:          "Unknown Model",
			Path:          modelPath,
			Family:        FamilyCausal,
			ContextLength: dialoGPTContext,
			Options: ports.Options{
				Temperature: 1,
				TopP:        0.95,
			},
		}
	}
}
