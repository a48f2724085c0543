package ports

import (
	"context"
)

// Options controls decoding. Zero values mean "backend default" except where
// noted.
type Options struct {
	NumBeams          int
	Temperature       float32
	TopP              float32
	TopK              int
	MinLength         int
	MaxLength         int // total length including the prompt (causal models)
	MaxNewTokens      int
	DoSample          bool
	RepetitionPenalty float32
	Seed              int
	Stop              []string
	// TimeoutMs applies to a single generation call, 0 for none.
	TimeoutMs int
}

// Prompt is the serialized conversation handed to a backend. IDs are
// authoritative; Text is the decoded form for backends that take strings.
type Prompt struct {
	Text string
	IDs  []int
}

// Usage captures token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is a backend's answer. Backends that work in token space set
// IDs; text backends set only Text. Causal backends may echo the prompt.
type Completion struct {
	Text  string
	IDs   []int
	Raw   any
	Usage *Usage
}

// Generator hides the inference backend.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt, opts Options) (Completion, error)
}
