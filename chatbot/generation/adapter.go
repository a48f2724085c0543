// Package generation adapts pretrained dialogue models to the conversation
// log: it serializes a log into the token layout a model family expects,
// keeps it inside the model's context window, and appends the generated
// answer.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/adapters"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// ErrGenerationFailure wraps any error from the inference backend.
var ErrGenerationFailure = errors.New("generation failed")

// Adapter is the model-family contract shared by SeqToSeqAdapter and
// CausalAdapter.
type Adapter interface {
	Name() string
	// Serialize linearizes the log into the model's input token sequence.
	Serialize(log *conversation.Log) ([]int, error)
	ContextLimit() int
	// Truncate evicts the oldest turns until the log serializes within
	// ContextLimit or no completed turn is left. It never fails on an
	// oversized pending input and never edits its text.
	Truncate(log *conversation.Log) error
	// Respond truncates, generates and appends the answer to the log.
	// Backend errors are returned wrapped in ErrGenerationFailure and
	// leave the log's turns as Truncate left them.
	Respond(ctx context.Context, log *conversation.Log) error
}

// engine holds what both variants share. The variant supplies
// serialization, prompt rendering and completion decoding.
type engine struct {
	name   string
	tok    ports.Tokenizer
	gen    ports.Generator
	limit  int
	opts   atomic.Pointer[ports.Options]
	tracer ports.Tracer
	logger zerolog.Logger

	serialize  func(*conversation.Log) ([]int, error)
	promptText func(ids []int) (string, error)
	decode     func(prompt ports.Prompt, c ports.Completion) (string, error)
}

// Config carries the collaborators of an adapter.
type Config struct {
	Tokenizer ports.Tokenizer
	Generator ports.Generator
	// ContextLimit overrides the tokenizer's model_max_length when > 0.
	ContextLimit int
	Options      ports.Options
	Tracer       ports.Tracer
	Logger       zerolog.Logger
}

func newEngine(name string, cfg Config, fallbackLimit int) *engine {
	limit := cfg.ContextLimit
	if limit <= 0 && cfg.Tokenizer != nil {
		limit = cfg.Tokenizer.ModelMaxLength()
	}
	if limit <= 0 {
		limit = fallbackLimit
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = adapters.NoopTracer{}
	}
	e := &engine{
		name:   name,
		tok:    cfg.Tokenizer,
		gen:    cfg.Generator,
		limit:  limit,
		tracer: tracer,
		logger: cfg.Logger.With().Str("component", "adapter").Str("adapter", name).Logger(),
	}
	opts := cfg.Options
	e.opts.Store(&opts)
	return e
}

func (e *engine) Name() string { return e.name }

func (e *engine) ContextLimit() int { return e.limit }

// Options returns the generation options currently in effect.
func (e *engine) Options() ports.Options { return *e.opts.Load() }

// SetOptions swaps the generation options used by later Respond calls.
func (e *engine) SetOptions(o ports.Options) { e.opts.Store(&o) }

func (e *engine) Truncate(log *conversation.Log) error {
	_, _, err := truncate(log, e.serialize, e.limit)
	return err
}

func (e *engine) Respond(ctx context.Context, log *conversation.Log) (err error) {
	if _, ok := log.Pending(); !ok {
		return fmt.Errorf("%w: respond without a pending user input", conversation.ErrInvalidState)
	}

	ctx, finish := e.tracer.StartSpan(ctx, "adapter.respond", map[string]any{
		"adapter": e.name,
		"turns":   log.Len(),
	})
	defer func() { finish(err) }()

	ids, evicted, err := truncate(log, e.serialize, e.limit)
	if err != nil {
		return err
	}
	if evicted > 0 {
		e.tracer.Event(ctx, "truncated", map[string]any{"evicted": evicted, "tokens": len(ids)})
	}
	if len(ids) > e.limit {
		e.logger.Warn().
			Int("tokens", len(ids)).
			Int("limit", e.limit).
			Msg("pending input exceeds context limit on its own, keeping the most recent tokens")
		ids = ids[len(ids)-e.limit:]
	}

	prompt := ports.Prompt{IDs: ids}
	if prompt.Text, err = e.promptText(ids); err != nil {
		return fmt.Errorf("failed to render prompt: %w", err)
	}

	opts := e.Options()
	callCtx := ctx
	if opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, msDuration(opts.TimeoutMs))
		defer cancel()
	}

	completion, err := e.gen.Generate(callCtx, prompt, opts)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrGenerationFailure, e.name, err)
	}

	text, err := e.decode(prompt, completion)
	if err != nil {
		return fmt.Errorf("%w: %s: decode output: %w", ErrGenerationFailure, e.name, err)
	}

	e.logger.Debug().
		Int("prompt_tokens", len(ids)).
		Int("evicted", evicted).
		Msg("generated response")

	return log.AppendResponse(text)
}

var (
	_ Adapter = (*SeqToSeqAdapter)(nil)
	_ Adapter = (*CausalAdapter)(nil)
)
