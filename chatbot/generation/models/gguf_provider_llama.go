//go:build llama && !no_llama

package models

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-skynet/go-llama.cpp"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// GGUFProvider serves generations from a pool of llama.cpp model instances.
// Each instance handles one prediction at a time.
type GGUFProvider struct {
	config *GGUFModelConfig
	pool   chan *llama.LLama
	health *healthTracker
	logger *slog.Logger
}

// NewGGUFProvider loads PoolSize copies of the model.
func NewGGUFProvider(config *GGUFModelConfig) (*GGUFProvider, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	logger := slog.Default().With("component", "GGUFProvider", "model_path", config.ModelPath)

	p := &GGUFProvider{
		config: config,
		pool:   make(chan *llama.LLama, config.PoolSize),
		health: newHealthTracker(config.BreakerThreshold, config.BreakerCooldown, logger),
		logger: logger,
	}

	for i := 0; i < config.PoolSize; i++ {
		model, err := llama.New(config.ModelPath,
			llama.SetContext(config.ContextSize),
			llama.SetGPULayers(config.GPULayers),
		)
		if err != nil {
			p.logger.Error("Failed to load model instance", "instance", i, "error", err)
			_ = p.Close()
			return nil, fmt.Errorf("failed to load model instance %d: %w", i, err)
		}
		p.pool <- model
		p.logger.Debug("Loaded model instance", "instance", i, "pool_size", len(p.pool))
	}

	p.logger.Info("GGUFProvider initialized", "pool_size", config.PoolSize)
	return p, nil
}

// Borrow takes an instance from the pool, waiting at most BorrowTimeout.
func (p *GGUFProvider) Borrow(ctx context.Context) (*llama.LLama, error) {
	if p.health.breakerOpen() {
		return nil, fmt.Errorf("%w: circuit breaker is open", ErrBackendUnavailable)
	}

	borrowCtx, cancel := context.WithTimeout(ctx, p.config.BorrowTimeout)
	defer cancel()

	select {
	case model, ok := <-p.pool:
		if !ok {
			return nil, fmt.Errorf("%w: provider closed", ErrBackendUnavailable)
		}
		return model, nil
	case <-borrowCtx.Done():
		return nil, fmt.Errorf("borrow timeout after %v: %w", p.config.BorrowTimeout, borrowCtx.Err())
	}
}

// Return puts an instance back, freeing it if the pool is already full.
func (p *GGUFProvider) Return(model *llama.LLama) {
	select {
	case p.pool <- model:
	default:
		p.logger.Warn("Pool channel full, freeing model")
		model.Free()
	}
}

// Generate runs llama.cpp on the prompt text. The output never contains
// the prompt.
func (p *GGUFProvider) Generate(ctx context.Context, prompt ports.Prompt, opts ports.Options) (ports.Completion, error) {
	if prompt.Text == "" {
		return ports.Completion{}, ErrEmptyPrompt
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	model, err := p.Borrow(reqCtx)
	if err != nil {
		p.health.recordFailure(fmt.Sprintf("borrow failed: %v", err))
		return ports.Completion{}, fmt.Errorf("failed to borrow model: %w", err)
	}
	defer p.Return(model)

	start := time.Now()
	text, err := model.Predict(prompt.Text, predictOptions(opts, len(prompt.IDs), p.config.Threads)...)
	if err != nil {
		p.health.recordFailure(fmt.Sprintf("prediction failed: %v", err))
		return ports.Completion{}, fmt.Errorf("prediction failed: %w", err)
	}

	d := time.Since(start)
	p.health.recordSuccess(d)
	p.logger.Debug("Text generation completed", "duration_ms", d.Milliseconds(), "output_length", len(text))

	return ports.Completion{
		Text:  text,
		Usage: &ports.Usage{PromptTokens: len(prompt.IDs)},
	}, nil
}

func predictOptions(opts ports.Options, promptLen, threads int) []llama.PredictOption {
	out := []llama.PredictOption{
		llama.SetTokens(newTokenBudget(opts.MaxNewTokens, opts.MaxLength, promptLen)),
		llama.SetThreads(threads),
	}
	if opts.DoSample || opts.NumBeams <= 1 {
		if opts.Temperature > 0 {
			out = append(out, llama.SetTemperature(opts.Temperature))
		}
		if opts.TopP > 0 {
			out = append(out, llama.SetTopP(opts.TopP))
		}
		if opts.TopK > 0 {
			out = append(out, llama.SetTopK(opts.TopK))
		}
	} else {
		// no beam search in llama.cpp; fall back to greedy decoding
		out = append(out, llama.SetTemperature(0))
	}
	if opts.RepetitionPenalty > 0 {
		out = append(out, llama.SetPenalty(opts.RepetitionPenalty))
	}
	if opts.Seed != 0 {
		out = append(out, llama.SetSeed(opts.Seed))
	}
	if len(opts.Stop) > 0 {
		out = append(out, llama.SetStopWords(opts.Stop...))
	}
	return out
}

// GetHealth returns current model health status
func (p *GGUFProvider) GetHealth() *ModelHealth { return p.health.GetHealth() }

func (p *GGUFProvider) IsHealthy() bool { return p.health.IsHealthy() }

// CheckHealth fails when every instance is busy past BorrowTimeout.
func (p *GGUFProvider) CheckHealth(ctx context.Context) error {
	model, err := p.Borrow(ctx)
	if err != nil {
		p.health.markChecked(false, err.Error())
		return err
	}
	p.Return(model)
	p.health.markChecked(true, "")
	return nil
}

// Close frees the idle instances. Call it after in-flight generations end.
func (p *GGUFProvider) Close() error {
	for {
		select {
		case model := <-p.pool:
			model.Free()
		default:
			p.health.markChecked(false, "provider closed")
			p.logger.Info("GGUFProvider closed")
			return nil
		}
	}
}

var _ ports.Generator = (*GGUFProvider)(nil)
