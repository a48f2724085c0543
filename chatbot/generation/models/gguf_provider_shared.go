package models

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/config"
)

// GGUFModelConfig holds configuration for GGUF model loading
type GGUFModelConfig struct {
	ModelPath   string
	ContextSize int
	GPULayers   int
	Threads     int
	// Pooling and resilience settings
	PoolSize         int
	BorrowTimeout    time.Duration
	RequestTimeout   time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultGGUFConfig returns default configuration for a GGUF model
func DefaultGGUFConfig(modelPath string) *GGUFModelConfig {
	return &GGUFModelConfig{
		ModelPath:        modelPath,
		ContextSize:      2048,
		GPULayers:        0, // CPU-only by default
		Threads:          runtime.NumCPU(),
		PoolSize:         1,
		BorrowTimeout:    5 * time.Minute,
		RequestTimeout:   2 * time.Minute,
		BreakerThreshold: 5,
		BreakerCooldown:  time.Minute,
	}
}

// GGUFConfigFrom fills unset fields of the user config with defaults.
func GGUFConfigFrom(c config.GGUFConfig) *GGUFModelConfig {
	out := DefaultGGUFConfig(c.ModelPath)
	if c.ContextSize > 0 {
		out.ContextSize = c.ContextSize
	}
	if c.GPULayers != 0 {
		out.GPULayers = c.GPULayers
	}
	if c.Threads > 0 {
		out.Threads = c.Threads
	}
	if c.PoolSize > 0 {
		out.PoolSize = c.PoolSize
	}
	if c.BorrowTimeout > 0 {
		out.BorrowTimeout = c.BorrowTimeout
	}
	if c.RequestTimeout > 0 {
		out.RequestTimeout = c.RequestTimeout
	}
	if c.BreakerThreshold > 0 {
		out.BreakerThreshold = c.BreakerThreshold
	}
	if c.BreakerCooldown > 0 {
		out.BreakerCooldown = c.BreakerCooldown
	}
	return out
}

// ValidateConfig validates the GGUF model configuration
func ValidateConfig(config *GGUFModelConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if config.ContextSize <= 0 {
		return fmt.Errorf("context size must be positive, got %d", config.ContextSize)
	}
	if config.GPULayers < -1 {
		return fmt.Errorf("GPU layers must be -1 (all) or more, got %d", config.GPULayers)
	}
	if config.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", config.Threads)
	}
	if config.PoolSize <= 0 {
		return fmt.Errorf("pool size must be positive, got %d", config.PoolSize)
	}
	if config.BorrowTimeout <= 0 {
		return fmt.Errorf("borrow timeout must be positive, got %v", config.BorrowTimeout)
	}
	if config.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", config.RequestTimeout)
	}
	if config.BreakerThreshold <= 0 {
		return fmt.Errorf("breaker threshold must be positive, got %d", config.BreakerThreshold)
	}
	if config.BreakerCooldown <= 0 {
		return fmt.Errorf("breaker cooldown must be positive, got %v", config.BreakerCooldown)
	}
	return nil
}

// newTokenBudget is how many tokens llama.cpp may produce for a prompt of
// promptLen tokens. MaxLength counts the prompt, MaxNewTokens does not.
func newTokenBudget(maxNew, maxLength, promptLen int) int {
	switch {
	case maxNew > 0:
		return maxNew
	case maxLength > promptLen:
		return maxLength - promptLen
	default:
		return 128
	}
}
