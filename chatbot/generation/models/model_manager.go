package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/config"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// Backend implementations the Manager can own.
type generatorBackend interface {
	ports.Generator
	HealthReporter
	CheckHealth(ctx context.Context) error
	Close() error
}

// Manager owns the tokenizer and the inference backend for the configured
// model and watches the backend's health.
type Manager struct {
	config    config.ModelConfig
	tokenizer ports.Tokenizer
	backend   generatorBackend
	name      Backend

	stopHealthCheck chan struct{}
	wg              sync.WaitGroup
	closeOnce       sync.Once
	logger          *slog.Logger
}

// NewManager loads the tokenizer, connects the backend and starts health
// monitoring when HealthInterval > 0.
func NewManager(cfg config.ModelConfig) (*Manager, error) {
	tok, err := LoadHFTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	var backend generatorBackend
	switch Backend(cfg.Backend) {
	case BackendGGUF:
		backend, err = NewGGUFProvider(GGUFConfigFrom(cfg.GGUF))
	case BackendRemote:
		backend, err = NewRemoteProvider(cfg.Remote)
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", cfg.Backend, err)
	}

	return newManager(cfg, tok, backend), nil
}

func newManager(cfg config.ModelConfig, tok ports.Tokenizer, backend generatorBackend) *Manager {
	m := &Manager{
		config:          cfg,
		tokenizer:       tok,
		backend:         backend,
		name:            Backend(cfg.Backend),
		stopHealthCheck: make(chan struct{}),
		logger:          slog.Default().With("component", "ModelManager", "model", cfg.Name, "backend", cfg.Backend),
	}
	if cfg.HealthInterval > 0 {
		m.startHealthMonitoring(cfg.HealthInterval)
	}
	return m
}

func (m *Manager) startHealthMonitoring(interval time.Duration) {
	ticker := time.NewTicker(interval)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if err := m.backend.CheckHealth(ctx); err != nil {
					m.logger.Warn("Health check failed", "error", err)
				}
				cancel()
			case <-m.stopHealthCheck:
				return
			}
		}
	}()
}

func (m *Manager) Tokenizer() ports.Tokenizer { return m.tokenizer }

func (m *Manager) Generator() ports.Generator { return m.backend }

// GetHealthSummary returns health keyed by backend name.
func (m *Manager) GetHealthSummary() map[string]*ModelHealth {
	return map[string]*ModelHealth{string(m.name): m.backend.GetHealth()}
}

func (m *Manager) IsHealthy() bool { return m.backend.IsHealthy() }

// Close stops monitoring and shuts the backend down.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopHealthCheck)
		m.wg.Wait()
		if cerr := m.backend.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("%s backend: %w", m.name, cerr))
		}
	})
	return err
}
