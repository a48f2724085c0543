package models

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/config"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/generationtest"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

func TestHealthTrackerBreaker(t *testing.T) {
	h := newHealthTracker(2, time.Minute, slog.Default())
	now := time.Unix(1000, 0)
	h.now = func() time.Time { return now }

	h.recordFailure("a")
	assert.False(t, h.breakerOpen())
	h.recordFailure("b")
	assert.True(t, h.breakerOpen())

	now = now.Add(2 * time.Minute)
	assert.False(t, h.breakerOpen())

	h.recordSuccess(10 * time.Millisecond)
	health := h.GetHealth()
	assert.True(t, health.IsHealthy)
	assert.EqualValues(t, 3, health.TotalCalls)
	assert.InDelta(t, 1.0/3.0, health.SuccessRate, 1e-9)
	assert.Equal(t, []string{"a", "b"}, health.ErrorMessages)
}

func TestHealthTrackerKeepsLastErrors(t *testing.T) {
	h := newHealthTracker(0, 0, slog.Default())
	for range maxErrorMessages + 3 {
		h.recordFailure("x")
	}
	assert.Len(t, h.GetHealth().ErrorMessages, maxErrorMessages)
	assert.False(t, h.breakerOpen(), "threshold 0 disables the breaker")
}

func TestGGUFConfigFrom(t *testing.T) {
	cfg := GGUFConfigFrom(config.GGUFConfig{ModelPath: "/m.gguf", PoolSize: 3, GPULayers: -1})
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, 3, cfg.PoolSize)
	assert.Equal(t, -1, cfg.GPULayers)
	assert.Equal(t, 2048, cfg.ContextSize)

	assert.Error(t, ValidateConfig(GGUFConfigFrom(config.GGUFConfig{})))
	assert.Error(t, ValidateConfig(nil))
}

func TestNewTokenBudget(t *testing.T) {
	assert.Equal(t, 40, newTokenBudget(40, 1000, 10))
	assert.Equal(t, 990, newTokenBudget(0, 1000, 10))
	assert.Equal(t, 128, newTokenBudget(0, 0, 10))
	assert.Equal(t, 128, newTokenBudget(0, 5, 10))
}

type fakeBackend struct {
	generationtest.GeneratorFunc
	checks atomic.Int32
	closed atomic.Bool
}

func (f *fakeBackend) GetHealth() *ModelHealth { return &ModelHealth{IsHealthy: true} }
func (f *fakeBackend) IsHealthy() bool         { return true }
func (f *fakeBackend) Close() error            { f.closed.Store(true); return nil }

func (f *fakeBackend) CheckHealth(context.Context) error {
	f.checks.Add(1)
	return errors.New("still warming up")
}

func TestManagerHealthMonitoringAndClose(t *testing.T) {
	backend := &fakeBackend{GeneratorFunc: generationtest.Reply("ok")}
	m := newManager(config.ModelConfig{Name: "m", Backend: "remote", HealthInterval: 5 * time.Millisecond},
		generationtest.NewWordTokenizer("", 0), backend)

	assert.Eventually(t, func() bool { return backend.checks.Load() >= 2 }, time.Second, 5*time.Millisecond)

	c, err := m.Generator().Generate(context.Background(), ports.Prompt{Text: "hi"}, ports.Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", c.Text)
	assert.Contains(t, m.GetHealthSummary(), "remote")

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.True(t, backend.closed.Load())
}

func TestNewManagerMissingTokenizer(t *testing.T) {
	_, err := NewManager(config.ModelConfig{TokenizerPath: t.TempDir() + "/missing", Backend: "remote"})
	assert.Error(t, err)
}
