package models

import (
	"log/slog"
	"sync"
	"time"
)

const maxErrorMessages = 10

// healthTracker records call outcomes and trips a circuit breaker after
// threshold consecutive failures. It is shared by the backends.
type healthTracker struct {
	mu     sync.RWMutex
	health ModelHealth

	threshold       int
	cooldown        time.Duration
	consecutiveFail int
	lastFailure     time.Time

	logger *slog.Logger
	now    func() time.Time
}

func newHealthTracker(threshold int, cooldown time.Duration, logger *slog.Logger) *healthTracker {
	return &healthTracker{
		health:    ModelHealth{IsHealthy: true, SuccessRate: 1.0},
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger,
		now:       time.Now,
	}
}

// breakerOpen reports whether calls should be refused. The breaker closes
// again once cooldown has passed since the last failure.
func (h *healthTracker) breakerOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.threshold <= 0 || h.consecutiveFail < h.threshold {
		return false
	}
	if h.now().Sub(h.lastFailure) < h.cooldown {
		return true
	}
	h.consecutiveFail = 0
	h.logger.Info("Circuit breaker reset after cooldown")
	return false
}

func (h *healthTracker) recordSuccess(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.health.TotalCalls++
	h.health.SuccessCalls++
	h.health.LastUsed = h.now()
	h.health.IsHealthy = true
	h.consecutiveFail = 0

	if h.health.AverageLatency == 0 {
		h.health.AverageLatency = d
	} else {
		const alpha = 0.1
		h.health.AverageLatency = time.Duration(float64(h.health.AverageLatency)*(1-alpha) + float64(d)*alpha)
	}
	h.health.SuccessRate = float64(h.health.SuccessCalls) / float64(h.health.TotalCalls)
}

func (h *healthTracker) recordFailure(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.health.TotalCalls++
	h.health.FailureCalls++
	h.health.LastUsed = h.now()
	h.health.IsHealthy = false

	if len(h.health.ErrorMessages) >= maxErrorMessages {
		h.health.ErrorMessages = h.health.ErrorMessages[1:]
	}
	h.health.ErrorMessages = append(h.health.ErrorMessages, msg)
	h.health.SuccessRate = float64(h.health.SuccessCalls) / float64(h.health.TotalCalls)

	h.consecutiveFail++
	h.lastFailure = h.now()

	h.logger.Warn("Operation failed", "error", msg, "consecutive_failures", h.consecutiveFail)
}

func (h *healthTracker) markChecked(healthy bool, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health.LastHealthCheck = h.now()
	h.health.IsHealthy = healthy
	if msg != "" {
		if len(h.health.ErrorMessages) >= maxErrorMessages {
			h.health.ErrorMessages = h.health.ErrorMessages[1:]
		}
		h.health.ErrorMessages = append(h.health.ErrorMessages, msg)
	}
}

// GetHealth returns a copy of the current health.
func (h *healthTracker) GetHealth() *ModelHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := h.health
	c.ErrorMessages = append([]string(nil), h.health.ErrorMessages...)
	return &c
}

func (h *healthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.health.IsHealthy
}
