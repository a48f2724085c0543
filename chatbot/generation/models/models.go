package models

import (
	"errors"
	"time"
)

// Backend names an inference backend.
type Backend string

const (
	BackendGGUF   Backend = "gguf"
	BackendRemote Backend = "remote"
)

var (
	// ErrBackendUnavailable is returned when a backend is not compiled in or
	// its circuit breaker is open.
	ErrBackendUnavailable = errors.New("model backend unavailable")
	// ErrEmptyPrompt rejects generation calls with nothing to continue.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

// ModelHealth tracks the health status of a backend.
type ModelHealth struct {
	IsHealthy       bool
	SuccessRate     float64
	AverageLatency  time.Duration
	TotalCalls      int64
	SuccessCalls    int64
	FailureCalls    int64
	LastUsed        time.Time
	ErrorMessages   []string
	LastHealthCheck time.Time
}

// HealthReporter is implemented by every backend the Manager watches.
type HealthReporter interface {
	GetHealth() *ModelHealth
	IsHealthy() bool
}
