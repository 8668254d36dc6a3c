package ai

import (
	"fmt"

	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// AICircuitBreaker wraps model calls with the circuit breaker pattern.
// A nil breaker executes calls directly.
type AICircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewAICircuitBreaker creates a circuit breaker configured for an operation type.
// It returns nil when the breaker is disabled.
func NewAICircuitBreaker[T any](operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *AICircuitBreaker[T] {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("AI-%s", operationType),
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.CircuitBreaker.MinRequests &&
				failureRatio >= cfg.CircuitBreaker.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation_type", operationType,
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", cfg.CircuitBreaker.FailureThreshold)
		},
	}

	return &AICircuitBreaker[T]{
		cb: gobreaker.NewCircuitBreaker[T](settings),
	}
}

// Execute executes the provided function with circuit breaker protection
func (cb *AICircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	if cb == nil || cb.cb == nil {
		return fn()
	}
	return cb.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (cb *AICircuitBreaker[T]) GetStats() map[string]any {
	if cb == nil || cb.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    cb.cb.Name(),
		"state":   cb.cb.State().String(),
		"counts":  cb.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (cb *AICircuitBreaker[T]) IsHealthy() bool {
	if cb == nil || cb.cb == nil {
		return true
	}
	return cb.cb.State() == gobreaker.StateClosed
}
