// Package resilience builds the circuit breakers guarding external providers.
package resilience

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/sortie/pkg/logger"
)

// Default breaker settings.
const (
	DefaultFailures    = 5
	DefaultCooldown    = 30 * time.Second
	defaultHalfOpenMax = 1
)

// Settings configures a breaker.
type Settings struct {
	// Name labels the breaker in logs.
	Name string
	// Failures is the number of consecutive failures that opens the circuit.
	Failures uint32
	// Cooldown is how long the circuit stays open before a probe.
	Cooldown time.Duration
}

// New creates a breaker that opens after s.Failures consecutive failures.
// Context cancellation of the caller is not counted as a failure.
func New[T any](s Settings) *gobreaker.CircuitBreaker[T] {
	if s.Failures == 0 {
		s.Failures = DefaultFailures
	}
	if s.Cooldown <= 0 {
		s.Cooldown = DefaultCooldown
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: defaultHalfOpenMax,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Get().Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
}

// IsOpen reports whether err was returned because the circuit is open or
// saturated in half-open state.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
