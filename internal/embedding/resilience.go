package embedding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen mirrors the teacher's internal/llm/circuit_breaker.go: once
// an embedding backend fails three times in a row, calls are rejected
// without a network round trip until the breaker cools down.
var ErrCircuitOpen = errors.New("embedding provider: circuit breaker is open")

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// isPermanentError classifies a provider error as non-retryable: a bad
// request (model unknown, malformed input) will not succeed on retry, unlike
// a timeout or a 5xx.
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDimensionMismatch) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"400", "404", "model not found", "invalid"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func guarded(ctx context.Context, cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		return ErrCircuitOpen
	}
	return err
}
