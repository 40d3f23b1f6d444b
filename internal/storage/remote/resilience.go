package remote

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/memvault/memvault/internal/storage"
)

// ErrCircuitOpen mirrors the teacher's LLM circuit breaker: the backend has
// failed enough consecutive times that calls are rejected without even
// attempting the network round trip.
var ErrCircuitOpen = errors.New("remote store: circuit breaker is open")

// newCircuitBreaker wraps calls to the remote backend the same way the
// teacher's internal/llm/circuit_breaker.go wraps LLM calls: three
// consecutive failures trips it, it stays open 30s, and two consecutive
// half-open successes close it again.
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

// isPermanentError classifies a remote error per spec §4.3.5: limit errors
// (413 payload too large, 507 insufficient storage, quota exhaustion) are
// permanent and must never be retried; everything else (timeouts, 5xx,
// 429) is transient.
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, storage.ErrMetadataTooLarge) || errors.Is(err, storage.ErrContentTooLarge) ||
		errors.Is(err, storage.ErrCapacityExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"413", "507", "quota", "payload too large", "insufficient storage"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retryConfig bounds the exponential backoff with jitter used for transient
// errors (spec §4.3.5).
type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

var defaultRetry = retryConfig{maxAttempts: 4, baseDelay: 100 * time.Millisecond, maxDelay: 5 * time.Second}

// withRetry runs fn, retrying transient failures with exponential backoff
// and jitter. A permanent error (per isPermanentError) returns immediately
// wrapped in storage.ErrPermanent so C4 knows to stop enqueueing retries.
func withRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.baseDelay

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			jittered := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jittered):
			}
			delay *= 2
			if delay > cfg.maxDelay {
				delay = cfg.maxDelay
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if isPermanentError(err) {
			return wrapPermanent(err)
		}
		lastErr = err
	}

	return lastErr
}

func wrapPermanent(err error) error {
	return &permanentError{cause: err}
}

// guarded runs fn through cb with retry-on-transient-error semantics. If cb
// is open, fn is never called and ErrCircuitOpen is returned immediately.
func guarded(ctx context.Context, cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (any, error) {
		return nil, withRetry(ctx, defaultRetry, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		return ErrCircuitOpen
	}
	return err
}

type permanentError struct {
	cause error
}

func (e *permanentError) Error() string { return e.cause.Error() }
func (e *permanentError) Unwrap() error { return e.cause }
func (e *permanentError) Is(target error) bool {
	return target == storage.ErrPermanent
}
