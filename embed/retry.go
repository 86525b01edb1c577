package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
)

// TransientError reports that the embedding service stayed unavailable after
// every retry attempt. Callers should surface it as "service unavailable,
// retry later" rather than as a permanent failure.
//
// The final underlying error can be accessed via errors.Unwrap.
type TransientError struct {
	Attempts int
	cause    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("embedding service unavailable after %d attempts: %v", e.Attempts, e.cause)
}

func (e *TransientError) Unwrap() error { return e.cause }

// MalformedResponseError reports a successful HTTP response whose payload
// violates the embedding contract, e.g. a wrong vector dimension or an
// out-of-range result index. Retrying cannot fix such a response, so it is
// never retried.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed embedding response: " + e.Reason
}

// Policy controls retries of transient embedding failures. The zero value is
// not usable; start from DefaultPolicy.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Backoff maps a 1-based failed attempt number to the pause before the
	// next try.
	Backoff func(attempt int) time.Duration

	// Sleep pauses between attempts. It exists as a field so tests can
	// substitute a fake clock. The default honors context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the standard policy: 3 attempts with linear backoff
// starting at 2 seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(2 * time.Second),
		Sleep:       sleepContext,
	}
}

// LinearBackoff returns a backoff function that pauses delay*attempt.
func LinearBackoff(delay time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		return delay * time.Duration(attempt)
	}
}

// Do runs fn, retrying transient failures according to the policy. Permanent
// failures (malformed requests, context cancellation) are returned as-is on
// the first occurrence; exhausting all attempts yields a *TransientError.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if err := p.sleep(ctx, p.Backoff(attempt)); err != nil {
			return err
		}
	}
	return &TransientError{Attempts: attempts, cause: lastErr}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

// Transient classifies an embedding call error. Rate limits, timeouts, and
// server-side failures are retryable; malformed requests and context
// cancellation are not.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return false
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 408, apierr.StatusCode == 429:
			return true
		case apierr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	// Transport-level failures (connection refused, resets) surface as
	// non-API errors and are worth retrying.
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
