package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock records requested pauses instead of sleeping.
type fakeClock struct {
	slept []time.Duration
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return nil
}

func testPolicy(clock *fakeClock, attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		Backoff:     LinearBackoff(2 * time.Second),
		Sleep:       clock.sleep,
	}
}

func TestPolicyDoSucceedsFirstTry(t *testing.T) {
	clock := &fakeClock{}
	p := testPolicy(clock, 3)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.slept)
}

func TestPolicyDoLinearBackoff(t *testing.T) {
	clock := &fakeClock{}
	p := testPolicy(clock, 3)

	transient := errors.New("connection reset")

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// Pause grows linearly with the attempt number.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.slept)
}

func TestPolicyDoExhaustion(t *testing.T) {
	clock := &fakeClock{}
	p := testPolicy(clock, 3)

	cause := errors.New("connection refused")

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return cause
	})

	var transient *TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, transient.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
	assert.Len(t, clock.slept, 2)
}

func TestPolicyDoPermanentError(t *testing.T) {
	clock := &fakeClock{}
	p := testPolicy(clock, 3)

	permanent := &openai.Error{StatusCode: http.StatusBadRequest}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)

	var transient *TransientError
	assert.False(t, errors.As(err, &transient))
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.slept)
}

func TestPolicyDoContextCanceled(t *testing.T) {
	clock := &fakeClock{}
	p := testPolicy(clock, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		return ctx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestTransientClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limited", err: &openai.Error{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "request timeout", err: &openai.Error{StatusCode: http.StatusRequestTimeout}, want: true},
		{name: "server error", err: &openai.Error{StatusCode: http.StatusInternalServerError}, want: true},
		{name: "service unavailable", err: &openai.Error{StatusCode: http.StatusServiceUnavailable}, want: true},
		{name: "bad request", err: &openai.Error{StatusCode: http.StatusBadRequest}, want: false},
		{name: "unauthorized", err: &openai.Error{StatusCode: http.StatusUnauthorized}, want: false},
		{name: "transport failure", err: errors.New("connection refused"), want: true},
		{name: "malformed response", err: &MalformedResponseError{Reason: "dimension 3, want 8"}, want: false},
		{name: "wrapped malformed response", err: fmt.Errorf("embed batch: %w", &MalformedResponseError{Reason: "missing embedding"}), want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

func TestLinearBackoff(t *testing.T) {
	backoff := LinearBackoff(500 * time.Millisecond)

	assert.Equal(t, 500*time.Millisecond, backoff(1))
	assert.Equal(t, time.Second, backoff(2))
	assert.Equal(t, 1500*time.Millisecond, backoff(3))
}
