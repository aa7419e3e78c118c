package reasoning

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      200 * time.Millisecond,
		Multiplier:          2,
		RandomizationFactor: 0,
		CallTimeout:         50 * time.Millisecond,
		FailureThreshold:    3,
		RecoveryTimeout:     time.Minute,
	}
}

func TestResilient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	inner := Func{Name: "flaky", Fn: func(context.Context, string, string) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	}}
	cfg := fastRetry()
	cfg.FailureThreshold = 10
	r := NewResilient(inner, NewBreakerRegistry(cfg, nil))

	text, err := r.Invoke(context.Background(), "sys", "user")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "flaky", r.Model())
}

func TestResilient_BreakerOpensAndFailsFast(t *testing.T) {
	var calls atomic.Int32
	cause := errors.New("service unavailable")
	inner := Func{Name: "down", Fn: func(context.Context, string, string) (string, error) {
		calls.Add(1)
		return "", cause
	}}
	breakers := NewBreakerRegistry(fastRetry(), nil)
	r := NewResilient(inner, breakers)

	_, err := r.Invoke(context.Background(), "", "")
	var invErr *InvokeError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "down", invErr.Model)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), calls.Load(), "breaker opens after the failure threshold")
	assert.Equal(t, gobreaker.StateOpen, breakers.Get("down").State())

	// A second client for the same model shares the open breaker.
	_, err = NewResilient(inner, breakers).Invoke(context.Background(), "", "")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResilient_CallTimeoutSurfacesAsInvokeError(t *testing.T) {
	inner := Func{Name: "hang", Fn: func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	cfg := fastRetry()
	cfg.FailureThreshold = 10
	cfg.MaxElapsedTime = 120 * time.Millisecond
	r := NewResilient(inner, NewBreakerRegistry(cfg, nil))

	start := time.Now()
	_, err := r.Invoke(context.Background(), "", "")

	var invErr *InvokeError
	require.ErrorAs(t, err, &invErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResilient_CancelledContextStopsImmediately(t *testing.T) {
	var calls atomic.Int32
	inner := Func{Fn: func(context.Context, string, string) (string, error) {
		calls.Add(1)
		return "", errors.New("nope")
	}}
	r := NewResilient(inner, NewBreakerRegistry(fastRetry(), nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Invoke(ctx, "", "")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRetryConfig_WithDefaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	d := DefaultRetryConfig()

	assert.Equal(t, d.InitialInterval, cfg.InitialInterval)
	assert.Equal(t, d.Multiplier, cfg.Multiplier)
	assert.Equal(t, d.FailureThreshold, cfg.FailureThreshold)
	assert.Zero(t, cfg.CallTimeout)
}
