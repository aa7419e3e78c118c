package reasoning

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RetryConfig configures retry, timeout and circuit breaking around calls.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
	CallTimeout         time.Duration // Per attempt; zero means no limit
	FailureThreshold    uint32        // Consecutive failures before the breaker opens (default 3)
	RecoveryTimeout     time.Duration // Time the breaker stays open (default 60s)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
		CallTimeout:         2 * time.Minute,
		FailureThreshold:    3,
		RecoveryTimeout:     60 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultRetryConfig. CallTimeout
// stays zero when unset.
func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.InitialInterval <= 0 {
		c.InitialInterval = d.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	if c.MaxElapsedTime <= 0 {
		c.MaxElapsedTime = d.MaxElapsedTime
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.RandomizationFactor < 0 || c.RandomizationFactor > 1 {
		c.RandomizationFactor = d.RandomizationFactor
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = d.RecoveryTimeout
	}
	return c
}

// BreakerRegistry manages one circuit breaker per model.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      RetryConfig
	logger   *zap.Logger
}

// NewBreakerRegistry creates a registry whose breakers use cfg.
func NewBreakerRegistry(cfg RetryConfig, logger *zap.Logger) *BreakerRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cfg:      cfg,
		logger:   logger,
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *BreakerRegistry) Get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	threshold := r.cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // One probe in half-open state
		Timeout:     r.cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("Circuit breaker state change",
				zap.String("model", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation is not a service failure
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	r.breakers[name] = cb
	return cb
}

// Resilient decorates a Client with per-attempt timeouts, exponential
// backoff and a circuit breaker shared by every client of the same model.
type Resilient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
	cfg     RetryConfig
}

// NewResilient wraps c. breakers may be shared between clients.
func NewResilient(c Client, breakers *BreakerRegistry) *Resilient {
	return &Resilient{
		inner:   c,
		breaker: breakers.Get(c.Model()),
		cfg:     breakers.cfg,
	}
}

func (r *Resilient) Model() string {
	return r.inner.Model()
}

// Invoke calls the wrapped client, retrying transient failures. Every
// failure is returned as *InvokeError.
func (r *Resilient) Invoke(ctx context.Context, system, user string) (string, error) {
	var text string

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := r.breaker.Execute(func() (interface{}, error) {
			callCtx := ctx
			if r.cfg.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, r.cfg.CallTimeout)
				defer cancel()
			}
			return r.inner.Invoke(callCtx, system, user)
		})
		if err != nil {
			// An open breaker or a cancelled caller will not recover by retrying
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		text = result.(string)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialInterval
	policy.MaxInterval = r.cfg.MaxInterval
	policy.MaxElapsedTime = r.cfg.MaxElapsedTime
	policy.Multiplier = r.cfg.Multiplier
	policy.RandomizationFactor = r.cfg.RandomizationFactor

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", &InvokeError{Model: r.Model(), Err: err}
	}
	return text, nil
}
