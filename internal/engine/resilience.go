package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/sony/gobreaker"

	"github.com/aristath/workgraph/internal/config"
)

// Resilient wraps an Engine with exponential backoff retry and a circuit breaker.
type Resilient struct {
	inner   Engine
	retry   config.RetryConfig
	breaker *gobreaker.CircuitBreaker
	logger  hclog.Logger

	mu       sync.Mutex
	attempts int
}

// NewResilient wraps inner. The breaker is named after name and trips after
// cfg.Breaker.ConsecutiveFailures consecutive failed attempts.
func NewResilient(name string, inner Engine, cfg config.EngineConfig, logger hclog.Logger) *Resilient {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("resilience")

	threshold := cfg.Breaker.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    0, // Don't clear counts automatically
		Timeout:     cfg.Breaker.Timeout.Std(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Cancellation and rejections say nothing about engine health
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, ErrRejected)
		},
	})

	return &Resilient{inner: inner, retry: cfg.Retry, breaker: cb, logger: logger}
}

// ResetTask resets the task through the breaker, retrying transient failures.
// Open-circuit, rejection and cancellation errors stop the retries.
func (r *Resilient) ResetTask(ctx context.Context, runID, task string) error {
	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		r.mu.Lock()
		r.attempts++
		r.mu.Unlock()

		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.inner.ResetTask(ctx, runID, task)
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if errors.Is(err, ErrRejected) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		r.logger.Debug("reset attempt failed", "run", runID, "task", task, "error", err)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retry.InitialInterval.Std()
	policy.MaxInterval = r.retry.MaxInterval.Std()
	policy.MaxElapsedTime = r.retry.MaxElapsedTime.Std()
	policy.Multiplier = r.retry.Multiplier
	policy.RandomizationFactor = r.retry.RandomizationFactor

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// State returns the circuit breaker state.
func (r *Resilient) State() gobreaker.State {
	return r.breaker.State()
}

// Attempts returns how many calls reached the breaker so far.
func (r *Resilient) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}
