package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/workgraph/internal/config"
)

// scriptedEngine returns the scripted errors in order, then succeeds.
type scriptedEngine struct {
	mu        sync.Mutex
	errs      []error
	callCount int
}

func (e *scriptedEngine) ResetTask(ctx context.Context, runID, task string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.callCount++ }()
	if e.callCount < len(e.errs) {
		return e.errs[e.callCount]
	}
	return nil
}

func (e *scriptedEngine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

func testEngineConfig(maxElapsed time.Duration) config.EngineConfig {
	return config.EngineConfig{
		Retry: config.RetryConfig{
			InitialInterval:     config.Duration(10 * time.Millisecond),
			MaxInterval:         config.Duration(50 * time.Millisecond),
			MaxElapsedTime:      config.Duration(maxElapsed),
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
		Breaker: config.BreakerConfig{
			MaxRequests:         1,
			Timeout:             config.Duration(time.Minute),
			ConsecutiveFailures: 5,
		},
	}
}

func TestResilient_TransientThenSuccess(t *testing.T) {
	inner := &scriptedEngine{errs: []error{
		fmt.Errorf("transient error 1"),
		fmt.Errorf("transient error 2"),
	}}
	r := NewResilient("test", inner, testEngineConfig(time.Second), nil)

	require.NoError(t, r.ResetTask(context.Background(), "run", "add1"))
	assert.Equal(t, 3, inner.CallCount())
	assert.Equal(t, 3, r.Attempts())
	assert.Equal(t, gobreaker.StateClosed, r.State())
}

func TestResilient_RejectionNotRetried(t *testing.T) {
	inner := &scriptedEngine{errs: []error{
		fmt.Errorf("%w: task is running", ErrRejected),
	}}
	r := NewResilient("test", inner, testEngineConfig(time.Second), nil)

	err := r.ResetTask(context.Background(), "run", "add1")
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Equal(t, 1, inner.CallCount())
}

func TestResilient_CircuitOpens(t *testing.T) {
	errs := make([]error, 50)
	for i := range errs {
		errs[i] = fmt.Errorf("persistent error %d", i+1)
	}
	inner := &scriptedEngine{errs: errs}
	r := NewResilient("test", inner, testEngineConfig(2*time.Second), nil)

	// Retries keep failing until the fifth consecutive failure trips the
	// breaker; the open circuit is permanent for the retry loop.
	err := r.ResetTask(context.Background(), "run", "add1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, gobreaker.StateOpen, r.State())
	assert.Equal(t, 5, inner.CallCount())

	// Further resets fail fast without reaching the engine.
	err = r.ResetTask(context.Background(), "run", "add2")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, 5, inner.CallCount())
}

func TestResilient_ContextCancelledStopsRetry(t *testing.T) {
	errs := make([]error, 100)
	for i := range errs {
		errs[i] = fmt.Errorf("error %d", i+1)
	}
	inner := &scriptedEngine{errs: errs}
	cfg := testEngineConfig(10 * time.Second)
	cfg.Retry.InitialInterval = config.Duration(50 * time.Millisecond)
	cfg.Retry.MaxInterval = config.Duration(200 * time.Millisecond)
	cfg.Breaker.ConsecutiveFailures = 1000
	r := NewResilient("test", inner, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.ResetTask(ctx, "run", "add1")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Equal(t, gobreaker.StateClosed, r.State())
}

func TestResilient_CancellationNotCounted(t *testing.T) {
	inner := &scriptedEngine{}
	for i := 0; i < 10; i++ {
		inner.errs = append(inner.errs, context.Canceled)
	}
	cfg := testEngineConfig(100 * time.Millisecond)
	r := NewResilient("test", inner, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		assert.Error(t, r.ResetTask(ctx, "run", "add1"))
	}
	assert.Equal(t, gobreaker.StateClosed, r.State())
	assert.Equal(t, 0, inner.CallCount())
}
