package ai

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds every backend call and controls how transient failures are retried.
type RetryConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	InitialWait    time.Duration
	MaxWait        time.Duration
	Multiplier     float64
}

// DefaultRetryConfig allows one retry and caps each attempt at 45 seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    2,
		AttemptTimeout: 45 * time.Second,
		InitialWait:    500 * time.Millisecond,
		MaxWait:        5 * time.Second,
		Multiplier:     2,
	}
}

// RetryProvider decorates a Provider with per-attempt timeouts and retries.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps p with retry behaviour.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := range r.config.MaxAttempts {
		resp, err := r.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) {
			break
		}
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, &GenerationError{Reason: ReasonTimeout, Err: ctx.Err()}
		case <-time.After(r.backoff(attempt, err)):
		}
	}

	return nil, classify(lastErr)
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

func (r *RetryProvider) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx := ctx
	if r.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.config.AttemptTimeout)
		defer cancel()
	}

	resp, err := r.inner.Generate(attemptCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !IsValidationError(err) {
		return nil, &GenerationError{Reason: ReasonTimeout, Err: err}
	}
	return resp, err
}

func retryable(err error) bool {
	if IsValidationError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Retryable()
	}
	return true
}

func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	var genErr *GenerationError
	if errors.As(err, &genErr) && genErr.RetryAfter > 0 {
		return genErr.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if r.config.MaxWait > 0 && wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// ±20% jitter
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// classify makes sure callers always see one of the two error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsValidationError(err) || IsGenerationError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{Reason: ReasonTimeout, Err: err}
	}
	return &GenerationError{Reason: ReasonUnavailable, Err: err}
}
