// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package retry wraps outbound API calls with bounded exponential backoff.
// Only transient failures are retried: network errors and a configured set
// of upstream statuses.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/a2e-project/a2e/internal/responses"
)

// Config controls the backoff schedule.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `koanf:"max_retries"`
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `koanf:"initial_delay"`
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration `koanf:"max_delay"`
	// Multiplier grows the delay between successive retries.
	Multiplier float64 `koanf:"multiplier"`
	// JitterFraction randomizes each delay by ±fraction.
	JitterFraction float64 `koanf:"jitter_fraction"`
	// RetryableStatuses lists upstream HTTP statuses worth retrying.
	RetryableStatuses []int `koanf:"retryable_statuses"`
}

// Defaults returns the standard backoff schedule: up to 3 retries starting
// at 1s, doubling, capped at 60s, with ±10% jitter.
func Defaults() Config {
	return Config{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          60 * time.Second,
		Multiplier:        2.0,
		JitterFraction:    0.1,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

// ExhaustedError reports that every attempt failed. It wraps the last
// attempt's error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsRetryable reports whether err represents a transient failure under cfg.
func IsRetryable(err error, cfg Config) bool {
	var statusErr *responses.HTTPStatusError
	if errors.As(err, &statusErr) {
		for _, s := range cfg.RetryableStatuses {
			if statusErr.StatusCode == s {
				return true
			}
		}
		return false
	}
	// A canceled context is a deliberate stop. A deadline hit inside an
	// attempt is a timeout and therefore transient; Do aborts on its own
	// when the overall context is the one that expired.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Do runs fn until it succeeds, a non-retryable error occurs, the retry
// budget is exhausted, or ctx is done. The zero value of T is returned on
// failure.
func Do[T any](ctx context.Context, cfg Config, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsRetryable(err, cfg) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := backoff(cfg, attempt)
		logger.Warn("retrying after transient failure",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// backoff computes the delay before the retry following the given attempt.
func backoff(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= cfg.Multiplier
	}
	if max := float64(cfg.MaxDelay); cfg.MaxDelay > 0 && delay > max {
		delay = max
	}
	if cfg.JitterFraction > 0 {
		spread := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
