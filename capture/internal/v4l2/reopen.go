package v4l2

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReopenConfig contains configuration for exponential backoff device reopening
type ReopenConfig struct {
	MaxRetries    int           // Maximum number of reopen attempts (default: 5)
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultReopenConfig returns default reopen configuration
func DefaultReopenConfig() ReopenConfig {
	return ReopenConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// ReopenState tracks the current state of reopen attempts
type ReopenState struct {
	CurrentRetries int
	Reopens        *uint32 // Atomic counter for total reopen attempts
}

// OpenFunc is a function that attempts to open the device and run until
// failure. Returns nil on graceful shutdown.
type OpenFunc func(ctx context.Context) error

// RunWithReopen executes an open function with exponential backoff retry logic
//
// A webcam can be unplugged, grabbed by another process, or wedged by a
// driver reset; this keeps trying to reopen it with growing delays.
//
// Backoff schedule with defaults: 1s, 2s, 4s, 8s, 16s, then stop.
//
// Returns an error if max retries are exceeded or context is cancelled.
func RunWithReopen(
	ctx context.Context,
	openFn OpenFunc,
	cfg ReopenConfig,
	state *ReopenState,
) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("v4l2: context cancelled, stopping reopen loop")
			return ctx.Err()
		default:
		}

		err := openFn(ctx)
		if err == nil {
			state.CurrentRetries = 0
			slog.Info("v4l2: device session ended cleanly")
			return nil
		}

		slog.Error("v4l2: device session failed", "error", err)

		state.CurrentRetries++
		atomic.AddUint32(state.Reopens, 1)

		if state.CurrentRetries > cfg.MaxRetries {
			return fmt.Errorf("v4l2: max reopen attempts exceeded (%d)", cfg.MaxRetries)
		}

		delay := calculateBackoff(state.CurrentRetries, cfg)

		slog.Warn("v4l2: retrying device open",
			"attempt", state.CurrentRetries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			slog.Info("v4l2: context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// calculateBackoff calculates the exponential backoff delay for a given attempt
//
// Formula: delay = retryDelay * 2^(attempt-1), capped at maxRetryDelay.
func calculateBackoff(attempt int, cfg ReopenConfig) time.Duration {
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

// ResetReopenState resets the reopen state after the device reaches a healthy
// PLAYING state, so a later failure starts the backoff schedule fresh.
func ResetReopenState(state *ReopenState) {
	state.CurrentRetries = 0
	slog.Debug("v4l2: reopen state reset")
}
