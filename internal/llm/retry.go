package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Retry configuration for streaming generation calls.
const (
	// MaxRetries is the attempt ceiling for transient failures.
	MaxRetries = 3

	// RetryDelay is the wait before the first retry.
	RetryDelay = time.Second

	// RetryBackoff multiplies the delay between successive attempts.
	RetryBackoff = 2
)

// RetryClient wraps a Client and retries transient generation failures
// with exponential backoff. Only failures that occur before any stream
// event was delivered are retried; once tokens have reached the caller
// the error surfaces as-is.
type RetryClient struct {
	inner  Client
	logger *slog.Logger
}

// NewRetryClient wraps inner with retry behavior.
func NewRetryClient(inner Client, logger *slog.Logger) *RetryClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryClient{inner: inner, logger: logger}
}

// Chat retries transient failures of the wrapped client's Chat.
func (r *RetryClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	return r.ChatStream(ctx, model, messages, tools, nil)
}

// ChatStream retries transient failures with exponential backoff, up to
// MaxRetries attempts total.
func (r *RetryClient) ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error) {
	delay := RetryDelay
	var lastErr error

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		delivered := false
		wrapped := callback
		if callback != nil {
			wrapped = func(ev StreamEvent) {
				delivered = true
				callback(ev)
			}
		}

		resp, err := r.inner.ChatStream(ctx, model, messages, tools, wrapped)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if delivered || !isTransient(err) || attempt == MaxRetries {
			return nil, err
		}

		r.logger.Warn("generation failed, retrying",
			"model", model,
			"attempt", attempt,
			"max_retries", MaxRetries,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= RetryBackoff
	}

	return nil, lastErr
}

// Ping delegates to the wrapped client.
func (r *RetryClient) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

// isTransient reports whether err is a retryable generation failure.
func isTransient(err error) bool {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Transient
	}
	return false
}
