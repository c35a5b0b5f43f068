package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Retry policy for the dispatch transport.
const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = 1 * time.Second
)

// Transport issues HTTP requests with retry and exponential backoff.
// 401/403 abort immediately as an AuthError; 429 and 500/502/503 retry
// with doubling delay (1s, 2s, 4s, ...); connection errors retry; every
// other 4xx aborts. Exhausting retries surfaces the last observed error.
type Transport struct {
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTransport creates a retrying transport with the default policy.
func NewTransport(logger *slog.Logger) *Transport {
	return &Transport{
		client:      &http.Client{Timeout: 30 * time.Second},
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether a response status calls for another attempt.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable:
		return true
	}
	return false
}

// Do runs newReq until it succeeds, fails terminally, or attempts run out.
// A fresh request is built per attempt so bodies can be re-read.
// On success it returns the response body.
func (t *Transport) Do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := t.baseDelay << (attempt - 2)
			t.logger.Debug("retrying dispatch request", "attempt", attempt, "delay", delay)
			if err := t.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := t.client.Do(req.WithContext(ctx))
		if err != nil {
			// Connection/timeout errors are retryable.
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &AuthError{Status: resp.StatusCode, Message: string(body)}
		case retryable(resp.StatusCode):
			lastErr = fmt.Errorf("remote returned status %d: %s", resp.StatusCode, string(body))
			continue
		case resp.StatusCode >= 400:
			return nil, &RequestError{Status: resp.StatusCode, Message: string(body)}
		}

		if readErr != nil {
			lastErr = readErr
			continue
		}
		return body, nil
	}

	return nil, &TransientError{Attempts: t.maxAttempts, Err: lastErr}
}
