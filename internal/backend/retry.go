package backend

import (
	"bytes"
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// retryConfig configures bounded exponential backoff for idempotent reads.
// A hung backend must never leave the UI loading forever, so reads get a
// small bounded budget.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
		maxDelay:   5 * time.Second,
		multiplier: 2.0,
	}
}

// shouldRetry retries on transport errors, server errors and rate limits.
func shouldRetry(resp *http.Response, err error) bool {
	if err != nil || resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// doWithRetry executes req with exponential backoff and jitter. The request
// body, if any, is snapshotted so it can be replayed per attempt.
func doWithRetry(ctx context.Context, client *http.Client, req *http.Request, cfg retryConfig) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		req.ContentLength = int64(len(bodyBytes))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	var lastResp *http.Response
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(cfg.baseDelay) * math.Pow(cfg.multiplier, float64(attempt-1)))
			if delay > cfg.maxDelay {
				delay = cfg.maxDelay
			}
			// Jitter spreads concurrent retries apart.
			delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}

			if bodyBytes != nil {
				req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}
		}

		resp, err := client.Do(req.WithContext(ctx))
		if !shouldRetry(resp, err) {
			return resp, err
		}
		if lastResp != nil && lastResp.Body != nil {
			lastResp.Body.Close()
		}
		lastResp, lastErr = resp, err
	}
	return lastResp, lastErr
}
