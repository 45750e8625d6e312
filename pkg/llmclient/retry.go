package llmclient

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryingDoer wraps an *http.Client with exponential backoff on rate
// limiting and server errors, condensed from hector's
// pkg/httpclient.Client for this client's single endpoint.
type RetryingDoer struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryingDoer builds a RetryingDoer. A zero httpClient.Timeout
// means no per-request timeout is enforced by the transport itself —
// callers should set one (spec §5: "LLM calls have a per-request
// timeout configured at the provider client").
func NewRetryingDoer(httpClient *http.Client, maxRetries int, baseDelay, maxDelay time.Duration) *RetryingDoer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &RetryingDoer{client: httpClient, maxRetries: maxRetries, baseDelay: baseDelay, maxDelay: maxDelay}
}

func retryable(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Do executes req, retrying on 408, 429, 500, 502, 503 and 504 (and on
// transport errors) with exponential backoff and jitter up to
// maxRetries times.
func (d *RetryingDoer) Do(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var lastResp *http.Response
	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 && bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			lastResp = nil
		} else if !retryable(resp.StatusCode) {
			return resp, nil
		} else {
			lastResp = resp
			lastErr = nil
		}

		if attempt == d.maxRetries {
			break
		}

		delay := d.backoff(attempt)
		if lastResp != nil {
			slog.Warn("llm proxy request retrying", "status", lastResp.StatusCode, "attempt", attempt+1, "delay", delay)
			lastResp.Body.Close()
		} else {
			slog.Warn("llm proxy request retrying after transport error", "error", lastErr, "attempt", attempt+1, "delay", delay)
		}
		time.Sleep(delay)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

func (d *RetryingDoer) backoff(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * d.baseDelay
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
	total := delay + jitter
	if total > d.maxDelay {
		return d.maxDelay
	}
	return total
}
