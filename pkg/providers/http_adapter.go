package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
)

// HTTPAdapter executes requests by POSTing the ExecuteRequest as JSON to
// BaseURL+CompletionPath and decoding an ExecuteResult from the answer.
// Backends speaking a vendor protocol sit behind a gateway that exposes
// this envelope.
//
// Each attempt is bounded by Connection.Timeout. Transient failures
// (network errors, attempt timeouts, 5xx) are retried with exponential
// backoff up to Connection.RetryAttempts times; Connection.CallTimeout is
// the budget of the whole sequence. Authentication failures, 4xx answers
// and provider-side rate limits are returned immediately.
type HTTPAdapter struct {
	provider *Provider
	client   *http.Client
	logger   *slog.Logger

	// backoff returns the wait before retry attempt n (n >= 1).
	backoff func(n int) time.Duration
}

// NewHTTPAdapter creates an adapter for p. A nil client gets a default
// one; attempts are bounded through their context, not the client.
func NewHTTPAdapter(p *Provider, client *http.Client, logger *slog.Logger) *HTTPAdapter {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPAdapter{
		provider: p.Clone(),
		client:   client,
		logger:   logger,
		backoff:  retryBackoff,
	}
}

// retryBackoff doubles from 250ms: 250ms, 500ms, 1s, ...
func retryBackoff(n int) time.Duration {
	return time.Duration(math.Pow(2, float64(n-1))) * 250 * time.Millisecond
}

// CallTimeout is the time a full Execute may take: every attempt at
// Timeout plus the backoff between them. Zero when Timeout is zero.
func (c Connection) CallTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 0
	}
	total := c.Timeout
	for n := 1; n <= c.RetryAttempts; n++ {
		total += retryBackoff(n) + c.Timeout
	}
	return total
}

// Execute implements Adapter.
func (a *HTTPAdapter) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := a.do(ctx, body)
	if err != nil {
		return nil, err
	}

	var result ExecuteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ParseError{
			Provider:    a.provider.ID,
			RawResponse: string(raw),
			Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}
	return &result, nil
}

// do runs the attempts and returns the body of the first 2xx answer.
func (a *HTTPAdapter) do(ctx context.Context, body []byte) ([]byte, error) {
	p := a.provider

	var lastErr error
	for attempt := 0; attempt <= p.Connection.RetryAttempts; attempt++ {
		if attempt > 0 {
			wait := a.backoff(attempt)
			a.logger.Debug("retrying provider request",
				"provider", p.ID,
				"attempt", attempt,
				"backoff", wait,
			)
			select {
			case <-ctx.Done():
				return nil, a.contextError(ctx)
			case <-time.After(wait):
			}
		}

		raw, retry, err := a.attempt(ctx, body)
		if err == nil {
			return raw, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		a.logger.Warn("provider request failed, will retry",
			"provider", p.ID,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return nil, lastErr
}

// attempt performs one request under its own Connection.Timeout. retry
// reports whether the failure is transient.
func (a *HTTPAdapter) attempt(ctx context.Context, body []byte) (raw []byte, retry bool, err error) {
	p := a.provider
	url := strings.TrimRight(p.Connection.BaseURL, "/") + p.Connection.CompletionPath

	attemptCtx := ctx
	if p.Connection.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.Connection.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range p.Connection.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.HasCredential() {
		req.Header.Set("Authorization", "Bearer "+p.Connection.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		retry, err := a.transient(ctx, attemptCtx, err)
		return nil, retry, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			if attemptCtx.Err() != nil {
				retry, err := a.transient(ctx, attemptCtx, err)
				return nil, retry, err
			}
			return nil, false, &ParseError{Provider: p.ID, Cause: fmt.Errorf("failed to read response: %w", err)}
		}
		return raw, false, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, &AuthError{Provider: p.ID, Message: string(errorBody)}

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, &RateLimitError{
			Provider:   p.ID,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(errorBody),
		}

	case resp.StatusCode < 500:
		return nil, false, &ProviderError{Provider: p.ID, StatusCode: resp.StatusCode, Message: string(errorBody)}
	}
	return nil, true, &ProviderError{Provider: p.ID, StatusCode: resp.StatusCode, Message: string(errorBody)}
}

// transient classifies a transport failure. The caller's context ending
// stops the retries; the attempt's own deadline does not.
func (a *HTTPAdapter) transient(ctx, attemptCtx context.Context, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, a.contextError(ctx)
	}
	if attemptCtx.Err() == context.DeadlineExceeded {
		return true, &TimeoutError{Provider: a.provider.ID, Timeout: a.provider.Connection.Timeout}
	}
	return true, &ProviderError{Provider: a.provider.ID, Message: "transport failure", Cause: err}
}

func (a *HTTPAdapter) contextError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &TimeoutError{Provider: a.provider.ID, Timeout: a.provider.Connection.CallTimeout()}
	}
	return ctx.Err()
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
