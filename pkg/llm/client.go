package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/specforge/specforge/pkg/llm/breaker"
)

// defaultRequestTimeout bounds one HTTP round trip to a provider.
const defaultRequestTimeout = 30 * time.Second

// Client drives one provider through the shared transport: circuit
// breaker admission, bounded exponential-backoff retry, and error
// classification. One Generate call counts as one breaker event
// regardless of how many retry attempts it took.
type Client struct {
	provider   Provider
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	breaker    *breaker.Breaker
	logger     *slog.Logger
}

// NewClient builds a client for one provider.
func NewClient(p Provider, baseURL string, br *breaker.Breaker, retry RetryConfig, logger *slog.Logger) *Client {
	return &Client{
		provider:   p,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		retry:      retry,
		breaker:    br,
		logger:     logger.With("component", "llm_client", "provider", p.Name()),
	}
}

// Name returns the underlying provider name.
func (c *Client) Name() string { return c.provider.Name() }

// DefaultModel returns the provider's default model.
func (c *Client) DefaultModel() string { return c.provider.DefaultModel() }

// Generate runs one generation request. A rejection by an open breaker
// surfaces as KindBreakerOpen without touching the network.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if !c.breaker.Allow() {
		return nil, NewError(KindBreakerOpen, c.provider.Name(), req.CorrelationID,
			"circuit breaker open", nil)
	}

	model := req.Model
	if model == "" {
		model = c.provider.DefaultModel()
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.retry.backoff(attempt-1)); err != nil {
				lastErr = NewError(KindRequestFailed, c.provider.Name(), req.CorrelationID,
					"context done during backoff", err)
				break
			}
		}

		resp, retryable, err := c.doOnce(ctx, model, req)
		if err == nil {
			c.breaker.RecordSuccess()
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Warn("Provider call failed, retrying",
			"attempt", attempt,
			"max_attempts", c.retry.MaxAttempts,
			"correlation_id", req.CorrelationID,
			"error", err)
	}

	c.breaker.RecordFailure()
	return nil, lastErr
}

// doOnce performs one HTTP round trip. The second return reports
// whether the failure is retryable: network errors, 429, and 5xx are;
// other statuses and parse failures are not.
func (c *Client) doOnce(ctx context.Context, model string, req Request) (*Response, bool, error) {
	body, err := c.provider.BuildRequestBody(model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, false, NewError(KindRequestFailed, c.provider.Name(), req.CorrelationID,
			"failed to build request body", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.BuildURL(c.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, false, NewError(KindRequestFailed, c.provider.Name(), req.CorrelationID,
			"failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Correlation-ID", req.CorrelationID)
	c.provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, NewError(KindRequestFailed, c.provider.Name(), req.CorrelationID,
			"request failed", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, NewError(KindRequestFailed, c.provider.Name(), req.CorrelationID,
			"failed to read response body", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		retryable := httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500
		e := NewError(KindHTTPStatus, c.provider.Name(), req.CorrelationID, string(respBody), nil)
		e.StatusCode = httpResp.StatusCode
		return nil, retryable, e
	}

	resp, err := c.provider.ParseResponse(respBody)
	if err != nil {
		return nil, false, NewError(KindMalformed, c.provider.Name(), req.CorrelationID,
			fmt.Sprintf("unparseable response: %s", Truncate(string(respBody))), err)
	}
	return resp, false, nil
}
