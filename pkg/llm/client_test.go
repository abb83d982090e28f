package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/llm/breaker"
)

// fakeProvider speaks a minimal JSON protocol against httptest servers.
type fakeProvider struct {
	name string
}

func (p *fakeProvider) Name() string                  { return p.name }
func (p *fakeProvider) DefaultModel() string          { return "fake-model" }
func (p *fakeProvider) BuildURL(baseURL string) string { return baseURL + "/generate" }
func (p *fakeProvider) SetHeaders(req *http.Request)  { req.Header.Set("X-Api-Key", "test") }

func (p *fakeProvider) BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error) {
	return json.Marshal(map[string]any{"model": model, "messages": messages})
}

func (p *fakeProvider) ParseResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 2, MaxBackoff: 4 * time.Millisecond}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *breaker.Breaker) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	br := breaker.New(breaker.DefaultConfig())
	c := NewClient(&fakeProvider{name: "fake"}, srv.URL, br, fastRetry(), slog.Default())
	return c, br
}

func TestClientGenerateSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "corr-1", r.Header.Get("X-Correlation-ID"))
		_ = json.NewEncoder(w).Encode(Response{Content: "generated text", Model: "fake-model"})
	})

	resp, err := c.Generate(context.Background(), Request{
		Messages:      []Message{{Role: RoleUser, Content: "hi"}},
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "generated text", resp.Content)
}

func TestClientRetriesRetryableStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"rate limited", http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError},
		{"bad gateway", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(tt.status)
					return
				}
				_ = json.NewEncoder(w).Encode(Response{Content: "ok"})
			})

			resp, err := c.Generate(context.Background(), Request{CorrelationID: "corr"})
			require.NoError(t, err)
			assert.Equal(t, "ok", resp.Content)
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Generate(context.Background(), Request{CorrelationID: "corr"})
	require.Error(t, err)
	assert.Equal(t, KindHTTPStatus, KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Generate(context.Background(), Request{CorrelationID: "corr"})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientBreakerOpenRejectsWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	c, br := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	for i := 0; i < breaker.DefaultConfig().FailureThreshold; i++ {
		br.RecordFailure()
	}
	require.Equal(t, breaker.StateOpen, br.State())

	_, err := c.Generate(context.Background(), Request{CorrelationID: "corr"})
	require.Error(t, err)
	assert.Equal(t, KindBreakerOpen, KindOf(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestClientMalformedResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	})

	_, err := c.Generate(context.Background(), Request{CorrelationID: "corr"})
	require.Error(t, err)
	assert.Equal(t, KindMalformed, KindOf(err))
}
