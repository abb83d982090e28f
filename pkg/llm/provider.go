package llm

import "net/http"

// Provider shapes requests for one LLM vendor. Implementations differ
// only in URL construction, auth headers, request body format, and
// response parsing; the surrounding transport, retry, and breaker
// behavior is shared by Client.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// DefaultModel returns the model used when the caller names none.
	DefaultModel() string

	// BuildURL constructs the full API endpoint URL.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific auth headers to the request.
	SetHeaders(req *http.Request)

	// BuildRequestBody creates the JSON request body. A nil temperature
	// means provider default. Providers that take the system message
	// out-of-band extract the first system message here.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the response from provider-specific JSON.
	ParseResponse(body []byte) (*Response, error)
}
