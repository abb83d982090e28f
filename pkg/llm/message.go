// Package llm provides provider-agnostic text generation with bounded
// retries, a per-provider circuit breaker, and cross-provider failover.
package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token accounting from a provider response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the provider-agnostic generation result.
type Response struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// Request carries one generation call through the client.
type Request struct {
	Messages      []Message
	Model         string
	Temperature   *float64
	MaxTokens     int
	CorrelationID string
}
