package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/llm"
)

func TestOpenAIBuildURL(t *testing.T) {
	p := NewOpenAI("key", "")
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", p.BuildURL(""))
	assert.Equal(t, "https://proxy.local/v1/chat/completions", p.BuildURL("https://proxy.local/"))
}

func TestOpenAIRequestShaping(t *testing.T) {
	p := NewOpenAI("key", "gpt-4o")
	temp := 0.2
	body, err := p.BuildRequestBody("gpt-4o", []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hello"},
	}, &temp, 1024)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	// System message stays in-band for OpenAI.
	msgs := req["messages"].([]any)
	assert.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, 0.2, req["temperature"])
	assert.Equal(t, float64(1024), req["max_tokens"])
}

func TestOpenAIParseResponse(t *testing.T) {
	p := NewOpenAI("key", "")
	resp, err := p.ParseResponse([]byte(`{
		"model": "gpt-4o",
		"choices": [{"message": {"content": "result text"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "result text", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)

	_, err = p.ParseResponse([]byte(`{"choices": []}`))
	require.Error(t, err)
}

func TestAnthropicHeaders(t *testing.T) {
	p := NewAnthropic("secret", "")
	req, _ := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	p.SetHeaders(req)
	assert.Equal(t, "secret", req.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
}

func TestAnthropicExtractsSystemMessage(t *testing.T) {
	p := NewAnthropic("key", "")
	body, err := p.BuildRequestBody("claude-sonnet-4-5", []llm.Message{
		{Role: llm.RoleSystem, Content: "you are an analyst"},
		{Role: llm.RoleUser, Content: "analyze this"},
	}, nil, 0)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "you are an analyst", req["system"])
	msgs := req["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	// Default max_tokens is applied when unset.
	assert.Equal(t, float64(4096), req["max_tokens"])
	// nil temperature is omitted so the provider default applies.
	_, hasTemp := req["temperature"]
	assert.False(t, hasTemp)
}

func TestAnthropicParseResponse(t *testing.T) {
	p := NewAnthropic("key", "")
	resp, err := p.ParseResponse([]byte(`{
		"model": "claude-sonnet-4-5",
		"content": [{"type": "text", "text": "part one "}, {"type": "text", "text": "part two"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 20, "output_tokens": 30}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "part one part two", resp.Content)
	assert.Equal(t, 50, resp.Usage.TotalTokens)

	_, err = p.ParseResponse([]byte(`{"content": []}`))
	require.Error(t, err)
}
