package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// Manager routes generation calls across registered provider clients
// with failover. The requested (or default) provider is tried first;
// on failure the remaining providers are tried in registration order.
type Manager struct {
	clients         map[string]*Client
	order           []string
	defaultProvider string
	logger          *slog.Logger
}

// NewManager creates an empty manager. Providers with missing
// credentials are simply never registered.
func NewManager(defaultProvider string, logger *slog.Logger) *Manager {
	return &Manager{
		clients:         make(map[string]*Client),
		defaultProvider: defaultProvider,
		logger:          logger.With("component", "llm_manager"),
	}
}

// Register adds a provider client. Registration order determines
// failover order.
func (m *Manager) Register(c *Client) {
	name := c.Name()
	if _, ok := m.clients[name]; !ok {
		m.order = append(m.order, name)
	}
	m.clients[name] = c
	m.logger.Info("LLM provider registered", "provider", name, "default_model", c.DefaultModel())
}

// Providers returns registered provider names in failover order.
func (m *Manager) Providers() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Generate tries the requested provider (or the default), then fails
// over through the remaining providers. When everything fails it
// returns KindAllProvidersFailed carrying the last error per provider.
func (m *Manager) Generate(ctx context.Context, provider string, req Request) (*Response, error) {
	if len(m.clients) == 0 {
		return nil, NewError(KindNotConfigured, "", req.CorrelationID, "no providers registered", nil)
	}

	first := provider
	if first == "" {
		first = m.defaultProvider
	}
	if _, ok := m.clients[first]; !ok {
		if provider != "" {
			return nil, NewError(KindNotConfigured, provider, req.CorrelationID,
				fmt.Sprintf("provider %q not registered", provider), nil)
		}
		first = m.order[0]
	}

	tried := map[string]error{}
	candidates := append([]string{first}, m.order...)
	for _, name := range candidates {
		if _, done := tried[name]; done {
			continue
		}
		resp, err := m.clients[name].Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		tried[name] = err
		if ctx.Err() != nil {
			break
		}
		m.logger.Warn("Provider failed, trying next",
			"provider", name,
			"correlation_id", req.CorrelationID,
			"error", err)
	}

	e := NewError(KindAllProvidersFailed, "", req.CorrelationID,
		fmt.Sprintf("all %d providers failed", len(tried)), nil)
	e.Attempted = tried
	return nil, e
}
