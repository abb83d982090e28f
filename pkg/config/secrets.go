package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// SecretBroker reads and writes secret maps under conventional paths
// (auth/jwt, ai/{provider}, database/*, cache/*).
type SecretBroker interface {
	GetSecret(ctx context.Context, path string) (map[string]string, error)
	PutSecret(ctx context.Context, path string, data map[string]string) error
	DeleteSecret(ctx context.Context, path string) error
}

// VaultBroker implements SecretBroker over HashiCorp Vault's KV v2 engine.
type VaultBroker struct {
	client *vault.Client
	mount  string
}

// NewVaultBroker connects to Vault. Connectivity is not verified here;
// the first read surfaces reachability problems so the caller can degrade.
func NewVaultBroker(cfg VaultConfig) (*VaultBroker, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("vault address is empty")
	}
	vc := vault.DefaultConfig()
	vc.Address = cfg.Addr
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	return &VaultBroker{client: client, mount: "secret"}, nil
}

// GetSecret reads a secret map. A missing secret returns (nil, nil).
func (b *VaultBroker) GetSecret(ctx context.Context, path string) (map[string]string, error) {
	sec, err := b.client.KVv2(b.mount).Get(ctx, path)
	if err != nil {
		if strings.Contains(err.Error(), "secret not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("vault read %s failed: %w", path, err)
	}
	out := make(map[string]string, len(sec.Data))
	for k, v := range sec.Data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

// PutSecret writes a secret map.
func (b *VaultBroker) PutSecret(ctx context.Context, path string, data map[string]string) error {
	payload := make(map[string]any, len(data))
	for k, v := range data {
		payload[k] = v
	}
	if _, err := b.client.KVv2(b.mount).Put(ctx, path, payload); err != nil {
		return fmt.Errorf("vault write %s failed: %w", path, err)
	}
	return nil
}

// DeleteSecret removes a secret.
func (b *VaultBroker) DeleteSecret(ctx context.Context, path string) error {
	if err := b.client.KVv2(b.mount).Delete(ctx, path); err != nil {
		return fmt.Errorf("vault delete %s failed: %w", path, err)
	}
	return nil
}

// ResolveSecrets overlays broker-held secrets onto the config. Broker
// errors leave the environment-derived values in place (degraded mode).
func (c *Config) ResolveSecrets(ctx context.Context, broker SecretBroker) {
	if broker == nil {
		return
	}

	if jwt, err := broker.GetSecret(ctx, "auth/jwt"); err != nil {
		slog.Warn("Secrets broker unreachable for auth/jwt, using environment values", "error", err)
	} else if jwt != nil {
		if key := jwt["secret_key"]; key != "" {
			c.SecretKey = key
		}
	}

	for _, name := range []string{"openai", "anthropic"} {
		sec, err := broker.GetSecret(ctx, "ai/"+name)
		if err != nil {
			slog.Warn("Secrets broker unreachable for provider, using environment values",
				"provider", name, "error", err)
			continue
		}
		if sec == nil || sec["api_key"] == "" {
			continue
		}
		pc := c.LLMProviders[name]
		pc.APIKey = sec["api_key"]
		if url := sec["base_url"]; url != "" {
			pc.BaseURL = url
		}
		if model := sec["model"]; model != "" {
			pc.DefaultModel = model
		}
		if pc.DefaultModel == "" {
			pc.DefaultModel = defaultModelFor(name)
		}
		c.LLMProviders[name] = pc
	}

	if db, err := broker.GetSecret(ctx, "database/postgres"); err != nil {
		slog.Warn("Secrets broker unreachable for database/postgres, using environment values", "error", err)
	} else if db != nil {
		if pw := db["password"]; pw != "" {
			c.Database.Password = pw
		}
	}

	if cache, err := broker.GetSecret(ctx, "cache/redis"); err != nil {
		slog.Warn("Secrets broker unreachable for cache/redis, using environment values", "error", err)
	} else if cache != nil {
		if pw := cache["password"]; pw != "" {
			c.Redis.Password = pw
		}
	}
}

func defaultModelFor(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o"
	case "anthropic":
		return "claude-sonnet-4-20250514"
	}
	return ""
}
