// Package config loads application configuration from the environment,
// with optional secret resolution through a secrets broker. Broker
// failures degrade to environment values — startup never blocks on Vault.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment identifies the deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config is the umbrella configuration object returned by Load and used
// throughout the application.
type Config struct {
	Environment Environment

	// Auth
	SecretKey              string
	AccessTokenExpiry      time.Duration
	RefreshTokenExpiry     time.Duration

	// Rate limiting defaults (per-endpoint overrides in pkg/ratelimit)
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// HTTP
	HTTPPort       string
	AllowedOrigins []string
	MaxRequestBody int64

	// Stores
	Database DatabaseConfig
	Redis    RedisConfig

	// Secrets broker
	Vault VaultConfig

	// LLM providers: provider name → credentials/model config
	LLMProviders    map[string]LLMProviderConfig
	DefaultProvider string

	// Workflow behavior
	Workflow WorkflowConfig

	// Export artifacts
	ExportDir string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns a pgx-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds key/value store connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// VaultConfig holds secrets broker settings. When Addr is empty the
// broker is not used at all.
type VaultConfig struct {
	Addr  string
	Token string
	// UseVault forces broker use in production; a missing broker is then
	// logged as degraded mode rather than silently ignored.
	UseVault bool
}

// LLMProviderConfig holds one provider's credentials and defaults.
type LLMProviderConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// WorkflowConfig bounds stage and LLM execution.
type WorkflowConfig struct {
	// AgentTimeout is the end-to-end budget for one stage agent invocation.
	AgentTimeout time.Duration
	// LLMTimeout is the per-attempt budget for one provider call.
	LLMTimeout time.Duration
	// StagePause is the best-effort system-stability delay between stages.
	StagePause time.Duration
	// DefaultTechnologyStack seeds stage 2 when the request omits one.
	DefaultTechnologyStack string
	// ContextLimit caps retrieved memory items per stage.
	ContextLimit int
}

// Load builds the configuration from the environment. If the secrets
// broker is configured and reachable, broker values take precedence for
// the conventional secret paths (auth/jwt, ai/{provider}, database/*, cache/*).
func Load() (*Config, error) {
	cfg := &Config{
		Environment:        Environment(getEnv("ENVIRONMENT", string(EnvDevelopment))),
		SecretKey:          os.Getenv("SECRET_KEY"),
		AccessTokenExpiry:  time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		RefreshTokenExpiry: time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRE_DAYS", 7)) * 24 * time.Hour,
		RateLimitRequests:  getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:    time.Duration(getEnvInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		AllowedOrigins:     splitNonEmpty(getEnv("ALLOWED_ORIGINS", "*")),
		MaxRequestBody:     int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 10<<20)),
		ExportDir:          getEnv("EXPORT_DIR", "/tmp/specforge-exports"),
	}

	switch cfg.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return nil, fmt.Errorf("invalid ENVIRONMENT %q: must be development, staging, or production", cfg.Environment)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "specforge"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnv("DB_NAME", "specforge"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}

	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	cfg.Vault = VaultConfig{
		Addr:     os.Getenv("VAULT_ADDR"),
		Token:    os.Getenv("VAULT_TOKEN"),
		UseVault: getEnvBool("USE_VAULT", false),
	}

	cfg.Workflow = WorkflowConfig{
		AgentTimeout:           time.Duration(getEnvInt("AGENT_TIMEOUT_SECONDS", 120)) * time.Second,
		LLMTimeout:             time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,
		StagePause:             time.Duration(getEnvInt("STAGE_PAUSE_MS", 1000)) * time.Millisecond,
		DefaultTechnologyStack: getEnv("DEFAULT_TECHNOLOGY_STACK", "Python 3.12, FastAPI, PostgreSQL, Redis"),
		ContextLimit:           getEnvInt("CONTEXT_LIMIT", 5),
	}

	cfg.LLMProviders = loadProvidersFromEnv()
	cfg.DefaultProvider = getEnv("DEFAULT_LLM_PROVIDER", "openai")

	if cfg.SecretKey == "" && cfg.Environment == EnvProduction && !cfg.Vault.UseVault {
		return nil, fmt.Errorf("SECRET_KEY is required in production")
	}

	return cfg, nil
}

// loadProvidersFromEnv registers providers whose credentials are present.
// Providers with missing API keys are simply not registered.
func loadProvidersFromEnv() map[string]LLMProviderConfig {
	providers := make(map[string]LLMProviderConfig)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		providers["openai"] = LLMProviderConfig{
			APIKey:       key,
			BaseURL:      os.Getenv("OPENAI_BASE_URL"),
			DefaultModel: getEnv("OPENAI_MODEL", "gpt-4o"),
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		providers["anthropic"] = LLMProviderConfig{
			APIKey:       key,
			BaseURL:      os.Getenv("ANTHROPIC_BASE_URL"),
			DefaultModel: getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		}
	}
	return providers
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
