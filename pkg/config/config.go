// Package config provides unified configuration for the chatkit server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CHATKIT_ and OPENAI_ variables)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the chatkit server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Assistant     AssistantConfig     `yaml:"assistant"`
	Provider      ProviderConfig      `yaml:"provider"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr" env:"CHATKIT_ADDR"`                           // default: ":8080"
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`                               // default: 10s
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"CHATKIT_SHUTDOWN_TIMEOUT"`   // default: 30s
	MaxBodySize       int64         `yaml:"max_body_size" env:"CHATKIT_MAX_BODY_SIZE"`         // default: 10 MiB
	DefaultPageSize   int           `yaml:"default_page_size" env:"CHATKIT_DEFAULT_PAGE_SIZE"` // default: 20
	MaxPageSize       int           `yaml:"max_page_size" env:"CHATKIT_MAX_PAGE_SIZE"`         // default: 100
}

// AssistantConfig overrides the built-in assistant. Empty or zero fields
// keep the built-in values.
type AssistantConfig struct {
	Name           string   `yaml:"name" env:"CHATKIT_ASSISTANT_NAME"`
	Model          string   `yaml:"model" env:"CHATKIT_MODEL"`
	Instructions   string   `yaml:"instructions" env:"CHATKIT_INSTRUCTIONS"`
	MaxRecentItems int      `yaml:"max_recent_items" env:"CHATKIT_MAX_RECENT_ITEMS"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens" env:"CHATKIT_MAX_TOKENS"`
}

// ProviderConfig holds the Chat Completions backend settings.
type ProviderConfig struct {
	APIKey         string        `yaml:"api_key" env:"OPENAI_API_KEY"` // required
	APIKeyFile     string        `yaml:"api_key_file"`                 // _file variant for api_key
	BaseURL        string        `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Organization   string        `yaml:"organization" env:"OPENAI_ORG_ID"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // default: 10s
}

// StorageConfig holds thread store settings.
type StorageConfig struct {
	Type      string         `yaml:"type" env:"CHATKIT_STORAGE"`          // "memory" or "postgres", default: "memory"
	CacheSize int            `yaml:"cache_size" env:"CHATKIT_CACHE_SIZE"` // thread cache entries, 0 disables, default: 1024
	Postgres  PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn" env:"CHATKIT_POSTGRES_DSN"`
	DSNFile        string `yaml:"dsn_file"`                                         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns" env:"CHATKIT_POSTGRES_MAX_CONNS"`       // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"CHATKIT_POSTGRES_MIGRATE"` // default: false
}

// AuthConfig holds authentication and rate limiting settings.
type AuthConfig struct {
	Type      string          `yaml:"type" env:"CHATKIT_AUTH_TYPE"` // "none", "apikey" or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"`                     // entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`                          // settings for type=jwt
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key" json:"key"`
	KeyFile string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject string `yaml:"subject" json:"subject"`
	Tenant  string `yaml:"tenant" json:"tenant"`
	Tier    string `yaml:"tier" json:"tier"`
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Issuer       string        `yaml:"issuer" env:"CHATKIT_JWT_ISSUER"`
	Audience     string        `yaml:"audience" env:"CHATKIT_JWT_AUDIENCE"`
	JWKSURL      string        `yaml:"jwks_url" env:"CHATKIT_JWT_JWKS_URL"`
	Secret       string        `yaml:"secret" env:"CHATKIT_JWT_SECRET"`
	SecretFile   string        `yaml:"secret_file"` // _file variant for secret
	SubjectClaim string        `yaml:"subject_claim"`
	TenantClaim  string        `yaml:"tenant_claim"`
	TierClaim    string        `yaml:"tier_claim"`
	ScopesClaim  string        `yaml:"scopes_claim"`
	Leeway       time.Duration `yaml:"leeway"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig holds per-tier requests-per-minute limits. Zero means
// unlimited.
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm" env:"CHATKIT_RATE_LIMIT_RPM"`
	Tiers      map[string]int `yaml:"tiers"`
}

// Enabled reports whether any limit is configured.
func (c RateLimitConfig) Enabled() bool {
	if c.DefaultRPM > 0 {
		return true
	}
	for _, rpm := range c.Tiers {
		if rpm > 0 {
			return true
		}
	}
	return false
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"CHATKIT_METRICS_ENABLED"` // default: true
	Path    string `yaml:"path" env:"CHATKIT_METRICS_PATH"`       // default: "/metrics"
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CHATKIT_LOG_LEVEL"`   // debug, info, warn, error, trace; default: "info"
	Format string `yaml:"format" env:"CHATKIT_LOG_FORMAT"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug" env:"CHATKIT_DEBUG"`       // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			MaxBodySize:       10 << 20,
			DefaultPageSize:   20,
			MaxPageSize:       100,
		},
		Provider: ProviderConfig{
			ConnectTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Type:      "memory",
			CacheSize: 1024,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
