package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate clears the environment variables the loader reads and moves
// into an empty directory so no config file is discovered.
func isolate(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvConfigPath, "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_ORG_ID",
		"CHATKIT_ADDR", "CHATKIT_MODEL", "CHATKIT_STORAGE", "CHATKIT_CACHE_SIZE",
		"CHATKIT_POSTGRES_DSN", "CHATKIT_AUTH_TYPE", "CHATKIT_API_KEYS",
		"CHATKIT_LOG_LEVEL", "CHATKIT_LOG_FORMAT", "CHATKIT_DEBUG",
		"CHATKIT_METRICS_ENABLED", "CHATKIT_MAX_RECENT_ITEMS",
	} {
		t.Setenv(name, "")
	}
	t.Chdir(t.TempDir())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("server.shutdown_timeout = %v, want 30s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.DefaultPageSize != 20 || cfg.Server.MaxPageSize != 100 {
		t.Errorf("page sizes = %d/%d, want 20/100", cfg.Server.DefaultPageSize, cfg.Server.MaxPageSize)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage.type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Storage.CacheSize != 1024 {
		t.Errorf("storage.cache_size = %d, want 1024", cfg.Storage.CacheSize)
	}
	if cfg.Auth.Type != "none" {
		t.Errorf("auth.type = %q, want none", cfg.Auth.Type)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("metrics = %+v", cfg.Observability.Metrics)
	}
	if cfg.Assistant.Model != "" || cfg.Assistant.MaxRecentItems != 0 {
		t.Errorf("assistant overrides set by default: %+v", cfg.Assistant)
	}
}

func TestLoadFromYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "chatkit.yaml", `
server:
  addr: ":9090"
  shutdown_timeout: 5s
  max_page_size: 50
assistant:
  name: Helper
  model: gpt-4o
  max_recent_items: 10
  temperature: 0.2
provider:
  api_key: sk-yaml
  base_url: http://localhost:8000/v1
storage:
  type: postgres
  cache_size: 0
  postgres:
    dsn: postgres://localhost/chatkit
    migrate_on_start: true
auth:
  type: apikey
  api_keys:
    - key: sk-alice
      subject: alice
      tenant: org-1
      tier: premium
  rate_limit:
    default_rpm: 60
    tiers:
      premium: 600
observability:
  metrics:
    enabled: false
logging:
  level: debug
  format: json
  debug: store,agent
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":9090" || cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.DefaultPageSize != 20 || cfg.Server.MaxPageSize != 50 {
		t.Errorf("page sizes = %d/%d, want defaults kept with max 50", cfg.Server.DefaultPageSize, cfg.Server.MaxPageSize)
	}
	if cfg.Assistant.Name != "Helper" || cfg.Assistant.Model != "gpt-4o" || cfg.Assistant.MaxRecentItems != 10 {
		t.Errorf("assistant = %+v", cfg.Assistant)
	}
	if cfg.Assistant.Temperature == nil || *cfg.Assistant.Temperature != 0.2 {
		t.Errorf("assistant.temperature = %v, want 0.2", cfg.Assistant.Temperature)
	}
	if cfg.Provider.APIKey != "sk-yaml" || cfg.Provider.BaseURL != "http://localhost:8000/v1" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Storage.Type != "postgres" || cfg.Storage.CacheSize != 0 || !cfg.Storage.Postgres.MigrateOnStart {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Storage.Postgres.MaxConns != 25 {
		t.Errorf("storage.postgres.max_conns = %d, want default 25", cfg.Storage.Postgres.MaxConns)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0].Tenant != "org-1" || cfg.Auth.APIKeys[0].Tier != "premium" {
		t.Errorf("auth.api_keys = %+v", cfg.Auth.APIKeys)
	}
	if cfg.Auth.RateLimit.DefaultRPM != 60 || cfg.Auth.RateLimit.Tiers["premium"] != 600 || !cfg.Auth.RateLimit.Enabled() {
		t.Errorf("auth.rate_limit = %+v", cfg.Auth.RateLimit)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("metrics should be disabled")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.Debug != "store,agent" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestEnvOverride(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "chatkit.yaml", `
server:
  addr: ":9090"
provider:
  api_key: sk-yaml
assistant:
  model: from-yaml
`)

	t.Setenv("CHATKIT_ADDR", ":7070")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_BASE_URL", "http://proxy:4000/v1")
	t.Setenv("CHATKIT_MODEL", "from-env")
	t.Setenv("CHATKIT_MAX_RECENT_ITEMS", "12")
	t.Setenv("CHATKIT_CACHE_SIZE", "64")
	t.Setenv("CHATKIT_METRICS_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("server.addr = %q, want :7070", cfg.Server.Addr)
	}
	if cfg.Provider.APIKey != "sk-env" || cfg.Provider.BaseURL != "http://proxy:4000/v1" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Assistant.Model != "from-env" || cfg.Assistant.MaxRecentItems != 12 {
		t.Errorf("assistant = %+v", cfg.Assistant)
	}
	if cfg.Storage.CacheSize != 64 {
		t.Errorf("storage.cache_size = %d, want 64", cfg.Storage.CacheSize)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("metrics should be disabled by env")
	}
}

func TestEnvAPIKeys(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("CHATKIT_AUTH_TYPE", "apikey")
	t.Setenv("CHATKIT_API_KEYS", `[{"key":"sk-1","subject":"alice","tenant":"org-1","tier":"standard"}]`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Type != "apikey" || len(cfg.Auth.APIKeys) != 1 {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
	if k := cfg.Auth.APIKeys[0]; k.Subject != "alice" || k.Tenant != "org-1" || k.Tier != "standard" {
		t.Errorf("api key = %+v", k)
	}
}

func TestEnvAPIKeysMalformed(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("CHATKIT_API_KEYS", `not json`)

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "CHATKIT_API_KEYS") {
		t.Errorf("err = %v, want a CHATKIT_API_KEYS parse error", err)
	}
}

func TestFileReferences(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, dir, "openai", "  sk-from-file\n")
	writeFile(t, dir, "dsn", "postgres://db/chatkit\n")
	writeFile(t, dir, "key", "sk-client\n")
	path := writeFile(t, dir, "chatkit.yaml", `
provider:
  api_key_file: `+filepath.Join(dir, "openai")+`
storage:
  type: postgres
  postgres:
    dsn_file: `+filepath.Join(dir, "dsn")+`
auth:
  type: apikey
  api_keys:
    - key_file: `+filepath.Join(dir, "key")+`
      subject: client
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-from-file" {
		t.Errorf("provider.api_key = %q", cfg.Provider.APIKey)
	}
	if cfg.Storage.Postgres.DSN != "postgres://db/chatkit" {
		t.Errorf("storage.postgres.dsn = %q", cfg.Storage.Postgres.DSN)
	}
	if cfg.Auth.APIKeys[0].Key != "sk-client" {
		t.Errorf("auth.api_keys[0].key = %q", cfg.Auth.APIKeys[0].Key)
	}
}

func TestFileReferenceDoesNotOverrideValue(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, dir, "openai", "sk-from-file")
	path := writeFile(t, dir, "chatkit.yaml", `
provider:
  api_key_file: `+filepath.Join(dir, "openai")+`
`)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-env" {
		t.Errorf("provider.api_key = %q, want sk-env", cfg.Provider.APIKey)
	}
}

func TestFileReferenceMissing(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "chatkit.yaml", `
provider:
  api_key_file: /nonexistent/openai
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "provider.api_key_file") {
		t.Errorf("err = %v, want a provider.api_key_file error", err)
	}
}

func TestFileDiscovery(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	// ./config.yaml in the working directory.
	wd, _ := os.Getwd()
	writeFile(t, wd, "config.yaml", "server:\n  addr: \":1111\"\n")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":1111" {
		t.Errorf("server.addr = %q, want :1111 from ./config.yaml", cfg.Server.Addr)
	}

	// CHATKIT_CONFIG wins over ./config.yaml.
	envFile := writeFile(t, t.TempDir(), "env.yaml", "server:\n  addr: \":2222\"\n")
	t.Setenv(EnvConfigPath, envFile)
	if cfg, err = Load(""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":2222" {
		t.Errorf("server.addr = %q, want :2222 from CHATKIT_CONFIG", cfg.Server.Addr)
	}

	// An explicit path wins over both.
	explicit := writeFile(t, t.TempDir(), "explicit.yaml", "server:\n  addr: \":3333\"\n")
	if cfg, err = Load(explicit); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":3333" {
		t.Errorf("server.addr = %q, want :3333 from the explicit path", cfg.Server.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	isolate(t)
	if _, err := Load("/nonexistent/chatkit.yaml"); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestValidation(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Provider.APIKey = "sk-test"
		return cfg
	}
	negTemp := -1.0

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"missing api key", func(c *Config) { c.Provider.APIKey = "" }, "OPENAI_API_KEY"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"page sizes inverted", func(c *Config) { c.Server.MaxPageSize = 5 }, "page sizes"},
		{"negative history", func(c *Config) { c.Assistant.MaxRecentItems = -1 }, "assistant.max_recent_items"},
		{"temperature out of range", func(c *Config) { c.Assistant.Temperature = &negTemp }, "assistant.temperature"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "redis" }, "storage.type"},
		{"postgres without dsn", func(c *Config) { c.Storage.Type = "postgres" }, "storage.postgres.dsn"},
		{"postgres with dsn", func(c *Config) {
			c.Storage.Type = "postgres"
			c.Storage.Postgres.DSN = "postgres://db"
		}, ""},
		{"negative cache", func(c *Config) { c.Storage.CacheSize = -1 }, "storage.cache_size"},
		{"unknown auth", func(c *Config) { c.Auth.Type = "oauth" }, "auth.type"},
		{"apikey without keys", func(c *Config) { c.Auth.Type = "apikey" }, "auth.api_keys"},
		{"apikey entry without key", func(c *Config) {
			c.Auth.Type = "apikey"
			c.Auth.APIKeys = []APIKeyConfig{{Subject: "alice"}}
		}, "auth.api_keys[0]"},
		{"jwt without source", func(c *Config) { c.Auth.Type = "jwt" }, "auth.jwt"},
		{"jwt with both sources", func(c *Config) {
			c.Auth.Type = "jwt"
			c.Auth.JWT.JWKSURL = "https://idp/jwks"
			c.Auth.JWT.Secret = "s"
		}, "auth.jwt"},
		{"jwt with secret", func(c *Config) {
			c.Auth.Type = "jwt"
			c.Auth.JWT.Secret = "s"
		}, ""},
		{"relative metrics path", func(c *Config) { c.Observability.Metrics.Path = "metrics" }, "observability.metrics.path"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidationJoinsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Type = "redis"
	cfg.Auth.Type = "oauth"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"provider.api_key", "storage.type", "auth.type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadStorageSkipsProviderChecks(t *testing.T) {
	isolate(t)
	path := writeFile(t, t.TempDir(), "chatkit.yaml", `
storage:
  type: postgres
  postgres:
    dsn: postgres://localhost/chatkit
logging:
  format: xml
`)

	cfg, err := LoadStorage(path)
	if err != nil {
		t.Fatalf("LoadStorage: %v", err)
	}
	if cfg.Storage.Postgres.DSN != "postgres://localhost/chatkit" {
		t.Errorf("DSN = %q", cfg.Storage.Postgres.DSN)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "provider.api_key") {
		t.Errorf("Load error = %v, want provider.api_key failure", err)
	}
}

func TestLoadStorageValidatesStorage(t *testing.T) {
	isolate(t)
	path := writeFile(t, t.TempDir(), "chatkit.yaml", `
storage:
  type: postgres
`)

	_, err := LoadStorage(path)
	if err == nil || !strings.Contains(err.Error(), "storage.postgres.dsn") {
		t.Errorf("LoadStorage error = %v, want missing dsn", err)
	}
}
