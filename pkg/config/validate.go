package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider.api_key is required (set OPENAI_API_KEY)"))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}
	if c.Server.DefaultPageSize <= 0 || c.Server.MaxPageSize < c.Server.DefaultPageSize {
		errs = append(errs, fmt.Errorf("server page sizes must satisfy 0 < default_page_size <= max_page_size, got %d and %d",
			c.Server.DefaultPageSize, c.Server.MaxPageSize))
	}

	if c.Assistant.MaxRecentItems < 0 {
		errs = append(errs, fmt.Errorf("assistant.max_recent_items must be >= 0, got %d", c.Assistant.MaxRecentItems))
	}
	if t := c.Assistant.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("assistant.temperature must be within [0, 2], got %g", *t))
	}

	errs = append(errs, c.storageErrors()...)

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, errors.New("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
		}
	case "jwt":
		jwt := c.Auth.JWT
		if (jwt.JWKSURL == "") == (jwt.Secret == "") {
			errs = append(errs, errors.New("exactly one of auth.jwt.jwks_url and auth.jwt.secret is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ValidateStorage checks only the storage section. Commands that touch
// nothing but the store, such as migrate, use it in place of Validate.
func (c *Config) ValidateStorage() error {
	return errors.Join(c.storageErrors()...)
}

func (c *Config) storageErrors() []error {
	var errs []error
	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}
	if c.Storage.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("storage.cache_size must be >= 0, got %d", c.Storage.CacheSize))
	}
	return errs
}
