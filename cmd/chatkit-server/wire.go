package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/chatkit/pkg/agent"
	"github.com/rhuss/chatkit/pkg/assistant"
	"github.com/rhuss/chatkit/pkg/auth"
	"github.com/rhuss/chatkit/pkg/auth/apikey"
	"github.com/rhuss/chatkit/pkg/auth/jwt"
	"github.com/rhuss/chatkit/pkg/auth/noop"
	"github.com/rhuss/chatkit/pkg/config"
	"github.com/rhuss/chatkit/pkg/observability"
	"github.com/rhuss/chatkit/pkg/provider/openai"
	"github.com/rhuss/chatkit/pkg/storage/cache"
	"github.com/rhuss/chatkit/pkg/storage/memory"
	"github.com/rhuss/chatkit/pkg/storage/postgres"
	"github.com/rhuss/chatkit/pkg/transport"
)

// buildStore creates the configured backend, instruments it and puts
// the thread cache in front of it.
func buildStore(ctx context.Context, cfg *config.Config) (transport.ThreadStore, error) {
	var backend transport.ThreadStore
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		backend = pg
	default:
		backend = memory.New()
	}

	var store transport.ThreadStore = observability.InstrumentStore(backend, cfg.Storage.Type)
	if cfg.Storage.CacheSize > 0 {
		cached, err := cache.New(store, cfg.Storage.CacheSize)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("creating thread cache: %w", err)
		}
		store = cached
	}
	return store, nil
}

func buildProvider(cfg *config.Config) (*openai.Provider, error) {
	p, err := openai.New(openai.Config{
		APIKey:         cfg.Provider.APIKey,
		BaseURL:        cfg.Provider.BaseURL,
		Organization:   cfg.Provider.Organization,
		ConnectTimeout: cfg.Provider.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	return p, nil
}

// buildAgent applies the configured overrides to the built-in assistant.
func buildAgent(cfg config.AssistantConfig) *agent.Agent {
	a := assistant.DefaultAgent()
	if cfg.Name != "" {
		a.Name = cfg.Name
	}
	if cfg.Model != "" {
		a.Model = cfg.Model
	}
	if cfg.Instructions != "" {
		a.Instructions = cfg.Instructions
	}
	if cfg.Temperature != nil {
		t := *cfg.Temperature
		a.Temperature = &t
	}
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		a.MaxTokens = &n
	}
	return a
}

// buildAuth returns the authentication and rate limiting middleware.
func buildAuth(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	chain := &auth.AuthChain{DefaultDecision: auth.No}

	switch cfg.Auth.Type {
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key:     k.Key,
				Subject: k.Subject,
				Tenant:  k.Tenant,
				Tier:    k.Tier,
			})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(entries)}
	case "jwt":
		j := cfg.Auth.JWT
		authn, err := jwt.New(jwt.Config{
			Issuer:       j.Issuer,
			Audience:     j.Audience,
			JWKSURL:      j.JWKSURL,
			Secret:       j.Secret,
			SubjectClaim: j.SubjectClaim,
			TenantClaim:  j.TenantClaim,
			TierClaim:    j.TierClaim,
			ScopesClaim:  j.ScopesClaim,
			Leeway:       j.Leeway,
			CacheTTL:     j.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating jwt authenticator: %w", err)
		}
		chain.Authenticators = []auth.Authenticator{authn}
	default:
		chain.Authenticators = []auth.Authenticator{&noop.Authenticator{}}
	}

	var limiter auth.RateLimiter
	if rl := cfg.Auth.RateLimit; rl.Enabled() {
		limiter = auth.NewInProcessLimiter(rl.Tiers, rl.DefaultRPM)
		slog.Info("rate limiting enabled", "default_rpm", rl.DefaultRPM, "tiers", len(rl.Tiers))
	}

	bypass := append([]string{"/healthz", "/readyz"}, cfg.Observability.Metrics.Path)
	return auth.Middleware(chain, limiter, bypass), nil
}
