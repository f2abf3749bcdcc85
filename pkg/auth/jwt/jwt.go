// Package jwt authenticates bearer JWTs. Tokens are verified either
// against RSA keys from a JWKS endpoint or with a shared HMAC secret.
// Claims map onto the caller's subject, tenant, rate-limit tier and
// scopes.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/chatkit/pkg/auth"
	"github.com/rhuss/chatkit/pkg/debug"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string

	// Audience is the expected aud claim. If empty, audience is not validated.
	Audience string

	// JWKSURL is the JSON Web Key Set used to verify RS256/384/512 tokens.
	JWKSURL string

	// Secret verifies HS256/384/512 tokens. Exactly one of JWKSURL and
	// Secret must be set.
	Secret string

	// SubjectClaim names the identity subject. Default: "sub".
	SubjectClaim string

	// TenantClaim names the thread tenant. Default: "tenant_id".
	TenantClaim string

	// TierClaim names the rate-limit tier. Default: "tier".
	TierClaim string

	// ScopesClaim names the scopes, a space-separated string or an
	// array. Default: "scope".
	ScopesClaim string

	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient fetches the JWKS. Default: http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config Config
	jwks   *jwksCache
	parser *jwtlib.Parser
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New creates a JWT authenticator.
func New(cfg Config) (*Authenticator, error) {
	cfg.applyDefaults()
	switch {
	case cfg.JWKSURL == "" && cfg.Secret == "":
		return nil, errors.New("jwt: one of jwks_url and secret is required")
	case cfg.JWKSURL != "" && cfg.Secret != "":
		return nil, errors.New("jwt: jwks_url and secret are mutually exclusive")
	}

	methods := []string{"RS256", "RS384", "RS512"}
	if cfg.Secret != "" {
		methods = []string{"HS256", "HS384", "HS512"}
	}
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods(methods),
		jwtlib.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	a := &Authenticator{config: cfg, parser: jwtlib.NewParser(opts...)}
	if cfg.JWKSURL != "" {
		a.jwks = newJWKSCache(cfg.JWKSURL, cfg.CacheTTL, cfg.HTTPClient)
	}
	return a, nil
}

// Authenticate validates the bearer token.
//
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid
//   - Yes: valid token with a subject
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	tokenStr, ok := auth.BearerToken(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if tokenStr == "" {
		return auth.AuthResult{Decision: auth.No, Err: errors.New("empty bearer token")}
	}

	claims := jwtlib.MapClaims{}
	token, err := a.parser.ParseWithClaims(tokenStr, claims, a.keyFunc(ctx))
	if err != nil || !token.Valid {
		debug.Log("auth", "jwt rejected", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	subject := claimString(claims, a.config.SubjectClaim)
	if subject == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("JWT missing %q claim", a.config.SubjectClaim),
		}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject: subject,
			Tenant:  claimString(claims, a.config.TenantClaim),
			Tier:    claimString(claims, a.config.TierClaim),
			Scopes:  extractScopes(claims, a.config.ScopesClaim),
		},
	}
}

func (a *Authenticator) keyFunc(ctx context.Context) jwtlib.Keyfunc {
	return func(token *jwtlib.Token) (any, error) {
		if a.jwks == nil {
			return []byte(a.config.Secret), nil
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		key, err := a.jwks.getKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, err)
		}
		return key, nil
	}
}

// claimString extracts a string claim, or "" when it is missing or not
// a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes reads a space-separated string or a string array.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if parts := strings.Fields(v); len(parts) > 0 {
			return parts
		}
	case []any:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
