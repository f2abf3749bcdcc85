package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/debug"
	"github.com/rhuss/chatkit/pkg/observability"
	"github.com/rhuss/chatkit/pkg/storage"
	"github.com/rhuss/chatkit/pkg/transport"
)

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware creates HTTP middleware from an AuthChain and optional
// RateLimiter. It checks the bypass list, runs authentication, enforces
// rate limits and injects the identity and tenant into the context.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				writeUnauthenticated(w)
				return
			}

			id := result.Identity
			if id.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}
			debug.Log("auth", "authenticated", "subject", id.Subject, "tenant", id.TenantID(), "path", r.URL.Path)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), id); err != nil {
					slog.Warn("rate limit exceeded", "subject", id.Subject, "tier", id.ServiceTier())
					observability.RateLimitRejectedTotal.WithLabelValues(id.ServiceTier()).Inc()
					var limitErr *RateLimitError
					if errors.As(err, &limitErr) && limitErr.RetryAfter > 0 {
						secs := int(limitErr.RetryAfter.Seconds() + 0.999)
						w.Header().Set("Retry-After", strconv.Itoa(secs))
					}
					transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			ctx := SetIdentity(r.Context(), id)
			ctx = storage.SetTenant(ctx, id.TenantID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	apiErr := api.NewInvalidRequestError("", "authentication required")
	apiErr.Code = "unauthenticated"
	w.Header().Set("WWW-Authenticate", `Bearer realm="chatkit"`)
	transport.WriteAPIError(w, apiErr)
}
