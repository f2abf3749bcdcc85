package storage

import "context"

// tenantKey is a private type for the tenant context key.
type tenantKey struct{}

// SetTenant injects a tenant identifier into the context.
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// GetTenant extracts the tenant identifier from the context.
// Returns an empty string if no tenant is set (single-tenant mode).
func GetTenant(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey{}).(string); ok {
		return v
	}
	return ""
}

// TenantMatches reports whether a record owned by owner is visible to the
// tenant in ctx. Without a tenant in ctx every record is visible.
func TenantMatches(ctx context.Context, owner string) bool {
	tenantID := GetTenant(ctx)
	return tenantID == "" || tenantID == owner
}
