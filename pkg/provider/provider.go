package provider

import "context"

// Provider abstracts a streaming model backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Stream starts a streaming completion. The returned channel receives
	// ProviderEvent values and is closed by the provider when the stream
	// ends, fails, or ctx is cancelled. Errors that happen before any
	// output is produced are returned directly.
	Stream(ctx context.Context, req *ProviderRequest) (<-chan ProviderEvent, error)

	// Close releases provider resources.
	Close() error
}
