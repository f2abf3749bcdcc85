// Package provider defines the interface for streaming model backends.
// Adapters (pkg/provider/openai) translate the backend protocol into
// ProviderEvent values so the agent runner never sees wire details.
package provider
