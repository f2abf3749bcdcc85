// Package storage provides utilities shared across thread store
// implementations: sentinel errors, tenant context helpers, list options
// and the opaque pagination cursor.
//
// Store adapters (memory, postgres) implement the transport.ThreadStore
// interface defined in pkg/transport/handler.go. This package contains
// only shared types and helpers, not the interface itself.
package storage
