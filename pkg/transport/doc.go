// Package transport defines the handler interfaces and middleware chain for
// the chatkit HTTP/SSE transport layer.
//
// The transport layer bridges chat clients and the thread server. It decodes
// incoming requests into the types defined in pkg/api, dispatches them, and
// writes results back either as JSON or as a stream of server-sent events.
//
// # Handler Interfaces
//
//   - MessageHandler answers one user message on a thread and streams the
//     resulting events to an EventWriter.
//   - ThreadStore persists threads and their items and serves paginated
//     listings. Both the memory and postgres stores implement it.
//   - Responder produces the assistant's events for a thread as a lazy
//     iter.Seq2 sequence.
//
// # Middleware
//
// The middleware chain wraps MessageHandler with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), and structured
// logging via log/slog.
package transport
