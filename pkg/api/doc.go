// Package api defines the core protocol types for the chatkit thread server.
//
// This package provides the data types shared by the stores, the chat
// framework, the agent runtime and the HTTP transport: threads, thread items,
// pages, streaming events, error types, metadata validation and ID
// generation. It performs no I/O.
//
// Core types:
//   - [Thread]: A conversation with immutable metadata
//   - [ThreadItem]: Polymorphic unit of a thread (user_message, assistant_message, client_tool_call, hidden_context)
//   - [Page]: One page of a cursor-paginated listing
//   - [ThreadStreamEvent]: Server-sent event emitted while a thread is being answered
//   - [APIError]: Structured error with type, code, param, and message
package api
