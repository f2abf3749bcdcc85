package transport

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/rhuss/chatkit/pkg/api"
)

// RequestID returns middleware that makes sure every message carries a
// request ID. An ID already in the context (set by the HTTP adapter from
// the X-Request-ID header) is kept.
func RequestID() Middleware {
	return func(next MessageHandler) MessageHandler {
		return MessageHandlerFunc(func(ctx context.Context, req *api.MessageRequest, w EventWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, NewRequestID())
			}
			return next.HandleMessage(ctx, req, w)
		})
	}
}

// NewRequestID returns a fresh request ID as 32 hex digits.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
