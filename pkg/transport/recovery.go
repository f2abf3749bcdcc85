package transport

import (
	"context"
	"fmt"

	"github.com/rhuss/chatkit/pkg/api"
)

// Recovery returns middleware that converts a panic in the handler into a
// server error. The server keeps accepting requests afterwards.
func Recovery() Middleware {
	return func(next MessageHandler) MessageHandler {
		return MessageHandlerFunc(func(ctx context.Context, req *api.MessageRequest, w EventWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.HandleMessage(ctx, req, w)
		})
	}
}
