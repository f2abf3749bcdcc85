package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/chatkit/pkg/api"
)

// Logging returns middleware that emits one structured log entry per
// message: request ID, thread ID, whether the thread is new, duration and
// the error, if any. HTTP status codes are logged by the adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next MessageHandler) MessageHandler {
		return MessageHandlerFunc(func(ctx context.Context, req *api.MessageRequest, w EventWriter) error {
			start := time.Now()
			newThread := req.ThreadID == ""

			err := next.HandleMessage(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("thread_id", req.ThreadID),
				slog.Bool("new_thread", newThread),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "message failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "message completed", attrs...)
			}

			return err
		})
	}
}
