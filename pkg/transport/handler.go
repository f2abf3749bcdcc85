package transport

import (
	"context"
	"iter"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/storage"
)

// MessageHandler answers a single user message. The implementation
// writes every event it produces to the EventWriter, in order.
type MessageHandler interface {
	HandleMessage(ctx context.Context, req *api.MessageRequest, w EventWriter) error
}

// MessageHandlerFunc is an adapter that allows using an ordinary function
// as a MessageHandler.
type MessageHandlerFunc func(ctx context.Context, req *api.MessageRequest, w EventWriter) error

// HandleMessage calls f(ctx, req, w).
func (f MessageHandlerFunc) HandleMessage(ctx context.Context, req *api.MessageRequest, w EventWriter) error {
	return f(ctx, req, w)
}

// Responder produces the assistant's reply to item, the newest user message
// in thread. The sequence is lazy: events are produced as the consumer
// pulls them and production stops when the consumer stops. A non-nil error
// ends the sequence.
type Responder interface {
	Respond(ctx context.Context, thread *api.Thread, item *api.ThreadItem) iter.Seq2[api.ThreadStreamEvent, error]
}

// ThreadStore persists threads and their items.
type ThreadStore interface {
	// CreateThread assigns an ID and creation time to a new thread.
	// Returns an invalid_request *api.APIError for malformed metadata.
	CreateThread(ctx context.Context, params api.ThreadCreateParams) (*api.Thread, error)

	// GetThread returns storage.ErrNotFound for unknown threads and for
	// threads owned by another tenant.
	GetThread(ctx context.Context, id string) (*api.Thread, error)

	// ListThreads returns a page of threads visible to the caller.
	ListThreads(ctx context.Context, opts storage.ListOptions) (*api.Page[api.Thread], error)

	// AddItem appends an item to a thread. It fills in ThreadID, and
	// CreatedAt and ID when they are zero. The thread is left unchanged
	// on failure.
	AddItem(ctx context.Context, threadID string, item api.ThreadItem) (*api.ThreadItem, error)

	// LoadThreadItems returns a page of a thread's items in the requested
	// order, starting strictly after the cursor in opts.
	LoadThreadItems(ctx context.Context, threadID string, opts storage.ListOptions) (*api.Page[api.ThreadItem], error)

	// HealthCheck verifies the store is functional.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}

// EventWriter delivers stream events to the client. The transport creates
// one per request.
//
// After an event of type "error" has been written the writer is closed
// and further calls to WriteEvent return an error.
type EventWriter interface {
	// WriteEvent sends a single event.
	WriteEvent(ctx context.Context, event api.ThreadStreamEvent) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}
