package chatkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/debug"
	"github.com/rhuss/chatkit/pkg/observability"
	"github.com/rhuss/chatkit/pkg/transport"
)

// Server answers user messages. It implements transport.MessageHandler.
type Server struct {
	store      transport.ThreadStore
	responder  transport.Responder
	inflight   *transport.InFlightRegistry
	validation api.ValidationConfig
}

// Ensure Server implements transport.MessageHandler at compile time.
var _ transport.MessageHandler = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithInFlightRegistry registers each streaming reply so it can be
// cancelled by thread ID.
func WithInFlightRegistry(r *transport.InFlightRegistry) Option {
	return func(s *Server) { s.inflight = r }
}

// WithValidation overrides the input size limits.
func WithValidation(cfg api.ValidationConfig) Option {
	return func(s *Server) { s.validation = cfg }
}

// New creates a Server. The store and responder must not be nil.
func New(store transport.ThreadStore, responder transport.Responder, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("chatkit: store must not be nil")
	}
	if responder == nil {
		return nil, errors.New("chatkit: responder must not be nil")
	}
	s := &Server{
		store:      store,
		responder:  responder,
		validation: api.DefaultValidationConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store returns the thread store the server persists to.
func (s *Server) Store() transport.ThreadStore { return s.store }

// HandleMessage answers req:
//
//  1. resolve the thread, creating it (and emitting thread.created) when
//     req has no thread ID;
//  2. persist the user message and emit it as thread.item.done;
//  3. relay the responder's events, persisting every item carried by a
//     thread.item.done event before it is sent.
//
// Errors from the store and the responder are returned unchanged. Writing
// the error to the client is left to the transport.
func (s *Server) HandleMessage(ctx context.Context, req *api.MessageRequest, w transport.EventWriter) error {
	err := s.handle(ctx, req, w)
	observability.MessagesTotal.WithLabelValues(outcome(ctx, err)).Inc()
	return err
}

func (s *Server) handle(ctx context.Context, req *api.MessageRequest, w transport.EventWriter) error {
	if apiErr := api.ValidateMessageRequest(req, s.validation); apiErr != nil {
		return apiErr
	}

	thread, created, err := s.resolveThread(ctx, req)
	if err != nil {
		return err
	}

	if s.inflight != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		release := s.inflight.Register(thread.ID, cancel)
		defer release()
	}

	if created {
		if err := s.emit(ctx, w, api.ThreadCreatedEvent(thread)); err != nil {
			return err
		}
	}

	userItem, err := s.store.AddItem(ctx, thread.ID, req.Input.Item())
	if err != nil {
		return fmt.Errorf("saving user message: %w", err)
	}
	if err := s.emit(ctx, w, api.ItemDoneEvent(userItem)); err != nil {
		return err
	}

	for ev, err := range s.responder.Respond(ctx, thread, userItem) {
		if err != nil {
			return err
		}
		if ev.Type == api.EventThreadItemDone && ev.Item != nil {
			saved, err := s.store.AddItem(ctx, thread.ID, *ev.Item)
			if err != nil {
				return fmt.Errorf("saving %s item: %w", ev.Item.Type, err)
			}
			ev.Item = saved
		}
		if err := s.emit(ctx, w, ev); err != nil {
			return err
		}
	}
	return nil
}

// resolveThread loads the thread named by req or creates a new one.
func (s *Server) resolveThread(ctx context.Context, req *api.MessageRequest) (*api.Thread, bool, error) {
	if req.ThreadID != "" {
		thread, err := s.store.GetThread(ctx, req.ThreadID)
		if err != nil {
			return nil, false, err
		}
		return thread, false, nil
	}

	thread, err := s.store.CreateThread(ctx, req.Thread)
	if err != nil {
		return nil, false, err
	}
	req.ThreadID = thread.ID
	debug.Log("store", "thread created on first message", "thread_id", thread.ID)
	return thread, true, nil
}

func (s *Server) emit(ctx context.Context, w transport.EventWriter, ev api.ThreadStreamEvent) error {
	if err := w.WriteEvent(ctx, ev); err != nil {
		return err
	}
	observability.StreamEventsTotal.WithLabelValues(eventLabel(ev)).Inc()
	return w.Flush()
}

// eventLabel names an event for metrics, using the update type for
// item updates.
func eventLabel(ev api.ThreadStreamEvent) string {
	if ev.Type == api.EventThreadItemUpdated && ev.Update != nil {
		return string(ev.Update.Type)
	}
	return string(ev.Type)
}

func outcome(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return "cancelled"
	default:
		return "failed"
	}
}
