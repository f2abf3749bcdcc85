package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/observability"
	"github.com/rhuss/chatkit/pkg/storage"
	"github.com/rhuss/chatkit/pkg/transport"
)

// Adapter serves the thread API over HTTP. Message requests are answered
// by a transport.MessageHandler and streamed as SSE; thread and item
// reads go straight to the store.
type Adapter struct {
	handler  transport.MessageHandler
	store    transport.ThreadStore
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// DefaultPageSize applies when a listing omits limit. Larger limits
	// are clamped to MaxPageSize.
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:     10 << 20, // 10 MB
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// createThreadBody is the body of POST /v1/threads. When Input is set the
// thread is created and the message answered in the same stream.
type createThreadBody struct {
	api.ThreadCreateParams
	Input *api.UserMessageInput `json:"input,omitempty"`
}

// NewAdapter creates an HTTP adapter. The inflight registry must be the
// one the handler registers its streams with; it may be nil, in which
// case the cancel endpoint always answers 404.
// Middleware is applied to the handler in the given order.
func NewAdapter(handler transport.MessageHandler, store transport.ThreadStore, inflight *transport.InFlightRegistry, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}
	if inflight == nil {
		inflight = transport.NewInFlightRegistry()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = DefaultConfig().DefaultPageSize
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		handler:  handler,
		store:    store,
		inflight: inflight,
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /v1/threads", a.handleCreateThread)
	a.mux.HandleFunc("GET /v1/threads", a.handleListThreads)
	a.mux.HandleFunc("GET /v1/threads/{id}", a.handleGetThread)
	a.mux.HandleFunc("GET /v1/threads/{id}/items", a.handleListItems)
	a.mux.HandleFunc("POST /v1/threads/{id}/messages", a.handlePostMessage)
	a.mux.HandleFunc("POST /v1/threads/{id}/cancel", a.handleCancel)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)

	return a
}

// Handler returns the http.Handler for this adapter, with request ID
// propagation and request metrics applied.
func (a *Adapter) Handler() http.Handler {
	return a.handlerWith(nil)
}

// handlerWith wraps the routes in mw, first entry outermost. Request ID
// assignment wraps everything so that responses written by mw, such as
// auth rejections, carry an X-Request-ID too.
func (a *Adapter) handlerWith(mw []func(http.Handler) http.Handler) http.Handler {
	var h http.Handler = observability.MetricsMiddleware(a.mux)
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return httpRequestIDMiddleware(h)
}

// Handle registers an extra route on the adapter's mux, e.g. /metrics.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// httpRequestIDMiddleware puts a request ID into the context, taken from
// the X-Request-ID header or freshly generated, and echoes it in the
// response headers.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// handleCreateThread handles POST /v1/threads.
func (a *Adapter) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var body createThreadBody
	if !a.decodeBody(w, r, &body) {
		return
	}

	if body.Input != nil {
		a.stream(w, r, &api.MessageRequest{Thread: body.ThreadCreateParams, Input: *body.Input})
		return
	}

	thread, err := a.store.CreateThread(r.Context(), body.ThreadCreateParams)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

// handleListThreads handles GET /v1/threads.
func (a *Adapter) handleListThreads(w http.ResponseWriter, r *http.Request) {
	opts, apiErr := a.parseListOptions(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	page, err := a.store.ListThreads(r.Context(), opts)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetThread handles GET /v1/threads/{id}.
func (a *Adapter) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id, ok := threadIDFromPath(w, r)
	if !ok {
		return
	}
	thread, err := a.store.GetThread(r.Context(), id)
	if err != nil {
		writeStoreError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

// handleListItems handles GET /v1/threads/{id}/items.
func (a *Adapter) handleListItems(w http.ResponseWriter, r *http.Request) {
	id, ok := threadIDFromPath(w, r)
	if !ok {
		return
	}
	opts, apiErr := a.parseListOptions(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	page, err := a.store.LoadThreadItems(r.Context(), id, opts)
	if err != nil {
		writeStoreError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handlePostMessage handles POST /v1/threads/{id}/messages.
func (a *Adapter) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := threadIDFromPath(w, r)
	if !ok {
		return
	}
	var input api.UserMessageInput
	if !a.decodeBody(w, r, &input) {
		return
	}
	a.stream(w, r, &api.MessageRequest{ThreadID: id, Input: input})
}

// handleCancel handles POST /v1/threads/{id}/cancel. Threads of another
// tenant answer not found, like every other thread route.
func (a *Adapter) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := threadIDFromPath(w, r)
	if !ok {
		return
	}
	if _, err := a.store.GetThread(r.Context(), id); err != nil {
		writeStoreError(w, id, err)
		return
	}
	if !a.inflight.Cancel(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("no reply in progress for thread "+id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.HealthCheck(r.Context()); err != nil {
		http.Error(w, "store unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// stream answers a message request as an SSE stream. Errors before the
// first event become a JSON error response; later errors become a single
// error event.
func (a *Adapter) stream(w http.ResponseWriter, r *http.Request, req *api.MessageRequest) {
	sw := newSSEEventWriter(w)
	if err := a.handler.HandleMessage(r.Context(), req, sw); err != nil {
		writeHandlerError(w, r, sw, err)
		return
	}
	sw.Done()
}

// decodeBody decodes a JSON request body into v, writing an error
// response and returning false on failure.
func (a *Adapter) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// parseListOptions extracts pagination parameters from the query string.
// Order and cursor are validated by the store.
func (a *Adapter) parseListOptions(r *http.Request) (storage.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		After: q.Get("after"),
		Order: q.Get("order"),
		Limit: a.config.DefaultPageSize,
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = min(limit, a.config.MaxPageSize)
	}
	return opts, nil
}

func threadIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !api.ValidateThreadID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed thread ID"))
		return "", false
	}
	return id, true
}

// writeStoreError reports a store failure for thread id. Not-found
// errors name the thread without leaking wrapped details.
func writeStoreError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		transport.WriteAPIError(w, api.NewNotFoundError("thread "+id+" not found"))
		return
	}
	transport.WriteError(w, err)
}

// writeHandlerError writes an error from the message handler. If streaming
// has already started it sends an error event, otherwise a JSON error.
func writeHandlerError(w http.ResponseWriter, r *http.Request, sw *sseEventWriter, err error) {
	apiErr := transport.APIErrorFrom(err)
	if errors.Is(err, storage.ErrNotFound) && r.PathValue("id") != "" {
		apiErr = api.NewNotFoundError("thread " + r.PathValue("id") + " not found")
	}

	if sw.hasStartedStreaming() {
		// A failed write means the client has disconnected.
		_ = sw.WriteEvent(r.Context(), api.ErrorEvent(apiErr))
		return
	}
	transport.WriteAPIError(w, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
