package assistant

import (
	"context"
	"iter"
	"slices"

	"github.com/rhuss/chatkit/pkg/agent"
	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/debug"
	"github.com/rhuss/chatkit/pkg/observability"
	"github.com/rhuss/chatkit/pkg/provider"
	"github.com/rhuss/chatkit/pkg/storage"
	"github.com/rhuss/chatkit/pkg/transport"
)

const (
	// MaxRecentItems is how many of a thread's newest items are sent to
	// the model.
	MaxRecentItems = 30

	// Model is the default model.
	Model = "gpt-4o-mini"

	// Name is the default assistant name.
	Name = "Starter Assistant"

	// Instructions is the default system prompt.
	Instructions = "You are a concise, helpful assistant. " +
		"Keep replies short and focus on directly answering " +
		"the user's request."
)

// DefaultAgent returns the assistant definition used when none is
// configured.
func DefaultAgent() *agent.Agent {
	return &agent.Agent{Name: Name, Instructions: Instructions, Model: Model}
}

// Server is a transport.Responder backed by one agent.
type Server struct {
	store          transport.ThreadStore
	runner         *agent.Runner
	agent          *agent.Agent
	maxRecentItems int
}

var _ transport.Responder = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithAgent replaces the default assistant definition.
func WithAgent(a *agent.Agent) Option {
	return func(s *Server) { s.agent = a }
}

// WithMaxRecentItems changes how much history is sent to the model.
// Values below 1 are ignored.
func WithMaxRecentItems(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRecentItems = n
		}
	}
}

// New creates a Server that reads history from store and runs the agent
// on p.
func New(store transport.ThreadStore, p provider.Provider, opts ...Option) *Server {
	s := &Server{
		store:          store,
		runner:         &agent.Runner{Provider: p},
		agent:          DefaultAgent(),
		maxRecentItems: MaxRecentItems,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Agent returns the assistant definition in use.
func (s *Server) Agent() *agent.Agent { return s.agent }

// Respond streams the assistant's reply to the newest message in thread.
// The history is read when iteration starts. A failed read ends the
// sequence before any event. Errors from the runner are yielded as they
// are.
func (s *Server) Respond(ctx context.Context, thread *api.Thread, item *api.ThreadItem) iter.Seq2[api.ThreadStreamEvent, error] {
	return func(yield func(api.ThreadStreamEvent, error) bool) {
		page, err := s.store.LoadThreadItems(ctx, thread.ID, storage.ListOptions{
			Limit: s.maxRecentItems,
			Order: storage.OrderDesc,
		})
		if err != nil {
			yield(api.ThreadStreamEvent{}, err)
			return
		}

		items := slices.Clone(page.Data)
		slices.Reverse(items)
		input := agent.SimpleToInput(items)
		observability.HistoryItems.Observe(float64(len(items)))
		debug.Log("agent", "history loaded", "thread_id", thread.ID, "items", len(items), "has_more", page.HasMore)

		actx := &agent.Context{
			Thread:         thread,
			Store:          s.store,
			RequestContext: requestContext(ctx),
		}

		result, err := s.runner.RunStreamed(ctx, s.agent, input, actx)
		if err != nil {
			yield(api.ThreadStreamEvent{}, err)
			return
		}

		for ev, err := range agent.StreamResponse(actx, result) {
			if !yield(ev, err) || err != nil {
				return
			}
		}
	}
}

func requestContext(ctx context.Context) map[string]string {
	rc := map[string]string{}
	if tenant := storage.GetTenant(ctx); tenant != "" {
		rc["tenant_id"] = tenant
	}
	if id := transport.RequestIDFromContext(ctx); id != "" {
		rc["request_id"] = id
	}
	return rc
}
