package observability

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/storage"
	"github.com/rhuss/chatkit/pkg/transport"
)

// InstrumentedStore records chatkit_store_operations_total and
// chatkit_store_latency_seconds around every call of the wrapped store.
type InstrumentedStore struct {
	next transport.ThreadStore
	name string
}

var _ transport.ThreadStore = (*InstrumentedStore)(nil)

// InstrumentStore wraps store; name becomes the "store" label.
func InstrumentStore(store transport.ThreadStore, name string) *InstrumentedStore {
	return &InstrumentedStore{next: store, name: name}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		outcome = "not_found"
	case api.IsInvalidRequest(err):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	StoreOperationsTotal.WithLabelValues(s.name, op, outcome).Inc()
	StoreLatency.WithLabelValues(s.name, op).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) CreateThread(ctx context.Context, params api.ThreadCreateParams) (*api.Thread, error) {
	start := time.Now()
	t, err := s.next.CreateThread(ctx, params)
	s.observe("create_thread", start, err)
	return t, err
}

func (s *InstrumentedStore) GetThread(ctx context.Context, id string) (*api.Thread, error) {
	start := time.Now()
	t, err := s.next.GetThread(ctx, id)
	s.observe("get_thread", start, err)
	return t, err
}

func (s *InstrumentedStore) ListThreads(ctx context.Context, opts storage.ListOptions) (*api.Page[api.Thread], error) {
	start := time.Now()
	p, err := s.next.ListThreads(ctx, opts)
	s.observe("list_threads", start, err)
	return p, err
}

func (s *InstrumentedStore) AddItem(ctx context.Context, threadID string, item api.ThreadItem) (*api.ThreadItem, error) {
	start := time.Now()
	it, err := s.next.AddItem(ctx, threadID, item)
	s.observe("add_item", start, err)
	return it, err
}

func (s *InstrumentedStore) LoadThreadItems(ctx context.Context, threadID string, opts storage.ListOptions) (*api.Page[api.ThreadItem], error) {
	start := time.Now()
	p, err := s.next.LoadThreadItems(ctx, threadID, opts)
	s.observe("load_items", start, err)
	return p, err
}

func (s *InstrumentedStore) HealthCheck(ctx context.Context) error {
	return s.next.HealthCheck(ctx)
}

func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
