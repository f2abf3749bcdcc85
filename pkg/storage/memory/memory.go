// Package memory provides an in-memory implementation of transport.ThreadStore
// for tests and single-process deployments. Threads and items are lost when
// the process restarts.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/storage"
	"github.com/rhuss/chatkit/pkg/transport"
)

// threadEntry holds a thread and its items. Items are kept sorted by
// position; mu guards items, ids and itemSeq.
type threadEntry struct {
	thread   api.Thread
	tenantID string
	pos      storage.Position

	mu      sync.RWMutex
	items   []itemEntry
	ids     map[string]struct{}
	itemSeq int64
}

type itemEntry struct {
	item api.ThreadItem
	pos  storage.Position
}

// Store is an in-memory ThreadStore. The registry lock guards the thread
// map; each thread guards its own item list, so appends to different
// threads do not contend.
type Store struct {
	mu        sync.RWMutex
	threads   map[string]*threadEntry
	ordered   []*threadEntry // by pos
	threadSeq int64

	now func() time.Time
}

// Ensure Store implements transport.ThreadStore at compile time.
var _ transport.ThreadStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		threads: make(map[string]*threadEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateThread stores a new thread owned by the tenant in ctx.
func (s *Store) CreateThread(ctx context.Context, params api.ThreadCreateParams) (*api.Thread, error) {
	if err := api.ValidateThreadParams(params); err != nil {
		return nil, err
	}

	md := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		md[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.threadSeq++
	e := &threadEntry{
		thread: api.Thread{
			ID:        api.NewThreadID(),
			Object:    "thread",
			CreatedAt: s.now().UTC(),
			Title:     params.Title,
			Metadata:  md,
		},
		tenantID: storage.GetTenant(ctx),
		ids:      make(map[string]struct{}),
	}
	e.pos = storage.Position{CreatedAt: e.thread.CreatedAt, Seq: s.threadSeq}

	s.threads[e.thread.ID] = e
	s.ordered = insertSorted(s.ordered, e, func(x *threadEntry) storage.Position { return x.pos })

	t := e.thread
	return &t, nil
}

// GetThread returns a thread by ID, scoped by tenant.
func (s *Store) GetThread(ctx context.Context, id string) (*api.Thread, error) {
	e, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	t := e.thread
	return &t, nil
}

// ListThreads returns a page of the threads visible to the tenant in ctx.
func (s *Store) ListThreads(ctx context.Context, opts storage.ListOptions) (*api.Page[api.Thread], error) {
	q, err := opts.Resolve("")
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	visible := make([]*threadEntry, 0, len(s.ordered))
	for _, e := range s.ordered {
		if storage.TenantMatches(ctx, e.tenantID) {
			visible = append(visible, e)
		}
	}
	s.mu.RUnlock()

	picked, hasMore := paginate(visible, q, func(e *threadEntry) storage.Position { return e.pos })

	data := make([]api.Thread, len(picked))
	for i, e := range picked {
		data[i] = e.thread
	}
	var after string
	if len(picked) > 0 {
		after = q.Next("", picked[len(picked)-1].pos)
	}
	return api.NewPage(data, after, hasMore), nil
}

// AddItem appends an item to a thread.
func (s *Store) AddItem(ctx context.Context, threadID string, item api.ThreadItem) (*api.ThreadItem, error) {
	e, err := s.lookup(ctx, threadID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if item.ID == "" {
		item.ID = api.NewItemID(item.Type)
	}
	if _, dup := e.ids[item.ID]; dup {
		return nil, fmt.Errorf("item %s: %w", item.ID, storage.ErrConflict)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now().UTC()
	}
	item.ThreadID = threadID

	e.itemSeq++
	entry := itemEntry{
		item: item,
		pos:  storage.Position{CreatedAt: item.CreatedAt, Seq: e.itemSeq},
	}
	e.items = insertSorted(e.items, entry, func(x itemEntry) storage.Position { return x.pos })
	e.ids[item.ID] = struct{}{}

	return &item, nil
}

// LoadThreadItems returns a page of a thread's items.
func (s *Store) LoadThreadItems(ctx context.Context, threadID string, opts storage.ListOptions) (*api.Page[api.ThreadItem], error) {
	q, err := opts.Resolve(threadID)
	if err != nil {
		return nil, err
	}
	e, err := s.lookup(ctx, threadID)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	picked, hasMore := paginate(e.items, q, func(x itemEntry) storage.Position { return x.pos })
	data := make([]api.ThreadItem, len(picked))
	for i, x := range picked {
		data[i] = x.item
	}
	var after string
	if len(picked) > 0 {
		after = q.Next(threadID, picked[len(picked)-1].pos)
	}
	e.mu.RUnlock()

	return api.NewPage(data, after, hasMore), nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) lookup(ctx context.Context, id string) (*threadEntry, error) {
	s.mu.RLock()
	e, ok := s.threads[id]
	s.mu.RUnlock()

	if !ok || !storage.TenantMatches(ctx, e.tenantID) {
		return nil, fmt.Errorf("thread %s: %w", id, storage.ErrNotFound)
	}
	return e, nil
}

// insertSorted inserts v after every element whose position is not
// greater, keeping the slice ordered.
func insertSorted[T any](s []T, v T, pos func(T) storage.Position) []T {
	p := pos(v)
	i := sort.Search(len(s), func(i int) bool { return pos(s[i]).Compare(p) > 0 })
	return slices.Insert(s, i, v)
}

// paginate selects one page from records sorted ascending by position.
// The result is in the query's order.
func paginate[T any](records []T, q storage.Query, pos func(T) storage.Position) ([]T, bool) {
	if q.Asc() {
		start := 0
		if q.Cursor != nil {
			start = sort.Search(len(records), func(i int) bool {
				return pos(records[i]).Compare(q.Cursor.Position) > 0
			})
		}
		rest := records[start:]
		if len(rest) > q.Limit {
			return slices.Clone(rest[:q.Limit]), true
		}
		return slices.Clone(rest), false
	}

	end := len(records)
	if q.Cursor != nil {
		end = sort.Search(len(records), func(i int) bool {
			return pos(records[i]).Compare(q.Cursor.Position) >= 0
		})
	}
	n := min(q.Limit, end)
	out := make([]T, n)
	for i := range n {
		out[i] = records[end-1-i]
	}
	return out, end > n
}
