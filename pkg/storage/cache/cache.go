// Package cache wraps a ThreadStore with an LRU cache of thread records.
// Threads are immutable once created, so cached entries never go stale;
// items are always read from the underlying store.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/observability"
	"github.com/rhuss/chatkit/pkg/storage"
	"github.com/rhuss/chatkit/pkg/transport"
)

// DefaultSize is the number of threads cached when no size is given.
const DefaultSize = 1024

// Store caches GetThread results of the wrapped store.
type Store struct {
	transport.ThreadStore
	threads *lru.Cache
}

var _ transport.ThreadStore = (*Store)(nil)

// New wraps next. A size of zero or less uses DefaultSize.
func New(next transport.ThreadStore, size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	threads, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("initialize thread cache: %w", err)
	}
	return &Store{ThreadStore: next, threads: threads}, nil
}

// cacheKey scopes entries by tenant so a cached thread is never served
// to another tenant.
func cacheKey(ctx context.Context, id string) string {
	return storage.GetTenant(ctx) + "\x00" + id
}

// CreateThread creates the thread and caches it.
func (s *Store) CreateThread(ctx context.Context, params api.ThreadCreateParams) (*api.Thread, error) {
	t, err := s.ThreadStore.CreateThread(ctx, params)
	if err != nil {
		return nil, err
	}
	s.threads.Add(cacheKey(ctx, t.ID), *cloneThread(t))
	return t, nil
}

// GetThread serves the thread from the cache when present. Misses,
// including not-found results, go to the wrapped store.
func (s *Store) GetThread(ctx context.Context, id string) (*api.Thread, error) {
	key := cacheKey(ctx, id)
	if v, ok := s.threads.Get(key); ok {
		observability.ThreadCacheTotal.WithLabelValues("hit").Inc()
		t := v.(api.Thread)
		return cloneThread(&t), nil
	}
	observability.ThreadCacheTotal.WithLabelValues("miss").Inc()

	t, err := s.ThreadStore.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	s.threads.Add(key, *cloneThread(t))
	return t, nil
}

// Len returns the number of cached threads.
func (s *Store) Len() int {
	return s.threads.Len()
}

// Close purges the cache and closes the wrapped store.
func (s *Store) Close() error {
	s.threads.Purge()
	return s.ThreadStore.Close()
}

// cloneThread copies t so callers cannot modify the cached metadata map.
func cloneThread(t *api.Thread) *api.Thread {
	out := *t
	if t.Metadata != nil {
		out.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
