package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks threads that are currently streaming a reply so
// that POST /v1/threads/{id}/cancel can stop them. A thread may have more
// than one stream in progress; Cancel stops all of them.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]map[*inflightEntry]struct{}
}

type inflightEntry struct {
	cancel context.CancelFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]map[*inflightEntry]struct{}),
	}
}

// Register records cancel as a stream in progress on threadID. The
// returned release func removes the entry when the stream ends.
func (r *InFlightRegistry) Register(threadID string, cancel context.CancelFunc) (release func()) {
	e := &inflightEntry{cancel: cancel}

	r.mu.Lock()
	set, ok := r.entries[threadID]
	if !ok {
		set = make(map[*inflightEntry]struct{})
		r.entries[threadID] = set
	}
	set[e] = struct{}{}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		set, ok := r.entries[threadID]
		if !ok {
			return
		}
		delete(set, e)
		if len(set) == 0 {
			delete(r.entries, threadID)
		}
	}
}

// Cancel stops every stream in progress on threadID. It reports false if
// no stream is registered for the thread.
func (r *InFlightRegistry) Cancel(threadID string) bool {
	r.mu.Lock()
	set, ok := r.entries[threadID]
	if ok {
		delete(r.entries, threadID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	for e := range set {
		e.cancel()
	}
	return true
}

// Len returns the number of streams in progress.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, set := range r.entries {
		n += len(set)
	}
	return n
}
