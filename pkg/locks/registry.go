// Package locks implements per-conversation mutual exclusion (spec
// §5): the facade holds one conversation's lock across the whole
// handling of a request, except across the explicit human-approval
// suspension boundary, so two concurrent requests against the same
// conversation never interleave.
package locks

import (
	"container/list"
	"context"
	"sync"
)

type entry struct {
	mu        sync.Mutex
	refCount  int
	idleEntry *list.Element // non-nil while refCount==0 and queued for eviction
}

// Registry hands out one mutex per conversation ID. Idle entries (no
// holder, no waiter) beyond maxLocks are evicted oldest-first; an entry
// currently held or waited on is never evicted, since dropping a
// mutex out from under its holder would let a later caller acquire a
// fresh mutex for the same conversation and run concurrently with it —
// exactly the race this registry exists to prevent. Grounded on
// session_lock.py's cleanup_unused_locks, which likewise only ever
// removes locks that aren't currently `.locked()`.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	idle     *list.List // list of conversationID strings, oldest-idle first
	maxLocks int
}

// NewRegistry builds a Registry that caches at most maxLocks idle
// entries for reuse before evicting the oldest.
func NewRegistry(maxLocks int) *Registry {
	if maxLocks <= 0 {
		maxLocks = 1000
	}
	return &Registry{
		entries:  make(map[string]*entry),
		idle:     list.New(),
		maxLocks: maxLocks,
	}
}

// Acquire blocks until the conversation's lock is free or ctx is
// cancelled, returning a release function the caller must invoke
// exactly once to hand it back. Safe to call concurrently for the
// same or different conversation IDs.
func (r *Registry) Acquire(ctx context.Context, conversationID string) (func(), error) {
	e := r.checkout(conversationID)

	if err := lockContext(ctx, &e.mu); err != nil {
		r.checkin(conversationID, e, false)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.checkin(conversationID, e, true) })
	}, nil
}

func (r *Registry) checkout(conversationID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[conversationID]
	if !ok {
		e = &entry{}
		r.entries[conversationID] = e
	}
	if e.idleEntry != nil {
		r.idle.Remove(e.idleEntry)
		e.idleEntry = nil
	}
	e.refCount++
	return e
}

func (r *Registry) checkin(conversationID string, e *entry, unlock bool) {
	if unlock {
		e.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e.refCount--
	if e.refCount > 0 {
		return
	}
	e.idleEntry = r.idle.PushBack(conversationID)
	r.evictOverCapacity()
}

// evictOverCapacity drops the oldest idle entries until at most
// maxLocks remain tracked. Must be called with r.mu held.
func (r *Registry) evictOverCapacity() {
	for len(r.entries) > r.maxLocks && r.idle.Len() > 0 {
		front := r.idle.Front()
		id := front.Value.(string)
		r.idle.Remove(front)
		delete(r.entries, id)
	}
}

// Count reports how many conversation entries (held or idle) the
// registry currently tracks.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
