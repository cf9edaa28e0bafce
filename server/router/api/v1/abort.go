package v1

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errStopped = errors.New("stopped by user")

// abortRegistry tracks the in-flight request of each conversation so it can be stopped.
// Every Start gets a fresh generation; a stop or release only ever touches the
// generation it was issued for, so a new request never sees an older stop.
type abortRegistry struct {
	mu       sync.Mutex
	next     uint64
	entries  map[string]*abortEntry
	cooldown time.Duration
}

type abortEntry struct {
	gen     uint64
	cancel  context.CancelCauseFunc
	stopped bool
}

func newAbortRegistry(cooldown time.Duration) *abortRegistry {
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	return &abortRegistry{entries: map[string]*abortEntry{}, cooldown: cooldown}
}

// Start registers a request for conversationID and returns its cancellable context
// and a release func that must be called when the request ends.
func (r *abortRegistry) Start(ctx context.Context, conversationID string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	r.mu.Lock()
	r.next++
	gen := r.next
	r.entries[conversationID] = &abortEntry{gen: gen, cancel: cancel}
	r.mu.Unlock()

	return ctx, func() {
		cancel(nil)
		r.mu.Lock()
		defer r.mu.Unlock()
		if e, ok := r.entries[conversationID]; ok && e.gen == gen && !e.stopped {
			delete(r.entries, conversationID)
		}
	}
}

// Stop cancels the in-flight request of conversationID. It reports false when
// nothing is running. The stopped entry is kept for the cooldown so a repeated stop
// is still acknowledged.
func (r *abortRegistry) Stop(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[conversationID]
	if !ok {
		return false
	}
	if e.stopped {
		return true
	}
	e.stopped = true
	e.cancel(errStopped)
	gen := e.gen
	time.AfterFunc(r.cooldown, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.entries[conversationID]; ok && cur.gen == gen {
			delete(r.entries, conversationID)
		}
	})
	return true
}

func (r *abortRegistry) active(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[conversationID]
	return ok
}
