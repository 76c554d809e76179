// Package livequery keeps client-visible views of store collections current.
//
// Store writes are reported to a Feed as Change values. Every active Subscription is
// registered on the Feed under its collection and turns each relevant change into
// added / changed / removed deltas for its Sink. Dispatch is serialized so every
// subscription observes changes in the order they were published.
package livequery

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Document is anything a query can publish.
type Document interface {
	DocumentID() string
}

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed write. Doc is the document after the write and is nil
// for deletes; Before is the previous state when the writer had it at hand.
type Change struct {
	Collection string
	Op         Op
	ID         string
	Doc        Document
	Before     Document
}

type watcher interface {
	apply(ctx context.Context, c Change)
}

// Feed fans changes out to the subscriptions watching a collection.
type Feed struct {
	mu       sync.Mutex
	watchers *xsync.MapOf[string, *xsync.MapOf[uint64, watcher]]
	nextID   atomic.Uint64
	hooksMu  sync.RWMutex
	hooks    []func(context.Context, Change)
}

func NewFeed() *Feed {
	return &Feed{watchers: xsync.NewMapOf[string, *xsync.MapOf[uint64, watcher]]()}
}

// OnPublish registers fn to run after every locally published change has been dispatched.
// Changes delivered through Dispatch do not trigger hooks.
func (f *Feed) OnPublish(fn func(context.Context, Change)) {
	f.hooksMu.Lock()
	f.hooks = append(f.hooks, fn)
	f.hooksMu.Unlock()
}

// Publish dispatches c to local subscriptions, then runs the publish hooks.
// It returns once every affected subscription has emitted its deltas.
func (f *Feed) Publish(ctx context.Context, c Change) {
	f.Dispatch(ctx, c)

	f.hooksMu.RLock()
	hooks := f.hooks
	f.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, c)
	}
}

// Dispatch delivers c to local subscriptions only.
func (f *Feed) Dispatch(ctx context.Context, c Change) {
	changesTotal.WithLabelValues(c.Collection, string(c.Op)).Inc()

	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.watchers.Load(c.Collection)
	if !ok {
		return
	}
	ws.Range(func(_ uint64, w watcher) bool {
		w.apply(ctx, c)
		return true
	})
}

// Watchers returns the number of subscriptions registered on collection.
func (f *Feed) Watchers(collection string) int {
	ws, ok := f.watchers.Load(collection)
	if !ok {
		return 0
	}
	return ws.Size()
}

// locked runs fn while holding the dispatch lock.
func (f *Feed) locked(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

// watch registers w; the caller must hold the dispatch lock. The returned func unregisters
// and must also be called with the lock held.
func (f *Feed) watch(collection string, w watcher) func() {
	id := f.nextID.Add(1)
	ws, _ := f.watchers.LoadOrCompute(collection, func() *xsync.MapOf[uint64, watcher] {
		return xsync.NewMapOf[uint64, watcher]()
	})
	ws.Store(id, w)
	return func() { ws.Delete(id) }
}
