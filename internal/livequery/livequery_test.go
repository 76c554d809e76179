package livequery

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
)

type item struct {
	id    string
	score int
	group string
}

func (i *item) DocumentID() string { return i.id }

// itemStore is a toy collection that publishes its writes to a feed.
type itemStore struct {
	mu    sync.Mutex
	feed  *Feed
	items map[string]*item
}

func newItemStore(feed *Feed) *itemStore {
	return &itemStore{feed: feed, items: map[string]*item{}}
}

func (s *itemStore) put(id string, score int, group string) {
	s.mu.Lock()
	_, existed := s.items[id]
	it := &item{id: id, score: score, group: group}
	s.items[id] = it
	s.mu.Unlock()
	op := OpInsert
	if existed {
		op = OpUpdate
	}
	cp := *it
	s.feed.Publish(context.Background(), Change{Collection: "items", Op: op, ID: id, Doc: &cp})
}

func (s *itemStore) del(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	s.feed.Publish(context.Background(), Change{Collection: "items", Op: OpDelete, ID: id})
}

func (s *itemStore) query(group string, limit int) *Query {
	match := func(d Document) bool { return group == "" || d.(*item).group == group }
	less := func(a, b Document) bool { return a.(*item).score > b.(*item).score }
	return &Query{
		Collection: "items",
		Match:      match,
		Less:       less,
		Limit:      limit,
		Fetch: func(context.Context) ([]Document, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []Document
			for _, it := range s.items {
				if match(it) {
					cp := *it
					out = append(out, &cp)
				}
			}
			sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
			if limit > 0 && len(out) > limit {
				out = out[:limit]
			}
			return out, nil
		},
		Project: func(d Document) Fields {
			return Fields{"score": d.(*item).score, "group": d.(*item).group}
		},
	}
}

type event struct {
	kind    string
	id      string
	fields  Fields
	cleared []string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Added(_ string, id string, f Fields) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: "added", id: id, fields: f})
	r.mu.Unlock()
}

func (r *recorder) Changed(_ string, id string, f Fields, cleared []string) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: "changed", id: id, fields: f, cleared: cleared})
	r.mu.Unlock()
}

func (r *recorder) Removed(_ string, id string) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: "removed", id: id})
	r.mu.Unlock()
}

func (r *recorder) take() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func ids(recs []Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func newTestPublisher(store **itemStore) *Publisher {
	feed := NewFeed()
	*store = newItemStore(feed)
	p := NewPublisher(feed, nil)
	s := *store
	p.Register("items", func(_ context.Context, _ string, params []json.RawMessage) (*Query, error) {
		group := ""
		if len(params) > 0 {
			if err := json.Unmarshal(params[0], &group); err != nil {
				return nil, err
			}
		}
		return s.query(group, 3), nil
	})
	p.Register("nothing", func(context.Context, string, []json.RawMessage) (*Query, error) {
		return nil, nil
	})
	return p
}

func TestSubscribeInitialSnapshotAndDeltas(t *testing.T) {
	var store *itemStore
	p := newTestPublisher(&store)
	store.put("a", 1, "x")
	store.put("b", 2, "x")

	rec := &recorder{}
	sub, err := p.Subscribe(context.Background(), "", "items", nil, rec)
	assert.Equal(t, err, nil)
	assert.Equal(t, ids(sub.Records()), []string{"b", "a"})
	assert.Equal(t, len(rec.take()), 2)

	store.put("c", 5, "x")
	evs := rec.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].kind, "added")
	assert.Equal(t, evs[0].id, "c")

	store.put("a", 1, "y")
	evs = rec.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].kind, "changed")
	assert.Equal(t, evs[0].fields, Fields{"group": "y"})

	store.del("b")
	evs = rec.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].kind, "removed")
	assert.Equal(t, ids(sub.Records()), []string{"c", "a"})
}

func TestLimitedViewRefillsFromBeyondLimit(t *testing.T) {
	var store *itemStore
	p := newTestPublisher(&store)
	for i, id := range []string{"a", "b", "c", "d"} {
		store.put(id, 10-i, "x")
	}
	sub, err := p.Subscribe(context.Background(), "", "items", nil, Discard)
	assert.Equal(t, err, nil)
	assert.Equal(t, ids(sub.Records()), []string{"a", "b", "c"})

	// a member leaves: d must move in
	store.del("b")
	assert.Equal(t, ids(sub.Records()), []string{"a", "c", "d"})

	// a member sinks below a document it never saw
	store.put("e", 6, "x")
	assert.Equal(t, ids(sub.Records()), []string{"a", "c", "d"})
	store.put("a", 1, "x")
	assert.Equal(t, ids(sub.Records()), []string{"c", "d", "e"})

	// a new document outranks the last member and pushes it out
	store.put("f", 100, "x")
	assert.Equal(t, ids(sub.Records()), []string{"f", "c", "d"})
}

func TestFilteredViewIgnoresOtherDocuments(t *testing.T) {
	var store *itemStore
	p := newTestPublisher(&store)
	raw, _ := json.Marshal("x")
	rec := &recorder{}
	sub, err := p.Subscribe(context.Background(), "", "items", []json.RawMessage{raw}, rec)
	assert.Equal(t, err, nil)

	store.put("a", 1, "y")
	assert.Equal(t, len(rec.take()), 0)

	store.put("a", 1, "x")
	evs := rec.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].kind, "added")

	store.put("a", 1, "y")
	evs = rec.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].kind, "removed")
	assert.Equal(t, len(sub.Records()), 0)
}

func TestStopReleasesWatcher(t *testing.T) {
	var store *itemStore
	p := newTestPublisher(&store)
	store.put("a", 1, "x")
	rec := &recorder{}
	sub, err := p.Subscribe(context.Background(), "", "items", nil, rec)
	assert.Equal(t, err, nil)
	assert.Equal(t, p.Feed().Watchers("items"), 1)
	rec.take()

	sub.Stop()
	assert.Equal(t, p.Feed().Watchers("items"), 0)
	evs := rec.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].kind, "removed")

	store.put("b", 2, "x")
	assert.Equal(t, len(rec.take()), 0)
	sub.Stop()
}

func TestNilQueryIsTerminalAndEmpty(t *testing.T) {
	var store *itemStore
	p := newTestPublisher(&store)
	rec := &recorder{}
	sub, err := p.Subscribe(context.Background(), "", "nothing", nil, rec)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(sub.Records()), 0)
	store.put("a", 1, "x")
	assert.Equal(t, len(rec.take()), 0)
	assert.Equal(t, p.Feed().Watchers("items"), 0)
	sub.Stop()
}

func TestUnknownPublication(t *testing.T) {
	var store *itemStore
	p := newTestPublisher(&store)
	_, err := p.Subscribe(context.Background(), "", "missing", nil, Discard)
	assert.NotEqual(t, err, nil)
}

func TestMergeBoxSharesDocumentsAcrossSubscriptions(t *testing.T) {
	out := &recorder{}
	box := NewMergeBox(out)
	full := box.Sink("1")
	narrow := box.Sink("2")

	full.Added("users", "u1", Fields{"username": "alice", "emails": []string{"a@x"}})
	narrow.Added("users", "u1", Fields{"username": "alice"})
	evs := out.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].kind, "added")

	full.Removed("users", "u1")
	evs = out.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].kind, "changed")
	assert.Equal(t, evs[0].cleared, []string{"emails"})

	narrow.Changed("users", "u1", Fields{"username": "al"}, nil)
	evs = out.take()
	assert.Equal(t, evs[0].fields, Fields{"username": "al"})

	narrow.Removed("users", "u1")
	evs = out.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].kind, "removed")
	assert.Equal(t, box.Len("users"), 0)
}

func TestPublishHooksRunForLocalChangesOnly(t *testing.T) {
	feed := NewFeed()
	var seen []string
	feed.OnPublish(func(_ context.Context, c Change) { seen = append(seen, c.ID) })
	feed.Publish(context.Background(), Change{Collection: "items", Op: OpDelete, ID: "a"})
	feed.Dispatch(context.Background(), Change{Collection: "items", Op: OpDelete, ID: "b"})
	assert.Equal(t, seen, []string{"a"})
}

func TestMergeBoxUnionsNestedObjects(t *testing.T) {
	out := &recorder{}
	box := NewMergeBox(out)
	narrow := box.Sink("1")
	full := box.Sink("2")

	narrow.Added("users", "u1", Fields{"profile": map[string]any{"name": "Alice"}})
	full.Added("users", "u1", Fields{"profile": map[string]any{"name": "Alice", "bio": "hi", "isVerified": true}})
	evs := out.take()
	assert.Equal(t, len(evs), 2)
	assert.Equal(t, evs[1].kind, "changed")
	assert.Equal(t, evs[1].fields, Fields{"profile": map[string]any{"name": "Alice", "bio": "hi", "isVerified": true}})

	full.Removed("users", "u1")
	evs = out.take()
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].fields, Fields{"profile": map[string]any{"name": "Alice"}})
}
