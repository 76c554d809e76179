package livequery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrUnknownPublication is returned when a client subscribes to a name nobody registered.
var ErrUnknownPublication = errors.New("unknown publication")

// PublishFunc builds the query for one subscription. caller is the authenticated user id
// or empty for anonymous callers. Returning a nil query yields a view that is ready,
// empty and never updates.
type PublishFunc func(ctx context.Context, caller string, params []json.RawMessage) (*Query, error)

// Publisher holds the named publications served over a Feed.
type Publisher struct {
	feed   *Feed
	logger *logrus.Logger

	mu   sync.RWMutex
	pubs map[string]PublishFunc
}

func NewPublisher(feed *Feed, logger *logrus.Logger) *Publisher {
	return &Publisher{feed: feed, logger: logger, pubs: map[string]PublishFunc{}}
}

func (p *Publisher) Feed() *Feed { return p.feed }

// Register adds a publication. Registering a name twice replaces the first one.
func (p *Publisher) Register(name string, fn PublishFunc) {
	p.mu.Lock()
	p.pubs[name] = fn
	p.mu.Unlock()
}

// Names lists registered publication names, sorted.
func (p *Publisher) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.pubs))
	for n := range p.pubs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Subscribe starts a live view. The initial documents have been delivered to sink when
// Subscribe returns; later changes are delivered as the feed dispatches them until Stop.
func (p *Publisher) Subscribe(ctx context.Context, caller, name string, params []json.RawMessage, sink Sink) (*Subscription, error) {
	p.mu.RLock()
	fn, ok := p.pubs[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPublication, name)
	}
	q, err := fn(ctx, caller, params)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{feed: p.feed, query: q, sink: sink, logger: p.logger}
	if q == nil {
		return sub, nil
	}
	if q.Fetch == nil {
		return nil, fmt.Errorf("publication %s has no fetch", name)
	}
	if err := sub.start(ctx); err != nil {
		return nil, err
	}
	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{"publication": name, "collection": q.Collection, "user_id": caller}).Debug("subscription started")
	}
	return sub, nil
}

// Snapshot evaluates a publication once without registering a live view.
func (p *Publisher) Snapshot(ctx context.Context, caller, name string, params []json.RawMessage) (string, []Record, error) {
	p.mu.RLock()
	fn, ok := p.pubs[name]
	p.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownPublication, name)
	}
	q, err := fn(ctx, caller, params)
	if err != nil {
		return "", nil, err
	}
	if q == nil {
		return "", []Record{}, nil
	}
	docs, err := q.Fetch(ctx)
	if err != nil {
		return "", nil, err
	}
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		out = append(out, Record{ID: d.DocumentID(), Fields: q.project(d)})
	}
	return q.Collection, out, nil
}

// discard is a Sink that drops everything.
type discard struct{}

func (discard) Added(string, string, Fields)             {}
func (discard) Changed(string, string, Fields, []string) {}
func (discard) Removed(string, string)                   {}

// Discard is a Sink for callers that only read Records.
var Discard Sink = discard{}
