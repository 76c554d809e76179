package livequery

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Subscription is one live view bound to a Sink. All of its state is guarded by the
// feed's dispatch lock.
type Subscription struct {
	feed    *Feed
	query   *Query
	sink    Sink
	logger  *logrus.Logger
	entries []entry
	cancel  func()
	stopped bool
}

// start registers the subscription and emits the initial snapshot.
func (s *Subscription) start(ctx context.Context) error {
	var err error
	s.feed.locked(func() {
		var docs []Document
		docs, err = s.query.Fetch(ctx)
		if err != nil {
			return
		}
		s.entries = s.build(docs)
		for _, e := range s.entries {
			s.sink.Added(s.query.Collection, e.id, e.fields)
		}
		s.cancel = s.feed.watch(s.query.Collection, s)
	})
	if err == nil {
		activeSubscriptions.Inc()
	}
	return err
}

// Stop unregisters the subscription and withdraws every document it published.
// It is safe to call more than once.
func (s *Subscription) Stop() {
	if s.query == nil {
		s.stopped = true
		return
	}
	s.feed.locked(func() {
		if s.stopped {
			return
		}
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
			activeSubscriptions.Dec()
		}
		for _, e := range s.entries {
			s.sink.Removed(s.query.Collection, e.id)
		}
		s.entries = nil
	})
}

// Records returns the documents currently in the view, in order.
func (s *Subscription) Records() []Record {
	if s.query == nil {
		return nil
	}
	var out []Record
	s.feed.locked(func() {
		out = make([]Record, 0, len(s.entries))
		for _, e := range s.entries {
			out = append(out, Record{ID: e.id, Fields: e.fields})
		}
	})
	return out
}

// Collection is the collection the view publishes, empty for terminal empty views.
func (s *Subscription) Collection() string {
	if s.query == nil {
		return ""
	}
	return s.query.Collection
}

func (s *Subscription) build(docs []Document) []entry {
	entries := make([]entry, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		entries = append(entries, entry{id: d.DocumentID(), doc: d, fields: s.query.project(d)})
	}
	return entries
}

func (s *Subscription) apply(ctx context.Context, c Change) {
	if s.stopped {
		return
	}
	q := s.query
	pos := indexOf(s.entries, c.ID)
	had := pos >= 0
	matches := c.Op != OpDelete && q.matches(c.Doc)
	if !had && !matches {
		return
	}

	wasFull := q.Limit > 0 && len(s.entries) >= q.Limit
	next := make([]entry, 0, len(s.entries)+1)
	next = append(next, s.entries[:max(pos, 0)]...)
	if had {
		next = append(next, s.entries[pos+1:]...)
	} else {
		next = append(next, s.entries...)
	}
	newPos := -1
	if matches {
		next = q.insertSorted(next, entry{id: c.ID, doc: c.Doc, fields: q.project(c.Doc)})
		newPos = indexOf(next, c.ID)
	}
	if q.Limit > 0 && len(next) > q.Limit {
		next = next[:q.Limit]
	}

	// A full view that lost a member, or whose member sank to the last slot, may now
	// owe its place to a document beyond the limit that it never saw.
	if wasFull && had && (!matches || newPos == len(next)-1) {
		refetchesTotal.WithLabelValues(q.Collection).Inc()
		docs, err := q.Fetch(ctx)
		if err != nil {
			if s.logger != nil {
				s.logger.WithError(err).WithField("collection", q.Collection).Error("live query refetch failed")
			}
		} else {
			next = s.build(docs)
		}
	}

	s.emitDiff(next)
	s.entries = next
}

func (s *Subscription) emitDiff(next []entry) {
	coll := s.query.Collection
	prev := make(map[string]Fields, len(s.entries))
	for _, e := range s.entries {
		prev[e.id] = e.fields
	}
	kept := make(map[string]struct{}, len(next))
	for _, e := range next {
		kept[e.id] = struct{}{}
	}
	for _, e := range s.entries {
		if _, ok := kept[e.id]; !ok {
			s.sink.Removed(coll, e.id)
		}
	}
	for _, e := range next {
		old, ok := prev[e.id]
		if !ok {
			s.sink.Added(coll, e.id, e.fields)
			continue
		}
		changed, cleared := diffFields(old, e.fields)
		if len(changed) > 0 || len(cleared) > 0 {
			s.sink.Changed(coll, e.id, changed, cleared)
		}
	}
}
