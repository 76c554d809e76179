package livequery

import (
	"context"
	"reflect"
	"sort"
)

// Fields is the published field set of a document.
type Fields map[string]any

// Query describes a live view: which documents of Collection belong to it (Match),
// their order (Less), how many are kept (Limit, 0 for all) and which fields are
// visible (Project). Fetch evaluates the same view against the store and must agree
// with Match, Less and Limit.
type Query struct {
	Collection string
	Match      func(Document) bool
	Less       func(a, b Document) bool
	Limit      int
	Fetch      func(ctx context.Context) ([]Document, error)
	Project    func(Document) Fields
}

// Sink receives the deltas of one subscription.
type Sink interface {
	Added(collection, id string, fields Fields)
	Changed(collection, id string, fields Fields, cleared []string)
	Removed(collection, id string)
}

// Record is one published document.
type Record struct {
	ID     string `json:"_id"`
	Fields Fields `json:"fields"`
}

type entry struct {
	id     string
	doc    Document
	fields Fields
}

func (q *Query) matches(d Document) bool {
	if d == nil {
		return false
	}
	if q.Match == nil {
		return true
	}
	return q.Match(d)
}

func (q *Query) project(d Document) Fields {
	if q.Project == nil {
		return Fields{}
	}
	return q.Project(d)
}

// insertSorted places e at its sorted position. Ties keep insertion after equal elements.
func (q *Query) insertSorted(entries []entry, e entry) []entry {
	pos := len(entries)
	if q.Less != nil {
		pos = sort.Search(len(entries), func(i int) bool {
			return q.Less(e.doc, entries[i].doc)
		})
	}
	entries = append(entries, entry{})
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = e
	return entries
}

func indexOf(entries []entry, id string) int {
	for i := range entries {
		if entries[i].id == id {
			return i
		}
	}
	return -1
}

// diffFields returns the keys of next whose values differ from prev and the keys of
// prev that next no longer has.
func diffFields(prev, next Fields) (Fields, []string) {
	changed := Fields{}
	for k, v := range next {
		if old, ok := prev[k]; !ok || !reflect.DeepEqual(old, v) {
			changed[k] = v
		}
	}
	var cleared []string
	for k := range prev {
		if _, ok := next[k]; !ok {
			cleared = append(cleared, k)
		}
	}
	sort.Strings(cleared)
	return changed, cleared
}
