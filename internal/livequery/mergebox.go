package livequery

import "sync"

// MergeBox combines the subscriptions of one client connection. A document published
// by several subscriptions is sent once; its visible fields are the union of what each
// subscription publishes. Nested objects are unioned key by key; on conflicting leaf
// values the earliest subscription wins. The document is withdrawn when the last
// subscription releases it.
type MergeBox struct {
	mu   sync.Mutex
	out  Sink
	docs map[string]map[string]*mergedDoc
}

type mergeView struct {
	sub    string
	fields Fields
}

type mergedDoc struct {
	views []mergeView
	sent  Fields
}

func NewMergeBox(out Sink) *MergeBox {
	return &MergeBox{out: out, docs: map[string]map[string]*mergedDoc{}}
}

// Sink returns the input for subscription subID.
func (m *MergeBox) Sink(subID string) Sink {
	return &mergeSink{box: m, sub: subID}
}

// Len returns the number of documents the client currently holds in collection.
func (m *MergeBox) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

func (d *mergedDoc) merged() Fields {
	out := Fields{}
	for _, v := range d.views {
		for k, val := range v.fields {
			if have, ok := out[k]; ok {
				out[k] = mergeValue(have, val)
			} else {
				out[k] = val
			}
		}
	}
	return out
}

// mergeValue unions two nested objects without modifying either; any other pair keeps have.
func mergeValue(have, add any) any {
	hm, ok := have.(map[string]any)
	if !ok {
		return have
	}
	am, ok := add.(map[string]any)
	if !ok {
		return have
	}
	out := make(map[string]any, len(hm)+len(am))
	for k, v := range hm {
		out[k] = v
	}
	for k, v := range am {
		if cur, ok := out[k]; ok {
			out[k] = mergeValue(cur, v)
		} else {
			out[k] = v
		}
	}
	return out
}

func (d *mergedDoc) view(sub string) int {
	for i := range d.views {
		if d.views[i].sub == sub {
			return i
		}
	}
	return -1
}

func (m *MergeBox) doc(collection, id string, create bool) *mergedDoc {
	coll, ok := m.docs[collection]
	if !ok {
		if !create {
			return nil
		}
		coll = map[string]*mergedDoc{}
		m.docs[collection] = coll
	}
	d, ok := coll[id]
	if !ok && create {
		d = &mergedDoc{}
		coll[id] = d
	}
	return d
}

func (m *MergeBox) flush(collection, id string, d *mergedDoc) {
	next := d.merged()
	if d.sent == nil {
		d.sent = next
		m.out.Added(collection, id, copyFields(next))
		return
	}
	changed, cleared := diffFields(d.sent, next)
	d.sent = next
	if len(changed) > 0 || len(cleared) > 0 {
		m.out.Changed(collection, id, changed, cleared)
	}
}

func copyFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

type mergeSink struct {
	box *MergeBox
	sub string
}

func (s *mergeSink) Added(collection, id string, fields Fields) {
	m := s.box
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.doc(collection, id, true)
	if i := d.view(s.sub); i >= 0 {
		d.views[i].fields = copyFields(fields)
	} else {
		d.views = append(d.views, mergeView{sub: s.sub, fields: copyFields(fields)})
	}
	m.flush(collection, id, d)
}

func (s *mergeSink) Changed(collection, id string, fields Fields, cleared []string) {
	m := s.box
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.doc(collection, id, false)
	if d == nil {
		return
	}
	i := d.view(s.sub)
	if i < 0 {
		return
	}
	for k, v := range fields {
		d.views[i].fields[k] = v
	}
	for _, k := range cleared {
		delete(d.views[i].fields, k)
	}
	m.flush(collection, id, d)
}

func (s *mergeSink) Removed(collection, id string) {
	m := s.box
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.doc(collection, id, false)
	if d == nil {
		return
	}
	i := d.view(s.sub)
	if i < 0 {
		return
	}
	d.views = append(d.views[:i], d.views[i+1:]...)
	if len(d.views) == 0 {
		delete(m.docs[collection], id)
		if len(m.docs[collection]) == 0 {
			delete(m.docs, collection)
		}
		m.out.Removed(collection, id)
		return
	}
	m.flush(collection, id, d)
}
