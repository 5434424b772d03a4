// Package observer keeps the result sets of store observers up to date and
// dispatches their change notifications, one call per observer per flush.
//
//go:generate mockgen -destination mock_observer/mock_observer.go github.com/anyproto/any-mirror/observer Observer
package observer

import (
	"slices"

	"go.uber.org/zap"

	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/document"
)

var log = logger.NewNamed("mirror.observer")

type Kind int

const (
	KindAdded Kind = iota
	KindChanged
	KindRemoved
	KindMoved
)

func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindChanged:
		return "changed"
	case KindRemoved:
		return "removed"
	case KindMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Change is a single entry of a notification.
//
// Added carries the projected fields of the new document. Changed carries
// the projected fields that differ, unset ones mapped to document.Absent.
// For ordered observers Added and Moved carry Before, the id of the document
// now following this one, empty when it is the last one. Changes are listed
// so that applying them in order to the previous result reproduces the new one.
type Change struct {
	Kind   Kind
	Id     document.Id
	Fields document.Fields
	Before document.Id
}

type Observer interface {
	Notify(changes []Change)
}

type NotifyFunc func(changes []Change)

func (f NotifyFunc) Notify(changes []Change) {
	f(changes)
}

// Registry tracks observers and defers their notifications while paused.
// It is not safe for concurrent use.
type Registry struct {
	handles []*Handle
	depth   int

	pending      map[document.Id]*document.Document
	pendingOrder []document.Id
}

func New() *Registry {
	return &Registry{pending: make(map[document.Id]*document.Document)}
}

type Handle struct {
	registry *Registry
	observer Observer
	results  *resultSet
	stopped  bool
	// added while paused, the initial notification waits for the flush
	deferred bool
}

// Stop unregisters the observer, it gets no notifications after this call
func (h *Handle) Stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	h.registry.handles = slices.DeleteFunc(h.registry.handles, func(o *Handle) bool {
		return o == h
	})
}

// Len returns the size of the observed result set
func (h *Handle) Len() int {
	return h.results.len()
}

// Ids returns ids of the observed result set, in result order for ordered queries
func (h *Handle) Ids() []document.Id {
	return h.results.ids()
}

// Add registers an observer over docs, the current content of the store.
// The initial result set is delivered as a single notification, right away
// or, while paused, at the flush with the pending changes folded in.
func (r *Registry) Add(q Query, o Observer, docs []*document.Document) *Handle {
	h := &Handle{
		registry: r,
		observer: o,
		results:  newResultSet(q),
		deferred: r.depth > 0,
	}
	for _, doc := range docs {
		if q.matches(doc) {
			h.results.set(doc)
		}
	}
	r.handles = append(r.handles, h)
	if h.deferred {
		return h
	}
	if changes := h.initial(); len(changes) > 0 {
		o.Notify(changes)
	}
	return h
}

// initial lists the whole result set as added documents
func (h *Handle) initial() []Change {
	q := h.results.query
	ids := h.results.ids()
	if len(ids) == 0 {
		return nil
	}
	if !q.Ordered() {
		slices.Sort(ids)
	}
	changes := make([]Change, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		doc, _ := h.results.get(ids[i])
		c := Change{Kind: KindAdded, Id: ids[i], Fields: doc.Fields.Project(q.Fields)}
		if q.Ordered() && i < len(ids)-1 {
			c.Before = ids[i+1]
		}
		changes = append(changes, c)
	}
	return changes
}

// Pause defers notifications until the matching Resume
func (r *Registry) Pause() {
	r.depth++
}

// Resume closes one Pause level. At depth zero the accumulated changes are
// flushed. An unmatched Resume does nothing.
func (r *Registry) Resume() {
	if r.depth == 0 {
		return
	}
	r.depth--
	if r.depth > 0 {
		return
	}
	ids := r.pendingOrder
	pending := r.pending
	r.pendingOrder = nil
	r.pending = make(map[document.Id]*document.Document)
	r.flush(ids, pending)
}

func (r *Registry) Paused() bool {
	return r.depth > 0
}

func (r *Registry) Depth() int {
	return r.depth
}

// Record reports the state of a document after a mutation, nil meaning it
// does not exist anymore. While paused only the last state per id is kept.
func (r *Registry) Record(id document.Id, after *document.Document) {
	if r.depth > 0 {
		if _, ok := r.pending[id]; !ok {
			r.pendingOrder = append(r.pendingOrder, id)
		}
		r.pending[id] = after
		return
	}
	r.flush([]document.Id{id}, map[document.Id]*document.Document{id: after})
}

func (r *Registry) flush(ids []document.Id, after map[document.Id]*document.Document) {
	if len(r.handles) == 0 {
		return
	}
	handles := slices.Clone(r.handles)
	for _, h := range handles {
		if h.stopped {
			continue
		}
		if len(ids) == 0 && !h.deferred {
			continue
		}
		var changes []Change
		switch {
		case len(ids) == 0:
		case len(ids) == 1:
			changes = h.applyOne(ids[0], after[ids[0]])
		default:
			changes = h.applyMany(ids, after)
		}
		if h.deferred {
			h.deferred = false
			changes = h.initial()
		}
		if len(changes) == 0 {
			continue
		}
		if ce := log.Check(zap.DebugLevel, "notify observer"); ce != nil {
			ce.Write(zap.Int("changes", len(changes)), zap.Int("results", h.results.len()))
		}
		h.observer.Notify(changes)
	}
}

// applyOne handles a single document change without walking the result set
func (h *Handle) applyOne(id document.Id, after *document.Document) []Change {
	q := h.results.query
	before, wasIn := h.results.get(id)
	isIn := q.matches(after)
	switch {
	case !wasIn && !isIn:
		return nil
	case wasIn && !isIn:
		h.results.remove(id)
		return []Change{{Kind: KindRemoved, Id: id}}
	case !wasIn && isIn:
		h.results.set(after)
		return []Change{{Kind: KindAdded, Id: id, Fields: after.Fields.Project(q.Fields), Before: h.results.next(id)}}
	}
	if before == after || before.Fields.Equal(after.Fields) {
		return nil
	}
	oldNext := h.results.next(id)
	h.results.set(after)
	var changes []Change
	if diff := before.Fields.Project(q.Fields).Diff(after.Fields.Project(q.Fields)); len(diff) > 0 {
		changes = append(changes, Change{Kind: KindChanged, Id: id, Fields: diff})
	}
	if q.Ordered() {
		if newNext := h.results.next(id); newNext != oldNext {
			changes = append(changes, Change{Kind: KindMoved, Id: id, Before: newNext})
		}
	}
	return changes
}

// applyMany applies a set of net changes and computes the minimal diff
// between the previous and the new result
func (h *Handle) applyMany(ids []document.Id, after map[document.Id]*document.Document) []Change {
	q := h.results.query
	var oldOrder []document.Id
	if q.Ordered() {
		oldOrder = h.results.ids()
	}

	var (
		removed []document.Id
		added   = map[document.Id]bool{}
		changed = map[document.Id]document.Fields{}
	)
	for _, id := range ids {
		doc := after[id]
		before, wasIn := h.results.get(id)
		isIn := q.matches(doc)
		switch {
		case wasIn && !isIn:
			h.results.remove(id)
			removed = append(removed, id)
		case !wasIn && isIn:
			h.results.set(doc)
			added[id] = true
		case wasIn && isIn:
			if before == doc || before.Fields.Equal(doc.Fields) {
				continue
			}
			h.results.set(doc)
			if diff := before.Fields.Project(q.Fields).Diff(doc.Fields.Project(q.Fields)); len(diff) > 0 {
				changed[id] = diff
			}
		}
	}

	var changes []Change
	if q.Ordered() {
		wasRemoved := make(map[document.Id]bool, len(removed))
		for _, id := range removed {
			wasRemoved[id] = true
		}
		for _, id := range oldOrder {
			if wasRemoved[id] {
				changes = append(changes, Change{Kind: KindRemoved, Id: id})
			}
		}
	} else {
		slices.Sort(removed)
		for _, id := range removed {
			changes = append(changes, Change{Kind: KindRemoved, Id: id})
		}
	}

	if !q.Ordered() {
		addedIds := make([]document.Id, 0, len(added))
		for id := range added {
			addedIds = append(addedIds, id)
		}
		slices.Sort(addedIds)
		for _, id := range addedIds {
			doc, _ := h.results.get(id)
			changes = append(changes, Change{Kind: KindAdded, Id: id, Fields: doc.Fields.Project(q.Fields)})
		}
		changedIds := make([]document.Id, 0, len(changed))
		for id := range changed {
			changedIds = append(changedIds, id)
		}
		slices.Sort(changedIds)
		for _, id := range changedIds {
			changes = append(changes, Change{Kind: KindChanged, Id: id, Fields: changed[id]})
		}
		return changes
	}

	newOrder := h.results.ids()
	moved := movedIds(oldOrder, newOrder, added)
	// walk from the end, so every Before refers to a document already in its final place
	for i := len(newOrder) - 1; i >= 0; i-- {
		id := newOrder[i]
		var next document.Id
		if i < len(newOrder)-1 {
			next = newOrder[i+1]
		}
		switch {
		case added[id]:
			doc, _ := h.results.get(id)
			changes = append(changes, Change{Kind: KindAdded, Id: id, Fields: doc.Fields.Project(q.Fields), Before: next})
		case moved[id]:
			changes = append(changes, Change{Kind: KindMoved, Id: id, Before: next})
		}
		if diff, ok := changed[id]; ok {
			changes = append(changes, Change{Kind: KindChanged, Id: id, Fields: diff})
		}
	}
	return changes
}
