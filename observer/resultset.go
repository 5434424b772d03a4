package observer

import (
	"github.com/huandu/skiplist"

	"github.com/anyproto/any-mirror/document"
)

type entry struct {
	doc *document.Document
}

// resultSet holds the documents an observer currently sees. Ordered sets
// keep their entries in a skiplist sorted by the query ordering with the id
// as a tie breaker.
type resultSet struct {
	query Query
	docs  map[document.Id]*entry
	sl    *skiplist.SkipList
}

func newResultSet(q Query) *resultSet {
	rs := &resultSet{
		query: q,
		docs:  make(map[document.Id]*entry),
	}
	if q.Ordered() {
		rs.sl = skiplist.New(rs)
	}
	return rs
}

// Compare implements skiplist interface
func (rs *resultSet) Compare(lhs, rhs interface{}) int {
	le := lhs.(*entry)
	re := rhs.(*entry)
	if le.doc.Id == re.doc.Id {
		return 0
	}
	if rs.query.Less(*le.doc, *re.doc) {
		return -1
	}
	if rs.query.Less(*re.doc, *le.doc) {
		return 1
	}
	if le.doc.Id < re.doc.Id {
		return -1
	}
	return 1
}

// CalcScore implements skiplist interface
func (rs *resultSet) CalcScore(key interface{}) float64 {
	return 0
}

func (rs *resultSet) get(id document.Id) (*document.Document, bool) {
	e, ok := rs.docs[id]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

func (rs *resultSet) len() int {
	return len(rs.docs)
}

func (rs *resultSet) set(doc *document.Document) {
	rs.remove(doc.Id)
	e := &entry{doc: doc}
	rs.docs[doc.Id] = e
	if rs.sl != nil {
		rs.sl.Set(e, nil)
	}
}

func (rs *resultSet) remove(id document.Id) {
	e, ok := rs.docs[id]
	if !ok {
		return
	}
	delete(rs.docs, id)
	if rs.sl != nil {
		rs.sl.Remove(e)
	}
}

// next returns the id following id in an ordered set, empty for the last one.
func (rs *resultSet) next(id document.Id) document.Id {
	if rs.sl == nil {
		return ""
	}
	e, ok := rs.docs[id]
	if !ok {
		return ""
	}
	el := rs.sl.Get(e)
	if el == nil {
		return ""
	}
	if n := el.Next(); n != nil {
		return n.Key().(*entry).doc.Id
	}
	return ""
}

// ids returns ids in result order. Unordered sets return them in no particular order.
func (rs *resultSet) ids() []document.Id {
	ids := make([]document.Id, 0, len(rs.docs))
	if rs.sl == nil {
		for id := range rs.docs {
			ids = append(ids, id)
		}
		return ids
	}
	for el := rs.sl.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Key().(*entry).doc.Id)
	}
	return ids
}
