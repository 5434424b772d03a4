package observer

import (
	"cmp"
	"fmt"

	"github.com/anyproto/any-mirror/document"
)

// Query describes the result set an observer watches.
type Query struct {
	// Match selects documents, nil selects all of them
	Match func(doc document.Document) bool
	// Less orders the result set, nil leaves it unordered
	Less func(a, b document.Document) bool
	// Fields is the projection, nil means every field
	Fields []string
}

func (q Query) Ordered() bool {
	return q.Less != nil
}

func (q Query) matches(doc *document.Document) bool {
	if doc == nil {
		return false
	}
	return q.Match == nil || q.Match(*doc)
}

// FieldEquals matches documents whose top-level field equals value.
func FieldEquals(field string, value any) func(doc document.Document) bool {
	return func(doc document.Document) bool {
		v, ok := doc.Get(field)
		return ok && document.ValueEqual(v, value)
	}
}

// SortBy orders by a top-level field. Missing fields sort first, values of
// different types are ordered by type name.
func SortBy(field string, desc bool) func(a, b document.Document) bool {
	return func(a, b document.Document) bool {
		av, _ := a.Get(field)
		bv, _ := b.Get(field)
		if desc {
			return compareValues(bv, av) < 0
		}
		return compareValues(av, bv) < 0
	}
}

func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if an, ok := toFloat(a); ok {
		if bn, ok := toFloat(b); ok {
			return cmp.Compare(an, bn)
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	return cmp.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
