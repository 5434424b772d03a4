// Package document defines the data model shared by the mirror packages:
// identifiers, documents and field maps.
package document

import (
	"maps"
	"reflect"
	"slices"
)

// Id names a document within one store. Its well-formedness is decided by
// the id generator the store was built with.
type Id string

// Fields maps field names to values. Values are scalars, []any or nested
// map[string]any.
type Fields map[string]any

type absent struct{}

func (absent) String() string { return "<absent>" }

// Absent marks a field that must be unset by a partial update.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent sentinel.
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

type Document struct {
	Id     Id
	Fields Fields
}

// New returns a document holding a deep copy of fields.
func New(id Id, fields Fields) Document {
	return Document{Id: id, Fields: fields.Copy()}
}

// Copy returns a deep copy of the document.
func (d Document) Copy() Document {
	return Document{Id: d.Id, Fields: d.Fields.Copy()}
}

// Equal reports whether both documents have the same id and deeply equal fields.
func (d Document) Equal(o Document) bool {
	return d.Id == o.Id && d.Fields.Equal(o.Fields)
}

// Get returns the value of a top-level field.
func (d Document) Get(field string) (v any, ok bool) {
	v, ok = d.Fields[field]
	return
}

// Copy returns a deep copy. A nil map copies to an empty one.
func (f Fields) Copy() Fields {
	res := make(Fields, len(f))
	for k, v := range f {
		res[k] = CopyValue(v)
	}
	return res
}

// Compact returns a deep copy of f without top-level Absent values.
func (f Fields) Compact() Fields {
	res := make(Fields, len(f))
	for k, v := range f {
		if IsAbsent(v) {
			continue
		}
		res[k] = CopyValue(v)
	}
	return res
}

// Equal treats nil and empty maps as equal.
func (f Fields) Equal(o Fields) bool {
	if len(f) != len(o) {
		return false
	}
	for k, v := range f {
		ov, ok := o[k]
		if !ok || !ValueEqual(v, ov) {
			return false
		}
	}
	return true
}

// Keys returns field names in sorted order.
func (f Fields) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// Project returns a copy restricted to the given field names, nil names meaning all.
func (f Fields) Project(names []string) Fields {
	if names == nil {
		return f.Copy()
	}
	res := make(Fields, len(names))
	for _, name := range names {
		if v, ok := f[name]; ok {
			res[name] = CopyValue(v)
		}
	}
	return res
}

// Diff returns the changes that turn f into o: changed or new fields with
// their new values and removed fields mapped to Absent.
func (f Fields) Diff(o Fields) Fields {
	res := Fields{}
	for k, v := range o {
		if ov, ok := f[k]; !ok || !ValueEqual(ov, v) {
			res[k] = CopyValue(v)
		}
	}
	for k := range f {
		if _, ok := o[k]; !ok {
			res[k] = Absent
		}
	}
	return res
}

// CopyValue deep copies maps and slices, other values are returned as is.
func CopyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return map[string]any(Fields(tv).Copy())
	case Fields:
		return tv.Copy()
	case []any:
		res := make([]any, len(tv))
		for i, e := range tv {
			res[i] = CopyValue(e)
		}
		return res
	case []byte:
		return slices.Clone(tv)
	default:
		return v
	}
}

// ValueEqual compares field values, treating Fields and map[string]any alike.
func ValueEqual(a, b any) bool {
	if fa, ok := asFields(a); ok {
		fb, ok := asFields(b)
		return ok && fa.Equal(fb)
	}
	if sa, ok := a.([]any); ok {
		sb, ok := b.([]any)
		if !ok || len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !ValueEqual(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asFields(v any) (Fields, bool) {
	switch tv := v.(type) {
	case Fields:
		return tv, true
	case map[string]any:
		return tv, true
	}
	return nil, false
}
