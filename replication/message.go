package replication

import (
	"github.com/anyproto/any-mirror/document"
)

// Message is one mutation notification of the authoritative source. Update
// understands Replace, Added, Removed and Changed, anything else is a
// protocol violation.
type Message interface {
	DocumentId() document.Id
}

// Replace overwrites the whole document or, with a nil Replacement, deletes it
type Replace struct {
	Id          document.Id
	Replacement document.Fields
}

// Added creates a document
type Added struct {
	Id     document.Id
	Fields document.Fields
}

// Removed deletes a document
type Removed struct {
	Id document.Id
}

// Changed updates some fields, a value of document.Absent unsets the field
type Changed struct {
	Id     document.Id
	Fields document.Fields
}

func (m Replace) DocumentId() document.Id { return m.Id }
func (m Added) DocumentId() document.Id   { return m.Id }
func (m Removed) DocumentId() document.Id { return m.Id }
func (m Changed) DocumentId() document.Id { return m.Id }

type MessageKind string

const (
	KindReplace MessageKind = "replace"
	KindAdded   MessageKind = "added"
	KindRemoved MessageKind = "removed"
	KindChanged MessageKind = "changed"
	KindUnknown MessageKind = "unknown"
)

func KindOf(msg Message) MessageKind {
	switch msg.(type) {
	case Replace, *Replace:
		return KindReplace
	case Added, *Added:
		return KindAdded
	case Removed, *Removed:
		return KindRemoved
	case Changed, *Changed:
		return KindChanged
	default:
		return KindUnknown
	}
}
