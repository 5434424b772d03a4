// Package originals implements the undo log for speculative local writes.
package originals

import (
	"errors"
	"maps"
	"slices"

	"github.com/anyproto/any-mirror/document"
)

var ErrLedgerUnderflow = errors.New("originals: retrieve without matching save")

// Frame maps every id touched while the frame was open to its state at the
// moment the frame was opened. A nil value means the document did not exist.
type Frame map[document.Id]*document.Document

// Ids returns the captured ids in sorted order
func (f Frame) Ids() []document.Id {
	return slices.Sorted(maps.Keys(f))
}

// Original returns the captured state of id. ok is false when the frame did not capture id.
func (f Frame) Original(id document.Id) (doc *document.Document, ok bool) {
	doc, ok = f[id]
	return
}

// Ledger is a stack of frames. It is not safe for concurrent use.
type Ledger struct {
	frames []Frame
}

func New() *Ledger {
	return &Ledger{}
}

// Save opens a new frame on top of the stack
func (l *Ledger) Save() {
	l.frames = append(l.frames, Frame{})
}

// Retrieve pops the top frame
func (l *Ledger) Retrieve() (Frame, error) {
	if len(l.frames) == 0 {
		return nil, ErrLedgerUnderflow
	}
	top := l.frames[len(l.frames)-1]
	l.frames[len(l.frames)-1] = nil
	l.frames = l.frames[:len(l.frames)-1]
	return top, nil
}

func (l *Ledger) Depth() int {
	return len(l.frames)
}

// Track must be called before id is mutated, with its current state or nil
// when it does not exist. Every open frame captures id once, later calls for
// the same id leave the captured state untouched.
func (l *Ledger) Track(id document.Id, current *document.Document) {
	for _, frame := range l.frames {
		if _, ok := frame[id]; ok {
			continue
		}
		if current == nil {
			frame[id] = nil
		} else {
			cp := current.Copy()
			frame[id] = &cp
		}
	}
}
