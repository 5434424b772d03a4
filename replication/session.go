// Package replication applies the ordered mutation stream of an authoritative
// source to a local mirror.
//
// A Session owns one docstore.Store and one originals.Ledger. It is driven by a
// single goroutine: the transport opens a batch with BeginUpdate, feeds messages
// with Update and closes it with EndUpdate; local writers bracket speculative
// writes with SaveOriginals and RetrieveOriginals.
//
//go:generate mockgen -destination mock_replication/mock_replication.go github.com/anyproto/any-mirror/replication Metrics
package replication

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/docstore"
	"github.com/anyproto/any-mirror/document"
	"github.com/anyproto/any-mirror/originals"
)

var log = logger.NewNamed("mirror.replication")

type ReplacePolicy int

const (
	// ReplacePolicyStrict rejects replacements with top-level "$" fields
	ReplacePolicyStrict ReplacePolicy = iota
	// ReplacePolicyPermissive stores replacements as they are
	ReplacePolicyPermissive
)

type Option func(s *Session)

func WithReplacePolicy(p ReplacePolicy) Option {
	return func(s *Session) {
		s.replacePolicy = p
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

type batchContext struct {
	size    int
	reset   bool
	paused  bool
	applied int
	start   time.Time
}

type Session struct {
	store         *docstore.Store
	ledger        *originals.Ledger
	replacePolicy ReplacePolicy
	metrics       Metrics
	batch         *batchContext
	log           logger.CtxLogger
}

// NewSession takes ownership of store and attaches a fresh originals ledger to it
func NewSession(store *docstore.Store, opts ...Option) *Session {
	s := &Session{
		store:   store,
		ledger:  originals.New(),
		metrics: noopMetrics{},
		log:     log.With(zap.String("store", store.Name())),
	}
	for _, opt := range opts {
		opt(s)
	}
	store.SetTracker(s.ledger)
	return s
}

func (s *Session) Store() *docstore.Store {
	return s.store
}

func (s *Session) InBatch() bool {
	return s.batch != nil
}

// BeginUpdate opens a batch of batchSize messages. Observers are paused for
// batches of more than one message and for resets. A reset removes every
// document before the first message of the batch is applied.
func (s *Session) BeginUpdate(batchSize int, reset bool) error {
	if s.batch != nil {
		return ErrBatchInProgress
	}
	if batchSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}
	b := &batchContext{size: batchSize, reset: reset, start: time.Now()}
	if batchSize > 1 || reset {
		s.store.PauseObservers()
		b.paused = true
	}
	s.batch = b
	if reset {
		removed := s.store.Len()
		if err := s.store.Clear(); err != nil {
			return err
		}
		s.log.Info("mirror reset", zap.Int("removed", removed), zap.Int("batchSize", batchSize))
	}
	return nil
}

// Update applies one message. Outside of a batch it acts as a batch of one.
// A violation leaves the store untouched.
func (s *Session) Update(msg Message) (err error) {
	msg, ok := normalize(msg)
	if !ok {
		return s.fail(unrecognized(msg))
	}
	if !s.store.IdGenerator().Valid(msg.DocumentId()) {
		return s.fail(violation(msg, ReasonMalformedId))
	}
	switch m := msg.(type) {
	case Replace:
		err = s.applyReplace(m)
	case Added:
		err = s.applyAdded(m)
	case Removed:
		err = s.applyRemoved(m)
	case Changed:
		err = s.applyChanged(m)
	}
	if err != nil {
		return s.fail(err)
	}
	if s.batch != nil {
		s.batch.applied++
	}
	s.metrics.MessageApplied(KindOf(msg))
	return nil
}

func (s *Session) applyReplace(m Replace) error {
	exists := s.store.Exists(m.Id)
	if m.Replacement == nil {
		if !exists {
			return nil
		}
		return s.store.Remove(m.Id)
	}
	if s.replacePolicy == ReplacePolicyStrict {
		for k := range m.Replacement {
			if strings.HasPrefix(k, "$") {
				return violation(m, ReasonOperatorFields)
			}
		}
	}
	if !exists {
		return s.store.Insert(document.Document{Id: m.Id, Fields: m.Replacement})
	}
	return s.store.Replace(m.Id, m.Replacement)
}

func (s *Session) applyAdded(m Added) error {
	if s.store.Exists(m.Id) {
		return violation(m, ReasonUnexpectedExisting)
	}
	return s.store.Insert(document.Document{Id: m.Id, Fields: m.Fields})
}

func (s *Session) applyRemoved(m Removed) error {
	if !s.store.Exists(m.Id) {
		return violation(m, ReasonExpectedExisting)
	}
	return s.store.Remove(m.Id)
}

func (s *Session) applyChanged(m Changed) error {
	if !s.store.Exists(m.Id) {
		return violation(m, ReasonExpectedExisting)
	}
	if len(m.Fields) == 0 {
		return nil
	}
	var (
		set   = make(document.Fields, len(m.Fields))
		unset []string
	)
	for k, v := range m.Fields {
		if document.IsAbsent(v) {
			unset = append(unset, k)
		} else {
			set[k] = v
		}
	}
	slices.Sort(unset)
	return s.store.Update(m.Id, set, unset)
}

func (s *Session) fail(err error) error {
	if pe, ok := err.(*ProtocolError); ok {
		s.metrics.ProtocolViolation(pe.Reason)
		s.log.Warn("protocol violation", zap.String("reason", pe.Reason), zap.String("kind", string(pe.Kind)), zap.String("id", string(pe.Id)))
	}
	return err
}

// EndUpdate closes the batch and releases the observer pause taken by
// BeginUpdate, pauses held by others stay in place. It is safe to call
// without an open batch.
func (s *Session) EndUpdate() error {
	b := s.batch
	if b == nil {
		return nil
	}
	s.batch = nil
	if b.paused {
		s.store.ResumeObservers()
	}
	if b.applied != b.size {
		s.log.Warn("batch size mismatch", zap.Int("expected", b.size), zap.Int("applied", b.applied))
	}
	s.metrics.BatchApplied(b.applied, b.reset, time.Since(b.start))
	return nil
}

// SaveOriginals opens an undo frame capturing every document mutated until
// the matching RetrieveOriginals
func (s *Session) SaveOriginals() {
	s.ledger.Save()
}

// RetrieveOriginals closes the top undo frame and returns it
func (s *Session) RetrieveOriginals() (originals.Frame, error) {
	return s.ledger.Retrieve()
}

func (s *Session) FindOne(id document.Id) (document.Document, bool) {
	return s.store.FindOne(id)
}

// RevertMessages returns Replace messages restoring the state captured by frame, sorted by id
func RevertMessages(frame originals.Frame) []Message {
	msgs := make([]Message, 0, len(frame))
	for _, id := range frame.Ids() {
		orig := frame[id]
		if orig == nil {
			msgs = append(msgs, Replace{Id: id})
		} else {
			msgs = append(msgs, Replace{Id: id, Replacement: orig.Fields.Copy()})
		}
	}
	return msgs
}

// Revert restores the state captured by frame as a single batch. Originals
// are written back to the store as they were, without the checks Update
// applies to messages of the source.
func (s *Session) Revert(frame originals.Frame) (err error) {
	ids := frame.Ids()
	if err = s.BeginUpdate(len(ids), false); err != nil {
		return err
	}
	defer func() {
		if endErr := s.EndUpdate(); err == nil {
			err = endErr
		}
	}()
	for _, id := range ids {
		if err = s.restore(id, frame[id]); err != nil {
			return err
		}
		s.batch.applied++
		s.metrics.MessageApplied(KindReplace)
	}
	return nil
}

func (s *Session) restore(id document.Id, orig *document.Document) error {
	exists := s.store.Exists(id)
	switch {
	case orig == nil && !exists:
		return nil
	case orig == nil:
		return s.store.Remove(id)
	case !exists:
		return s.store.Insert(document.Document{Id: id, Fields: orig.Fields})
	default:
		return s.store.Replace(id, orig.Fields)
	}
}

func normalize(msg Message) (Message, bool) {
	switch m := msg.(type) {
	case Replace, Added, Removed, Changed:
		return msg, true
	case *Replace:
		if m != nil {
			return *m, true
		}
	case *Added:
		if m != nil {
			return *m, true
		}
	case *Removed:
		if m != nil {
			return *m, true
		}
	case *Changed:
		if m != nil {
			return *m, true
		}
	}
	return msg, false
}
