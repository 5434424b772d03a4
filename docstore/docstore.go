// Package docstore implements the in-memory document table of a mirror.
//
// Stored documents are never modified in place: every mutation replaces the
// stored value, so states handed to observers and trackers stay valid. Readers
// get deep copies. A Store is not safe for concurrent use.
package docstore

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/document"
	"github.com/anyproto/any-mirror/idgen"
	"github.com/anyproto/any-mirror/observer"
)

var (
	ErrDuplicateKey = errors.New("docstore: duplicate key")
	ErrNotFound     = errors.New("docstore: document not found")
)

var log = logger.NewNamed("mirror.docstore")

// Tracker is told about the state of a document right before it is mutated
type Tracker interface {
	Track(id document.Id, current *document.Document)
}

type Option func(s *Store)

func WithTracker(t Tracker) Option {
	return func(s *Store) {
		s.tracker = t
	}
}

func WithIdGenerator(g idgen.Generator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

type Store struct {
	name     string
	docs     map[document.Id]*document.Document
	registry *observer.Registry
	tracker  Tracker
	ids      idgen.Generator
	log      logger.CtxLogger
}

func New(opts ...Option) *Store {
	s := &Store{
		docs:     make(map[document.Id]*document.Document),
		registry: observer.New(),
		ids:      idgen.NewRandom(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = log.With(zap.String("store", s.name))
	return s
}

func (s *Store) Name() string {
	return s.name
}

// SetTracker replaces the tracker, nil disables tracking
func (s *Store) SetTracker(t Tracker) {
	s.tracker = t
}

func (s *Store) IdGenerator() idgen.Generator {
	return s.ids
}

func (s *Store) Insert(doc document.Document) error {
	if _, ok := s.docs[doc.Id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, doc.Id)
	}
	stored := document.Document{Id: doc.Id, Fields: doc.Fields.Compact()}
	s.apply(doc.Id, nil, &stored)
	return nil
}

func (s *Store) Remove(id document.Id) error {
	current, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.apply(id, current, nil)
	return nil
}

// Update sets and unsets fields of an existing document as one mutation
func (s *Store) Update(id document.Id, set document.Fields, unset []string) error {
	current, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fields := current.Fields.Copy()
	for k, v := range set {
		if document.IsAbsent(v) {
			delete(fields, k)
			continue
		}
		fields[k] = document.CopyValue(v)
	}
	for _, k := range unset {
		delete(fields, k)
	}
	s.apply(id, current, &document.Document{Id: id, Fields: fields})
	return nil
}

// Replace overwrites all fields of an existing document
func (s *Store) Replace(id document.Id, fields document.Fields) error {
	current, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := document.Document{Id: id, Fields: fields.Compact()}
	s.apply(id, current, &next)
	return nil
}

// Clear removes every document one by one, so observers and the tracker see each removal
func (s *Store) Clear() error {
	ids := s.Ids()
	for _, id := range ids {
		if err := s.Remove(id); err != nil {
			return err
		}
	}
	s.log.Debug("store cleared", zap.Int("removed", len(ids)))
	return nil
}

func (s *Store) apply(id document.Id, current, next *document.Document) {
	if s.tracker != nil {
		s.tracker.Track(id, current)
	}
	if next == nil {
		delete(s.docs, id)
	} else {
		s.docs[id] = next
	}
	s.registry.Record(id, next)
}

// FindOne returns a copy of the document
func (s *Store) FindOne(id document.Id) (document.Document, bool) {
	doc, ok := s.docs[id]
	if !ok {
		return document.Document{}, false
	}
	return doc.Copy(), true
}

func (s *Store) Exists(id document.Id) bool {
	_, ok := s.docs[id]
	return ok
}

// Find returns copies of matching documents sorted by id, nil match selects all
func (s *Store) Find(match func(doc document.Document) bool) []document.Document {
	var res []document.Document
	for _, id := range s.Ids() {
		doc := s.docs[id]
		if match == nil || match(*doc) {
			res = append(res, doc.Copy())
		}
	}
	return res
}

// Ids returns ids in sorted order
func (s *Store) Ids() []document.Id {
	return slices.Sorted(maps.Keys(s.docs))
}

func (s *Store) Len() int {
	return len(s.docs)
}

// Observe registers an observer. It receives the current result right away
// and every change after that, deferred while observers are paused.
func (s *Store) Observe(q observer.Query, o observer.Observer) *observer.Handle {
	docs := make([]*document.Document, 0, len(s.docs))
	for _, id := range s.Ids() {
		docs = append(docs, s.docs[id])
	}
	return s.registry.Add(q, o, docs)
}

// PauseObservers defers notifications. Calls nest.
func (s *Store) PauseObservers() {
	s.registry.Pause()
}

// ResumeObservers closes one pause level, flushing at depth zero. An
// unmatched call does nothing.
func (s *Store) ResumeObservers() {
	s.registry.Resume()
}

func (s *Store) ObserversPaused() bool {
	return s.registry.Paused()
}
