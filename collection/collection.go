// Package collection is the client facade over a mirror: reads, observers and
// speculative local writes that can be rolled back when the authoritative
// source rejects them.
package collection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/docstore"
	"github.com/anyproto/any-mirror/document"
	"github.com/anyproto/any-mirror/observer"
	"github.com/anyproto/any-mirror/originals"
	"github.com/anyproto/any-mirror/replication"
)

var ErrNotFound = errors.New("collection: document not found")

var log = logger.NewNamed("mirror.collection")

// Executor runs fn on the goroutine owning the session, feed.Feed implements it
type Executor interface {
	Exec(ctx context.Context, fn func(s *replication.Session) error) error
}

type Option func(c *Collection)

func WithExecutor(e Executor) Option {
	return func(c *Collection) {
		c.exec = e
	}
}

type Collection struct {
	session *replication.Session
	exec    Executor
}

// New builds a collection over session. Without an executor every call runs
// on the caller goroutine.
func New(session *replication.Session, opts ...Option) *Collection {
	c := &Collection{session: session}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection) Name() string {
	return c.session.Store().Name()
}

// NewId returns a fresh id from the store generator
func (c *Collection) NewId() document.Id {
	return c.session.Store().IdGenerator().NewId()
}

func (c *Collection) run(ctx context.Context, fn func(s *replication.Session) error) error {
	if c.exec == nil {
		return fn(c.session)
	}
	return c.exec.Exec(ctx, fn)
}

func (c *Collection) FindOne(ctx context.Context, id document.Id) (doc document.Document, err error) {
	err = c.run(ctx, func(s *replication.Session) error {
		var ok bool
		if doc, ok = s.FindOne(id); !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	})
	return
}

// Find returns matching documents sorted by id, nil match selects all
func (c *Collection) Find(ctx context.Context, match func(doc document.Document) bool) (docs []document.Document, err error) {
	err = c.run(ctx, func(s *replication.Session) error {
		docs = s.Store().Find(match)
		return nil
	})
	return
}

func (c *Collection) Observe(ctx context.Context, q observer.Query, o observer.Observer) (h *observer.Handle, err error) {
	err = c.run(ctx, func(s *replication.Session) error {
		h = s.Store().Observe(q, o)
		return nil
	})
	return
}

// Speculate applies the writes of fn locally inside an originals frame.
// Observers see all writes of fn at once. When fn fails its writes are
// reverted and the error is returned. On success the frame is returned, pass
// it to Rollback if the source rejects the writes.
func (c *Collection) Speculate(ctx context.Context, fn func(w *Writer) error) (frame originals.Frame, err error) {
	err = c.run(ctx, func(s *replication.Session) (err error) {
		store := s.Store()
		store.PauseObservers()
		defer store.ResumeObservers()

		s.SaveOriginals()
		fnErr := fn(&Writer{store: store})
		if frame, err = s.RetrieveOriginals(); err != nil {
			return err
		}
		if fnErr != nil {
			if err = s.Revert(frame); err != nil {
				return errors.Join(fnErr, fmt.Errorf("revert: %w", err))
			}
			frame = nil
			return fnErr
		}
		return nil
	})
	return
}

// Rollback restores the state captured by frame
func (c *Collection) Rollback(ctx context.Context, frame originals.Frame) error {
	if len(frame) == 0 {
		return nil
	}
	return c.run(ctx, func(s *replication.Session) error {
		log.Debug("rollback speculative writes", zap.String("collection", s.Store().Name()), zap.Int("docs", len(frame)))
		return s.Revert(frame)
	})
}

// Writer mutates the store inside Speculate
type Writer struct {
	store *docstore.Store
}

// Insert stores fields under a new id
func (w *Writer) Insert(fields document.Fields) (document.Id, error) {
	id := w.store.IdGenerator().NewId()
	if err := w.store.Insert(document.Document{Id: id, Fields: fields}); err != nil {
		return "", err
	}
	return id, nil
}

func (w *Writer) InsertWithId(id document.Id, fields document.Fields) error {
	return w.store.Insert(document.Document{Id: id, Fields: fields})
}

// Update sets and unsets fields, a value of document.Absent in set also unsets
func (w *Writer) Update(id document.Id, set document.Fields, unset ...string) error {
	return notFound(w.store.Update(id, set, unset), id)
}

func (w *Writer) Replace(id document.Id, fields document.Fields) error {
	return notFound(w.store.Replace(id, fields), id)
}

func (w *Writer) Remove(id document.Id) error {
	return notFound(w.store.Remove(id), id)
}

func notFound(err error, id document.Id) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
