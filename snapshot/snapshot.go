// Package snapshot persists mirror contents in an any-store database so a
// mirror can warm start before the first reset batch arrives.
package snapshot

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	anystore "github.com/anyproto/any-store"
	"github.com/anyproto/any-store/anyenc"
	"github.com/cespare/xxhash"
	"go.uber.org/zap"

	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/document"
)

var ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")

var log = logger.NewNamed("mirror.snapshot")

const metaCollection = "mirror_meta"

var arenaPool = &anyenc.ArenaPool{}

type Store struct {
	db anystore.DB
}

// Open opens or creates the database file at path
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := anystore.Open(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func New(db anystore.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func collectionName(mirror string) string {
	return "mirror_" + mirror
}

// Save overwrites the snapshot of mirror with docs in a single transaction
func (s *Store) Save(ctx context.Context, mirror string, docs []document.Document) (err error) {
	coll, err := s.db.Collection(ctx, collectionName(mirror))
	if err != nil {
		return err
	}
	meta, err := s.db.Collection(ctx, metaCollection)
	if err != nil {
		return err
	}
	tx, err := s.db.WriteTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	txCtx := tx.Context()

	keep := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		keep[string(doc.Id)] = struct{}{}
	}
	stale, err := s.ids(txCtx, coll)
	if err != nil {
		return err
	}
	for _, id := range stale {
		if _, ok := keep[id]; ok {
			continue
		}
		if err = coll.DeleteId(txCtx, id); err != nil {
			return err
		}
	}

	arena := arenaPool.Get()
	defer arenaPool.Put(arena)
	var sum uint64
	for _, doc := range docs {
		data, err := document.MarshalFields(doc.Fields)
		if err != nil {
			return fmt.Errorf("encode %s: %w", doc.Id, err)
		}
		sum ^= rowChecksum(string(doc.Id), data)
		arena.Reset()
		obj := arena.NewObject()
		obj.Set("id", arena.NewString(string(doc.Id)))
		obj.Set("d", arena.NewBinary(data))
		if err = coll.UpsertOne(txCtx, obj); err != nil {
			return err
		}
	}
	arena.Reset()
	obj := arena.NewObject()
	obj.Set("id", arena.NewString(mirror))
	obj.Set("sum", arena.NewString(strconv.FormatUint(sum, 16)))
	obj.Set("count", arena.NewNumberInt(len(docs)))
	if err = meta.UpsertOne(txCtx, obj); err != nil {
		return err
	}
	log.Debug("snapshot saved", zap.String("mirror", mirror), zap.Int("docs", len(docs)))
	return nil
}

// Load returns the documents of the mirror snapshot sorted by id. It returns
// nil without error when the mirror was never saved.
func (s *Store) Load(ctx context.Context, mirror string) (docs []document.Document, err error) {
	meta, err := s.db.Collection(ctx, metaCollection)
	if err != nil {
		return nil, err
	}
	metaDoc, err := meta.FindId(ctx, mirror)
	if errors.Is(err, anystore.ErrDocNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	expected := metaDoc.Value().GetString("sum")

	coll, err := s.db.Collection(ctx, collectionName(mirror))
	if err != nil {
		return nil, err
	}
	var sum uint64
	err = scan(ctx, coll, func(doc anystore.Doc) error {
		id := doc.Value().GetString("id")
		data := doc.Value().GetBytes("d")
		sum ^= rowChecksum(id, data)
		fields, err := document.UnmarshalFields(data)
		if err != nil {
			return fmt.Errorf("decode %s: %w", id, err)
		}
		docs = append(docs, document.Document{Id: document.Id(id), Fields: fields})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if strconv.FormatUint(sum, 16) != expected {
		return nil, fmt.Errorf("%w: mirror %s", ErrChecksumMismatch, mirror)
	}
	slices.SortFunc(docs, func(a, b document.Document) int {
		return cmp.Compare(a.Id, b.Id)
	})
	return docs, nil
}

func (s *Store) ids(ctx context.Context, coll anystore.Collection) (ids []string, err error) {
	err = scan(ctx, coll, func(doc anystore.Doc) error {
		ids = append(ids, doc.Value().GetString("id"))
		return nil
	})
	return ids, err
}

// scan calls fn for every row of coll and fails on any iteration error
func scan(ctx context.Context, coll anystore.Collection, fn func(doc anystore.Doc) error) (err error) {
	iter, err := coll.Find(nil).Iter(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := iter.Close(); err == nil {
			err = closeErr
		}
	}()
	for iter.Next() {
		doc, err := iter.Doc()
		if err != nil {
			return err
		}
		if err = fn(doc); err != nil {
			return err
		}
	}
	return iter.Err()
}

// rowChecksum is combined with xor, so the set checksum does not depend on row order
func rowChecksum(id string, data []byte) uint64 {
	buf := make([]byte, 0, len(id)+1+len(data))
	buf = append(buf, id...)
	buf = append(buf, 0)
	buf = append(buf, data...)
	return xxhash.Sum64(buf)
}
