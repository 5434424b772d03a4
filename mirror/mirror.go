// Package mirror wires one replicated document store into the app.
package mirror

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/anyproto/any-mirror/app"
	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/docstore"
	"github.com/anyproto/any-mirror/idgen"
	"github.com/anyproto/any-mirror/metric"
	"github.com/anyproto/any-mirror/replication"
	"github.com/anyproto/any-mirror/snapshot"
)

const CName = "mirror.service"

var log = logger.NewNamed(CName)

var ErrUnknownReplacePolicy = errors.New("mirror: unknown replace policy")

func New() Service {
	return new(service)
}

type Service interface {
	// Session must be used from a single goroutine, see feed.Exec
	Session() *replication.Session
	Store() *docstore.Store
	// SaveSnapshot writes the current documents when a snapshot path is configured
	SaveSnapshot(ctx context.Context) error
	app.ComponentRunnable
}

type service struct {
	conf      Config
	session   *replication.Session
	snapshots *snapshot.Store
}

func (s *service) Init(a *app.App) (err error) {
	s.conf = a.MustComponent("config").(configGetter).GetMirror()
	gen, err := idgen.New(idgen.Strategy(s.conf.IdStrategy))
	if err != nil {
		return err
	}
	policy, err := s.conf.replacePolicy()
	if err != nil {
		return err
	}
	opts := []replication.Option{replication.WithReplacePolicy(policy)}
	if m, ok := a.Component(metric.CName).(metric.Metric); ok {
		opts = append(opts, replication.WithMetrics(m.ReplicaMetrics(s.conf.Name)))
	}
	store := docstore.New(docstore.WithName(s.conf.Name), docstore.WithIdGenerator(gen))
	s.session = replication.NewSession(store, opts...)
	return nil
}

func (s *service) Name() (name string) {
	return CName
}

func (s *service) Run(ctx context.Context) (err error) {
	if s.conf.SnapshotPath == "" {
		return nil
	}
	if s.snapshots, err = snapshot.Open(ctx, s.conf.SnapshotPath); err != nil {
		return err
	}
	docs, err := s.snapshots.Load(ctx, s.conf.Name)
	if errors.Is(err, snapshot.ErrChecksumMismatch) {
		log.Warn("snapshot is damaged, starting empty", zap.String("mirror", s.conf.Name), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	msgs := make([]replication.Message, 0, len(docs))
	for _, doc := range docs {
		msgs = append(msgs, replication.Added{Id: doc.Id, Fields: doc.Fields})
	}
	if err = s.apply(msgs); err != nil {
		return err
	}
	log.Info("mirror restored from snapshot", zap.String("mirror", s.conf.Name), zap.Int("docs", len(docs)))
	return nil
}

func (s *service) apply(msgs []replication.Message) (err error) {
	if err = s.session.BeginUpdate(len(msgs), true); err != nil {
		return err
	}
	defer func() {
		if endErr := s.session.EndUpdate(); err == nil {
			err = endErr
		}
	}()
	for _, msg := range msgs {
		if err = s.session.Update(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Session() *replication.Session {
	return s.session
}

func (s *service) Store() *docstore.Store {
	return s.session.Store()
}

func (s *service) SaveSnapshot(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Save(ctx, s.conf.Name, s.Store().Find(nil))
}

func (s *service) Close(ctx context.Context) (err error) {
	if s.snapshots == nil {
		return nil
	}
	if err = s.SaveSnapshot(ctx); err != nil {
		_ = s.snapshots.Close()
		return err
	}
	return s.snapshots.Close()
}
