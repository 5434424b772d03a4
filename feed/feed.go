// Package feed serializes inbound batches and local writes onto a single
// goroutine that owns the replication session.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cheggaaa/mb/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/anyproto/any-mirror/app"
	"github.com/anyproto/any-mirror/app/debugstat"
	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/metric"
	"github.com/anyproto/any-mirror/mirror"
	"github.com/anyproto/any-mirror/replication"
)

const CName = "mirror.feed"

var log = logger.NewNamed(CName)

var (
	ErrClosed   = errors.New("feed: closed")
	ErrDiverged = errors.New("feed: mirror diverged, waiting for a reset batch")
)

const defaultQueueSize = 1024

// Batch is one unit of the authoritative stream
type Batch struct {
	Reset    bool
	Messages []replication.Message
}

type Stats struct {
	Applied  uint64 `yaml:"applied"`
	Dropped  uint64 `yaml:"dropped"`
	Failed   uint64 `yaml:"failed"`
	Diverged bool   `yaml:"diverged"`
}

func New() Feed {
	return new(feed)
}

type Feed interface {
	// Push enqueues the batch and returns without waiting for it to be applied
	Push(ctx context.Context, batch Batch) error
	// Apply enqueues the batch and waits for the result
	Apply(ctx context.Context, batch Batch) error
	// Exec runs fn on the loop goroutine between batches
	Exec(ctx context.Context, fn func(s *replication.Session) error) error
	Stats() Stats
	app.ComponentRunnable
}

type sessionSource interface {
	Session() *replication.Session
}

type item struct {
	batch  *Batch
	exec   func(s *replication.Session) error
	done   chan error
	queued time.Time
}

type feed struct {
	session  *replication.Session
	metric   metric.Metric
	stat     debugstat.StatService
	queue    *mb.MB[item]
	loopDone chan struct{}
	closeMu  sync.Mutex
	closed   bool
	running  bool

	applied  atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
	diverged atomic.Bool
}

func (f *feed) Init(a *app.App) (err error) {
	size := a.MustComponent("config").(configGetter).GetFeed().QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	f.session = a.MustComponent(mirror.CName).(sessionSource).Session()
	f.metric, _ = a.Component(metric.CName).(metric.Metric)
	f.stat, _ = a.Component(debugstat.CName).(debugstat.StatService)
	f.queue = mb.New[item](size)
	f.loopDone = make(chan struct{})
	return nil
}

func (f *feed) Name() (name string) {
	return CName
}

func (f *feed) Run(ctx context.Context) (err error) {
	if f.stat != nil {
		f.stat.AddProvider(f)
	}
	f.running = true
	go f.loop()
	return nil
}

func (f *feed) Push(ctx context.Context, batch Batch) error {
	return f.add(ctx, item{batch: &batch, queued: time.Now()})
}

func (f *feed) Apply(ctx context.Context, batch Batch) error {
	return f.wait(ctx, item{batch: &batch, done: make(chan error, 1), queued: time.Now()})
}

func (f *feed) Exec(ctx context.Context, fn func(s *replication.Session) error) error {
	return f.wait(ctx, item{exec: fn, done: make(chan error, 1), queued: time.Now()})
}

func (f *feed) wait(ctx context.Context, it item) error {
	if err := f.add(ctx, it); err != nil {
		return err
	}
	select {
	case err := <-it.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-f.loopDone:
		// the item may have been handled right before the loop exited
		select {
		case err := <-it.done:
			return err
		default:
			return ErrClosed
		}
	}
}

func (f *feed) add(ctx context.Context, it item) error {
	f.closeMu.Lock()
	closed := f.closed
	f.closeMu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := f.queue.Add(ctx, it); err != nil {
		if errors.Is(err, mb.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (f *feed) Stats() Stats {
	return Stats{
		Applied:  f.applied.Load(),
		Dropped:  f.dropped.Load(),
		Failed:   f.failed.Load(),
		Diverged: f.diverged.Load(),
	}
}

func (f *feed) ProvideStat() any {
	return f.Stats()
}

func (f *feed) StatId() string {
	return f.session.Store().Name()
}

func (f *feed) StatType() string {
	return CName
}

func (f *feed) loop() {
	defer close(f.loopDone)
	for {
		it, err := f.queue.WaitOne(context.Background())
		if err != nil {
			return
		}
		var res error
		if it.exec != nil {
			res = it.exec(f.session)
		} else {
			res = f.handleBatch(it)
		}
		if it.done != nil {
			it.done <- res
		}
	}
}

func (f *feed) handleBatch(it item) (err error) {
	batch := it.batch
	if f.diverged.Load() && !batch.Reset {
		f.dropped.Inc()
		return ErrDiverged
	}
	start := time.Now()
	if err = f.applyBatch(batch); err != nil {
		f.failed.Inc()
		if replication.IsProtocolViolation(err) {
			f.diverged.Store(true)
		}
		log.Error("batch failed", zap.Int("messages", len(batch.Messages)), zap.Bool("reset", batch.Reset), zap.Error(err))
		return err
	}
	if batch.Reset {
		f.diverged.Store(false)
	}
	f.applied.Inc()
	if f.metric != nil {
		f.metric.BatchLog(context.Background(),
			metric.Mirror(f.session.Store().Name()),
			metric.BatchSize(len(batch.Messages)),
			metric.Reset(batch.Reset),
			metric.QueueDur(start.Sub(it.queued)),
			metric.TotalDur(time.Since(it.queued)),
		)
	}
	return nil
}

func (f *feed) applyBatch(batch *Batch) (err error) {
	if err = f.session.BeginUpdate(len(batch.Messages), batch.Reset); err != nil {
		return err
	}
	defer func() {
		if endErr := f.session.EndUpdate(); err == nil {
			err = endErr
		}
	}()
	for _, msg := range batch.Messages {
		if err = f.session.Update(msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *feed) Close(ctx context.Context) (err error) {
	f.closeMu.Lock()
	if f.closed {
		f.closeMu.Unlock()
		return nil
	}
	f.closed = true
	f.closeMu.Unlock()
	if f.queue == nil {
		return nil
	}
	_ = f.queue.Close()
	if f.stat != nil {
		f.stat.RemoveProvider(f)
	}
	if !f.running {
		return nil
	}
	select {
	case <-f.loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
