package metric

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/anyproto/any-mirror/app"
	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/replication"
)

const CName = "common.metric"

var log = logger.NewNamed(CName)

func New() Metric {
	return new(metric)
}

type Metric interface {
	Registry() *prometheus.Registry
	// ReplicaMetrics returns session metrics labeled with the mirror name
	ReplicaMetrics(mirror string) replication.Metrics
	BatchLog(ctx context.Context, fields ...zap.Field)
	app.ComponentRunnable
}

type metric struct {
	registry *prometheus.Registry
	replica  *replicaVecs
	batchLog logger.CtxLogger
	config   Config
	server   *http.Server
	a        *app.App
}

func (m *metric) Init(a *app.App) (err error) {
	m.a = a
	m.registry = prometheus.NewRegistry()
	m.config = a.MustComponent("config").(configSource).GetMetric()
	m.batchLog = logger.NewNamed("batchLog")
	if m.replica, err = newReplicaVecs(m.registry); err != nil {
		return err
	}
	return nil
}

func (m *metric) Name() string {
	return CName
}

func (m *metric) Run(ctx context.Context) (err error) {
	if err = m.registry.Register(collectors.NewBuildInfoCollector()); err != nil {
		return err
	}
	if err = m.registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err = m.registry.Register(newVersionsCollector(m.a)); err != nil {
		return err
	}
	if m.config.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
		m.server = &http.Server{Addr: m.config.Addr, Handler: mux}
		var errCh = make(chan error, 1)
		go func() {
			errCh <- m.server.ListenAndServe()
		}()
		select {
		case err = <-errCh:
			return err
		case <-time.After(time.Second / 5):
		}
		log.Info("metrics server started", zap.String("addr", m.config.Addr))
	}
	return
}

func (m *metric) Registry() *prometheus.Registry {
	return m.registry
}

func (m *metric) ReplicaMetrics(mirror string) replication.Metrics {
	if m == nil || m.replica == nil {
		return nil
	}
	return m.replica.forMirror(mirror)
}

func (m *metric) Close(ctx context.Context) (err error) {
	if m.server == nil {
		return
	}
	if err = m.server.Shutdown(ctx); errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return
}
