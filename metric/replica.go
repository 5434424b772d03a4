package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anyproto/any-mirror/replication"
)

type replicaVecs struct {
	batches    *prometheus.CounterVec
	messages   *prometheus.CounterVec
	violations *prometheus.CounterVec
	duration   *prometheus.SummaryVec
	size       *prometheus.SummaryVec
}

func newReplicaVecs(reg prometheus.Registerer) (*replicaVecs, error) {
	v := &replicaVecs{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mirror",
			Subsystem: "session",
			Name:      "batches_total",
			Help:      "applied batches",
		}, []string{"mirror", "reset"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mirror",
			Subsystem: "session",
			Name:      "messages_total",
			Help:      "applied messages by kind",
		}, []string{"mirror", "kind"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mirror",
			Subsystem: "session",
			Name:      "violations_total",
			Help:      "protocol violations by reason",
		}, []string{"mirror", "reason"}),
		duration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: "mirror",
			Subsystem: "session",
			Name:      "batch_duration_seconds",
			Help:      "batch apply duration",
			Objectives: map[float64]float64{
				0.5:  0.5,
				0.85: 0.01,
				0.95: 0.0005,
				0.99: 0.0001,
			},
		}, []string{"mirror"}),
		size: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  "mirror",
			Subsystem:  "session",
			Name:       "batch_size",
			Help:       "messages applied per batch",
			Objectives: map[float64]float64{0.5: 0.05, 0.99: 0.001},
		}, []string{"mirror"}),
	}
	for _, c := range []prometheus.Collector{v.batches, v.messages, v.violations, v.duration, v.size} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *replicaVecs) forMirror(name string) replication.Metrics {
	labels := prometheus.Labels{"mirror": name}
	return &replicaMetrics{
		batches:    v.batches.MustCurryWith(labels),
		messages:   v.messages.MustCurryWith(labels),
		violations: v.violations.MustCurryWith(labels),
		duration:   v.duration.WithLabelValues(name),
		size:       v.size.WithLabelValues(name),
	}
}

type replicaMetrics struct {
	batches    *prometheus.CounterVec
	messages   *prometheus.CounterVec
	violations *prometheus.CounterVec
	duration   prometheus.Observer
	size       prometheus.Observer
}

func (r *replicaMetrics) BatchApplied(size int, reset bool, dur time.Duration) {
	r.batches.WithLabelValues(strconv.FormatBool(reset)).Inc()
	r.duration.Observe(dur.Seconds())
	r.size.Observe(float64(size))
}

func (r *replicaMetrics) MessageApplied(kind replication.MessageKind) {
	r.messages.WithLabelValues(string(kind)).Inc()
}

func (r *replicaMetrics) ProtocolViolation(reason string) {
	r.violations.WithLabelValues(reason).Inc()
}
