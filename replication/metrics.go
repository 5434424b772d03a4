package replication

import "time"

// Metrics receives session events. Implementations must not call back into the session.
type Metrics interface {
	BatchApplied(size int, reset bool, dur time.Duration)
	MessageApplied(kind MessageKind)
	ProtocolViolation(reason string)
}

type noopMetrics struct{}

func (noopMetrics) BatchApplied(int, bool, time.Duration) {}
func (noopMetrics) MessageApplied(MessageKind)            {}
func (noopMetrics) ProtocolViolation(string)              {}
