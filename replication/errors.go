package replication

import (
	"errors"
	"fmt"

	"github.com/anyproto/any-mirror/document"
)

var (
	ErrProtocolViolation = errors.New("protocol violation")
	ErrBatchInProgress   = errors.New("replication: batch already in progress")
	ErrInvalidBatchSize  = errors.New("replication: invalid batch size")
)

const (
	ReasonUnexpectedExisting = "unexpected existing document"
	ReasonExpectedExisting   = "expected existing document"
	ReasonUnrecognized       = "unrecognized message"
	ReasonMalformedId        = "malformed id"
	ReasonOperatorFields     = "replacement contains update operators"
)

// ProtocolError reports a message inconsistent with the mirror state.
// It matches ErrProtocolViolation with errors.Is.
type ProtocolError struct {
	Reason string
	Id     document.Id
	Kind   MessageKind
}

func violation(msg Message, reason string) error {
	pe := &ProtocolError{Reason: reason, Kind: KindOf(msg)}
	if msg != nil {
		pe.Id = msg.DocumentId()
	}
	return pe
}

// unrecognized does not ask nil pointers of known message types for their id
func unrecognized(msg Message) error {
	pe := &ProtocolError{Reason: ReasonUnrecognized, Kind: KindOf(msg)}
	if msg != nil && pe.Kind == KindUnknown {
		pe.Id = msg.DocumentId()
	}
	return pe
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation: %s: %s %q", e.Reason, e.Kind, e.Id)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocolViolation
}

// IsProtocolViolation reports whether err is caused by the message stream
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}
