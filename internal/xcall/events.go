package xcall

import "math/big"

// Event types mirror spec §6's event table. The dispatcher never
// prescribes how a host surfaces these; EventSink is the seam.
type CallMessageSentEvent struct {
	From string
	To   string
	Sn   *big.Int
}

type CallMessageEvent struct {
	From  string
	To    string
	Sn    *big.Int
	ReqID *big.Int
	Data  []byte
}

type ResponseMessageEvent struct {
	Sn   *big.Int
	Code uint8
}

type RollbackMessageEvent struct {
	Sn *big.Int
}

type RollbackExecutedEvent struct {
	Sn   *big.Int
	Code uint8
}

// EventSink receives dispatcher events. Emit must not block or fail the
// call that produced the event.
type EventSink interface {
	Emit(event any)
}

// RecordingSink is an EventSink that just appends to a slice, keeping the
// exact event sequence for inspection; xcalld start uses it as its sink.
type RecordingSink struct {
	Events []any
}

func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

func (s *RecordingSink) Emit(event any) { s.Events = append(s.Events, event) }

// noopSink is the default EventSink when none is supplied.
type noopSink struct{}

func (noopSink) Emit(any) {}
