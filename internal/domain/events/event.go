package events

import "time"

// Event is one immutable, timestamped fact about a saga instance. The event
// log is the single source of truth; all in-memory state is a fold over the
// event sequence of a globalTxId.
type Event interface {
	ID() string
	Type() string
	SagaID() string
	Data() interface{}
	Metadata() EventMetadata
	SequenceNumber() int64
	Timestamp() time.Time
}

type EventMetadata struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	TraceID       string `json:"trace_id,omitempty"`
	Timestamp     time.Time
}

type BaseEvent struct {
	eventID        string
	eventType      string
	sagaID         string
	data           interface{}
	metadata       EventMetadata
	sequenceNumber int64
	timestamp      time.Time
}

func (e *BaseEvent) ID() string {
	return e.eventID
}

func (e *BaseEvent) Type() string {
	return e.eventType
}

func (e *BaseEvent) SagaID() string {
	return e.sagaID
}

func (e *BaseEvent) Data() interface{} {
	return e.data
}

func (e *BaseEvent) Metadata() EventMetadata {
	return e.metadata
}

func (e *BaseEvent) SequenceNumber() int64 {
	return e.sequenceNumber
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

func NewBaseEvent(eventID, eventType, sagaID string, data interface{}, metadata EventMetadata, sequenceNumber int64) *BaseEvent {
	return NewBaseEventWithTimestamp(eventID, eventType, sagaID, data, metadata, sequenceNumber, time.Now())
}

func NewBaseEventWithTimestamp(eventID, eventType, sagaID string, data interface{}, metadata EventMetadata, sequenceNumber int64, timestamp time.Time) *BaseEvent {
	return &BaseEvent{
		eventID:        eventID,
		eventType:      eventType,
		sagaID:         sagaID,
		data:           data,
		metadata:       metadata,
		sequenceNumber: sequenceNumber,
		timestamp:      timestamp,
	}
}
