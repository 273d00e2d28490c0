package events

import (
	"encoding/json"
	"fmt"

	"saga-coordinator/internal/domain/saga"

	"github.com/google/uuid"
)

// The closed set of lifecycle event types. The state machine matches
// exhaustively over these; adding a kind means extending every switch.
const (
	TypeSagaStarted        = "SagaStarted"
	TypeSagaEnded          = "SagaEnded"
	TypeTxStarted          = "TxStarted"
	TypeTxEnded            = "TxEnded"
	TypeTxAborted          = "TxAborted"
	TypeTxCompensated      = "TxCompensated"
	TypeTxCompensateFailed = "TxCompensateFailed"
)

// SagaStartedData carries the full submitted definition so the graph can be
// rebuilt from the log alone, both for status queries and crash recovery.
type SagaStartedData struct {
	SagaID         string `json:"saga_id"`
	DefinitionJSON string `json:"definition_json"`
}

type SagaStarted struct {
	*BaseEvent
}

func NewSagaStarted(sagaID, definitionJSON string, metadata EventMetadata, sequenceNumber int64) *SagaStarted {
	data := SagaStartedData{
		SagaID:         sagaID,
		DefinitionJSON: definitionJSON,
	}

	base := NewBaseEvent(uuid.New().String(), TypeSagaStarted, sagaID, data, metadata, sequenceNumber)
	return &SagaStarted{BaseEvent: base}
}

// SagaEndedData closes an instance; Outcome is the terminal global state.
type SagaEndedData struct {
	SagaID  string `json:"saga_id"`
	Outcome string `json:"outcome"`
}

type SagaEnded struct {
	*BaseEvent
}

func NewSagaEnded(sagaID, outcome string, metadata EventMetadata, sequenceNumber int64) *SagaEnded {
	data := SagaEndedData{
		SagaID:  sagaID,
		Outcome: outcome,
	}

	base := NewBaseEvent(uuid.New().String(), TypeSagaEnded, sagaID, data, metadata, sequenceNumber)
	return &SagaEnded{BaseEvent: base}
}

// TxStartedData records a forward invocation about to be issued. The
// compensation reference travels with the event so rollback never needs the
// definition to be re-parsed.
type TxStartedData struct {
	SagaID       string         `json:"saga_id"`
	RequestID    string         `json:"request_id"`
	ParentTxID   string         `json:"parent_tx_id,omitempty"`
	ServiceName  string         `json:"service_name,omitempty"`
	Compensation saga.Operation `json:"compensation"`
	Payload      string         `json:"payload,omitempty"`
}

type TxStarted struct {
	*BaseEvent
}

func NewTxStarted(sagaID string, request saga.SagaRequest, parentTxID, payload string, metadata EventMetadata, sequenceNumber int64) *TxStarted {
	data := TxStartedData{
		SagaID:       sagaID,
		RequestID:    request.ID,
		ParentTxID:   parentTxID,
		ServiceName:  request.ServiceName,
		Compensation: request.Compensation,
		Payload:      payload,
	}

	base := NewBaseEvent(uuid.New().String(), TypeTxStarted, sagaID, data, metadata, sequenceNumber)
	return &TxStarted{BaseEvent: base}
}

type TxEndedData struct {
	SagaID    string `json:"saga_id"`
	RequestID string `json:"request_id"`
	Response  string `json:"response,omitempty"`
}

type TxEnded struct {
	*BaseEvent
}

func NewTxEnded(sagaID, requestID, response string, metadata EventMetadata, sequenceNumber int64) *TxEnded {
	data := TxEndedData{
		SagaID:    sagaID,
		RequestID: requestID,
		Response:  response,
	}

	base := NewBaseEvent(uuid.New().String(), TypeTxEnded, sagaID, data, metadata, sequenceNumber)
	return &TxEnded{BaseEvent: base}
}

// TxAbortedData records a failed or timed-out forward action; Response holds
// the failure detail surfaced to status queries.
type TxAbortedData struct {
	SagaID    string `json:"saga_id"`
	RequestID string `json:"request_id"`
	Response  string `json:"response,omitempty"`
}

type TxAborted struct {
	*BaseEvent
}

func NewTxAborted(sagaID, requestID, response string, metadata EventMetadata, sequenceNumber int64) *TxAborted {
	data := TxAbortedData{
		SagaID:    sagaID,
		RequestID: requestID,
		Response:  response,
	}

	base := NewBaseEvent(uuid.New().String(), TypeTxAborted, sagaID, data, metadata, sequenceNumber)
	return &TxAborted{BaseEvent: base}
}

type TxCompensatedData struct {
	SagaID    string `json:"saga_id"`
	RequestID string `json:"request_id"`
}

type TxCompensated struct {
	*BaseEvent
}

func NewTxCompensated(sagaID, requestID string, metadata EventMetadata, sequenceNumber int64) *TxCompensated {
	data := TxCompensatedData{
		SagaID:    sagaID,
		RequestID: requestID,
	}

	base := NewBaseEvent(uuid.New().String(), TypeTxCompensated, sagaID, data, metadata, sequenceNumber)
	return &TxCompensated{BaseEvent: base}
}

// TxCompensateFailedData records retry exhaustion; the instance needs manual
// intervention afterwards.
type TxCompensateFailedData struct {
	SagaID    string `json:"saga_id"`
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
	Attempts  int    `json:"attempts"`
}

type TxCompensateFailed struct {
	*BaseEvent
}

func NewTxCompensateFailed(sagaID, requestID, reason string, attempts int, metadata EventMetadata, sequenceNumber int64) *TxCompensateFailed {
	data := TxCompensateFailedData{
		SagaID:    sagaID,
		RequestID: requestID,
		Reason:    reason,
		Attempts:  attempts,
	}

	base := NewBaseEvent(uuid.New().String(), TypeTxCompensateFailed, sagaID, data, metadata, sequenceNumber)
	return &TxCompensateFailed{BaseEvent: base}
}

// DecodeData unmarshals a serialized payload into the typed struct for the
// given event type. Shared by the event store and the event bus so the two
// reconstruct identical folds.
func DecodeData(eventType string, raw []byte) (interface{}, error) {
	switch eventType {
	case TypeSagaStarted:
		var data SagaStartedData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s data: %w", eventType, err)
		}
		return data, nil
	case TypeSagaEnded:
		var data SagaEndedData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s data: %w", eventType, err)
		}
		return data, nil
	case TypeTxStarted:
		var data TxStartedData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s data: %w", eventType, err)
		}
		return data, nil
	case TypeTxEnded:
		var data TxEndedData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s data: %w", eventType, err)
		}
		return data, nil
	case TypeTxAborted:
		var data TxAbortedData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s data: %w", eventType, err)
		}
		return data, nil
	case TypeTxCompensated:
		var data TxCompensatedData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s data: %w", eventType, err)
		}
		return data, nil
	case TypeTxCompensateFailed:
		var data TxCompensateFailedData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s data: %w", eventType, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}
