package saga

import (
	"errors"
	"fmt"

	"saga-coordinator/internal/domain/events"
	"saga-coordinator/internal/domain/saga"
)

// ErrProtocolViolation marks an event that is not valid in the transaction's
// current state. Duplicates are not violations; they fold to no-ops.
var ErrProtocolViolation = errors.New("event violates transaction protocol")

// SubTransaction tracks one request's progress through the forward and
// compensation phases.
type SubTransaction struct {
	RequestID    string
	ParentTxID   string
	ServiceName  string
	State        saga.SubTxState
	Compensation saga.Operation
	Response     string
	Error        string
}

// GlobalTransaction is the in-memory fold over one instance's event sequence.
// It is not safe for concurrent use; the owning Instance serializes access.
type GlobalTransaction struct {
	SagaID         string
	State          saga.GlobalTxState
	DefinitionJSON string

	subTxs     map[string]*SubTransaction
	endedOrder []string
	applied    map[string]bool
}

func NewGlobalTransaction(sagaID string) *GlobalTransaction {
	return &GlobalTransaction{
		SagaID:  sagaID,
		subTxs:  make(map[string]*SubTransaction),
		applied: make(map[string]bool),
	}
}

// Sub returns the sub-transaction for a request id, if any.
func (t *GlobalTransaction) Sub(requestID string) (*SubTransaction, bool) {
	sub, ok := t.subTxs[requestID]
	return sub, ok
}

// SubTransactions returns a snapshot of all sub-transactions keyed by
// request id.
func (t *GlobalTransaction) SubTransactions() map[string]SubTransaction {
	out := make(map[string]SubTransaction, len(t.subTxs))
	for id, sub := range t.subTxs {
		out[id] = *sub
	}
	return out
}

// EndedOrder returns the request ids in commit order. Compensation walks this
// slice backwards.
func (t *GlobalTransaction) EndedOrder() []string {
	return append([]string(nil), t.endedOrder...)
}

// Validate checks whether an event can be applied in the current state
// without mutating anything. Used for externally reported events so that
// violating events never reach the log.
func (t *GlobalTransaction) Validate(event events.Event) error {
	if t.applied[event.ID()] {
		return nil
	}

	switch data := event.Data().(type) {
	case events.SagaStartedData:
		if t.State != "" && t.State != saga.GlobalTxStarted {
			return fmt.Errorf("%w: saga %s already past start", ErrProtocolViolation, t.SagaID)
		}
		return nil
	case events.SagaEndedData:
		outcome := saga.GlobalTxState(data.Outcome)
		if t.State == outcome {
			return nil
		}
		if !t.State.CanTransitionTo(outcome) {
			return fmt.Errorf("%w: cannot end saga %s with outcome %s from state %s",
				ErrProtocolViolation, t.SagaID, outcome, t.State)
		}
		return nil
	case events.TxStartedData:
		if t.State.IsTerminal() {
			return fmt.Errorf("%w: saga %s is already %s", ErrProtocolViolation, t.SagaID, t.State)
		}
		return nil
	case events.TxEndedData:
		return t.validateSubTransition(data.RequestID, saga.SubTxEnded)
	case events.TxAbortedData:
		return t.validateSubTransition(data.RequestID, saga.SubTxAborted)
	case events.TxCompensatedData:
		return t.validateCompensationOutcome(data.RequestID, saga.SubTxCompensated)
	case events.TxCompensateFailedData:
		return t.validateCompensationOutcome(data.RequestID, saga.SubTxCompensateFailed)
	default:
		return fmt.Errorf("%w: unknown event type %s", ErrProtocolViolation, event.Type())
	}
}

func (t *GlobalTransaction) validateSubTransition(requestID string, target saga.SubTxState) error {
	sub, ok := t.subTxs[requestID]
	if !ok {
		return fmt.Errorf("%w: request %q was never started", ErrProtocolViolation, requestID)
	}
	if sub.State == target {
		return nil
	}
	if !sub.State.CanTransitionTo(target) {
		return fmt.Errorf("%w: request %q cannot move from %s to %s",
			ErrProtocolViolation, requestID, sub.State, target)
	}
	return nil
}

// Compensation outcomes are recorded without an explicit compensating event,
// so ENDED and COMPENSATING are both acceptable starting points.
func (t *GlobalTransaction) validateCompensationOutcome(requestID string, target saga.SubTxState) error {
	sub, ok := t.subTxs[requestID]
	if !ok {
		return fmt.Errorf("%w: request %q was never started", ErrProtocolViolation, requestID)
	}
	if sub.State == target {
		return nil
	}
	if sub.State != saga.SubTxEnded && sub.State != saga.SubTxCompensating {
		return fmt.Errorf("%w: request %q cannot move from %s to %s",
			ErrProtocolViolation, requestID, sub.State, target)
	}
	return nil
}

// Apply folds one event into the transaction. Duplicate events are no-ops;
// invalid events return ErrProtocolViolation and leave the state untouched.
func (t *GlobalTransaction) Apply(event events.Event) error {
	if t.applied[event.ID()] {
		return nil
	}
	if err := t.Validate(event); err != nil {
		return err
	}

	switch data := event.Data().(type) {
	case events.SagaStartedData:
		t.State = saga.GlobalTxStarted
		t.DefinitionJSON = data.DefinitionJSON
	case events.SagaEndedData:
		t.State = saga.GlobalTxState(data.Outcome)
	case events.TxStartedData:
		if _, exists := t.subTxs[data.RequestID]; !exists {
			t.subTxs[data.RequestID] = &SubTransaction{
				RequestID:    data.RequestID,
				ParentTxID:   data.ParentTxID,
				ServiceName:  data.ServiceName,
				State:        saga.SubTxStarted,
				Compensation: data.Compensation,
			}
		}
	case events.TxEndedData:
		sub := t.subTxs[data.RequestID]
		if sub.State != saga.SubTxEnded {
			sub.State = saga.SubTxEnded
			sub.Response = data.Response
			t.endedOrder = append(t.endedOrder, data.RequestID)
		}
	case events.TxAbortedData:
		sub := t.subTxs[data.RequestID]
		if sub.State != saga.SubTxAborted {
			sub.State = saga.SubTxAborted
			sub.Error = data.Response
			if t.State.CanTransitionTo(saga.GlobalTxCompensating) {
				t.State = saga.GlobalTxCompensating
			}
		}
	case events.TxCompensatedData:
		t.subTxs[data.RequestID].State = saga.SubTxCompensated
	case events.TxCompensateFailedData:
		sub := t.subTxs[data.RequestID]
		sub.State = saga.SubTxCompensateFailed
		sub.Error = data.Reason
	}

	t.applied[event.ID()] = true
	return nil
}

// markCommitting flags the instance as having reached the end marker with
// every branch committed. Coordinator-driven; no event is recorded for it.
func (t *GlobalTransaction) markCommitting() {
	if t.State.CanTransitionTo(saga.GlobalTxCommitting) {
		t.State = saga.GlobalTxCommitting
	}
}
