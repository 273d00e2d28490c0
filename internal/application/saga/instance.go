package saga

import (
	"context"
	"sync"
	"time"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/events"
	"saga-coordinator/internal/domain/saga"
	"saga-coordinator/internal/infrastructure/eventbus"
	"saga-coordinator/internal/infrastructure/eventstore"
)

// Instance binds one running saga: its graph, its fold, and its slice of the
// event log. All mutation funnels through the mutex, so invocation goroutines
// only ever report results; they never touch shared state directly.
type Instance struct {
	mu sync.Mutex

	sagaID string
	graph  *saga.SingleLeafDAG
	txn    *GlobalTransaction
	store  eventstore.EventStore
	bus    eventbus.EventBus
	topic  string
	logger logger.Logger
	seq    int64
}

func newInstance(sagaID string, graph *saga.SingleLeafDAG, store eventstore.EventStore,
	bus eventbus.EventBus, topic string, l logger.Logger) *Instance {
	return &Instance{
		sagaID: sagaID,
		graph:  graph,
		txn:    NewGlobalTransaction(sagaID),
		store:  store,
		bus:    bus,
		topic:  topic,
		logger: l,
	}
}

func (i *Instance) metadata() events.EventMetadata {
	return events.EventMetadata{
		CorrelationID: i.sagaID,
		Timestamp:     time.Now(),
	}
}

// record appends a new event to the log and folds it into the transaction.
// The append happens before any state advances; if the log is unavailable the
// event never existed. Holding the mutex across the append keeps the per-saga
// sequence gapless.
func (i *Instance) record(ctx context.Context, build func(seq int64) events.Event) (events.Event, error) {
	i.mu.Lock()
	event := build(i.seq + 1)

	if err := i.store.SaveEvent(ctx, event); err != nil {
		i.mu.Unlock()
		return nil, err
	}
	i.seq++

	if err := i.txn.Apply(event); err != nil {
		// The coordinator only records events it derived from its own state,
		// so this indicates a bug rather than bad input.
		i.logger.Error("Recorded event failed to apply",
			logger.Field{Key: "saga_id", Value: i.sagaID},
			logger.Field{Key: "event_type", Value: event.Type()},
			logger.Field{Key: "error", Value: err})
		i.mu.Unlock()
		return nil, err
	}
	i.mu.Unlock()

	i.publish(ctx, event)
	return event, nil
}

// applyExternal folds an event reported by a participant. Violating events
// are rejected before they reach the log.
func (i *Instance) applyExternal(ctx context.Context, event events.Event) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.txn.Validate(event); err != nil {
		// An inconsistent report during rollback means the instance can no
		// longer claim a clean rollback.
		if i.txn.State == saga.GlobalTxCompensating {
			i.txn.State = saga.GlobalTxCompensationFailed
		}
		return err
	}
	if err := i.store.SaveEvent(ctx, event); err != nil {
		return err
	}
	if event.SequenceNumber() > i.seq {
		i.seq = event.SequenceNumber()
	}
	return i.txn.Apply(event)
}

// replay folds an already-durable event sequence without re-appending it.
func (i *Instance) replay(evts []events.Event) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, event := range evts {
		if err := i.txn.Apply(event); err != nil {
			i.logger.Warn("Skipping unreplayable event",
				logger.Field{Key: "saga_id", Value: i.sagaID},
				logger.Field{Key: "event_type", Value: event.Type()},
				logger.Field{Key: "error", Value: err})
			continue
		}
		if event.SequenceNumber() > i.seq {
			i.seq = event.SequenceNumber()
		}
	}
}

func (i *Instance) publish(ctx context.Context, event events.Event) {
	if i.bus == nil {
		return
	}
	if err := i.bus.Publish(ctx, i.topic, event); err != nil {
		// The log is the source of truth; a missed publish only delays
		// downstream observers.
		i.logger.Warn("Failed to publish saga event",
			logger.Field{Key: "saga_id", Value: i.sagaID},
			logger.Field{Key: "event_type", Value: event.Type()},
			logger.Field{Key: "error", Value: err})
	}
}

func (i *Instance) state() saga.GlobalTxState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.txn.State
}

func (i *Instance) markCommitting() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.txn.markCommitting()
}

func (i *Instance) subState(requestID string) (saga.SubTxState, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	sub, ok := i.txn.Sub(requestID)
	if !ok {
		return "", false
	}
	return sub.State, true
}

// compensationTargets returns committed sub-transactions in reverse commit
// order, skipping any that already reached a compensation outcome.
func (i *Instance) compensationTargets() []SubTransaction {
	i.mu.Lock()
	defer i.mu.Unlock()

	order := i.txn.EndedOrder()
	targets := make([]SubTransaction, 0, len(order))
	for idx := len(order) - 1; idx >= 0; idx-- {
		sub, ok := i.txn.Sub(order[idx])
		if ok && sub.State == saga.SubTxEnded {
			targets = append(targets, *sub)
		}
	}
	return targets
}
