package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"saga-coordinator/internal/domain/events"
)

// MemoryEventStore keeps the log in process memory. Used in tests and for
// single-node development runs; same contract as the durable adapters.
type MemoryEventStore struct {
	mu     sync.RWMutex
	bySaga map[string][]events.Event
	all    []events.Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		bySaga: make(map[string][]events.Event),
	}
}

func (es *MemoryEventStore) SaveEvent(ctx context.Context, event events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	es.bySaga[event.SagaID()] = append(es.bySaga[event.SagaID()], event)
	es.all = append(es.all, event)
	return nil
}

func (es *MemoryEventStore) LoadEvents(ctx context.Context, sagaID string) ([]events.Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	stored := es.bySaga[sagaID]
	out := make([]events.Event, len(stored))
	copy(out, stored)
	return out, nil
}

func (es *MemoryEventStore) LoadAllEvents(ctx context.Context) ([]events.Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	out := make([]events.Event, len(es.all))
	copy(out, es.all)
	return out, nil
}

func (es *MemoryEventStore) LoadSagaStartedBetween(ctx context.Context, from, to time.Time, offset, limit int) ([]events.Event, int, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var matches []events.Event
	for _, event := range es.all {
		if event.Type() != events.TypeSagaStarted {
			continue
		}
		ts := event.Timestamp()
		if ts.Before(from) || ts.After(to) {
			continue
		}
		matches = append(matches, event)
	}

	// Newest first, matching the durable adapters.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp().After(matches[j].Timestamp())
	})

	total := len(matches)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]events.Event, end-offset)
	copy(out, matches[offset:end])
	return out, total, nil
}

func (es *MemoryEventStore) PendingSagaIDs(ctx context.Context) ([]string, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var ids []string
	for _, event := range es.all {
		if event.Type() != events.TypeSagaStarted {
			continue
		}
		if !es.hasEventOfType(event.SagaID(), events.TypeSagaEnded) {
			ids = append(ids, event.SagaID())
		}
	}
	return ids, nil
}

func (es *MemoryEventStore) hasEventOfType(sagaID, eventType string) bool {
	for _, event := range es.bySaga[sagaID] {
		if event.Type() == eventType {
			return true
		}
	}
	return false
}
