package eventstore

import (
	"context"
	"time"

	"saga-coordinator/internal/domain/events"
)

// EventStore is the durability contract of the saga event log. SaveEvent is
// durable before it returns; events of one saga replay in arrival order.
// Ordering across different saga ids is not guaranteed.
type EventStore interface {
	// SaveEvent appends an event to the log.
	SaveEvent(ctx context.Context, event events.Event) error
	// LoadEvents loads all events of one saga instance in log order.
	LoadEvents(ctx context.Context, sagaID string) ([]events.Event, error)
	// LoadAllEvents loads the whole log in arrival order.
	LoadAllEvents(ctx context.Context) ([]events.Event, error)
	// LoadSagaStartedBetween pages SagaStarted events whose creation time
	// falls in [from, to], newest first. The second return is the total
	// count of matches before paging.
	LoadSagaStartedBetween(ctx context.Context, from, to time.Time, offset, limit int) ([]events.Event, int, error)
	// PendingSagaIDs lists instances with a SagaStarted but no SagaEnded.
	PendingSagaIDs(ctx context.Context) ([]string, error)
}
