package dlq

import (
	"sync"
	"time"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/events"

	"github.com/google/uuid"
)

const defaultCapacity = 1000

// DeadEvent is a participant event that could not be applied to its
// transaction, kept aside for inspection.
type DeadEvent struct {
	ID         string
	SagaID     string
	Event      events.Event
	Reason     string
	Topic      string
	ReceivedAt time.Time
}

// Buffer is a bounded in-memory dead letter buffer. When full, the oldest
// entries are dropped.
type Buffer struct {
	mu       sync.Mutex
	entries  []DeadEvent
	capacity int
	logger   logger.Logger
}

func NewBuffer(capacity int, l logger.Logger) *Buffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		logger:   l,
	}
}

// Push records a dead event. Never fails; the buffer is a last resort and
// must not block the consumer.
func (b *Buffer) Push(event events.Event, topic, reason string) DeadEvent {
	dead := DeadEvent{
		ID:         uuid.New().String(),
		SagaID:     event.SagaID(),
		Event:      event,
		Reason:     reason,
		Topic:      topic,
		ReceivedAt: time.Now(),
	}

	b.mu.Lock()
	b.entries = append(b.entries, dead)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[len(b.entries)-b.capacity:]
	}
	b.mu.Unlock()

	b.logger.Warn("Event sent to dead letter buffer",
		logger.Field{Key: "saga_id", Value: dead.SagaID},
		logger.Field{Key: "event_type", Value: event.Type()},
		logger.Field{Key: "reason", Value: reason})

	return dead
}

// Entries returns a snapshot of the buffered dead events, oldest first.
func (b *Buffer) Entries() []DeadEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DeadEvent(nil), b.entries...)
}

// Len returns the number of buffered dead events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
