package dlq

import (
	"fmt"
	"testing"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/events"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_PushAndSnapshot(t *testing.T) {
	buffer := NewBuffer(10, logger.NewNopLogger())

	event := events.NewTxEnded("saga-1", "A", "ok", events.EventMetadata{}, 1)
	dead := buffer.Push(event, "saga.events", "unknown saga instance")

	assert.NotEmpty(t, dead.ID)
	assert.Equal(t, "saga-1", dead.SagaID)
	assert.Equal(t, 1, buffer.Len())

	entries := buffer.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "unknown saga instance", entries[0].Reason)
}

func TestBuffer_DropsOldestWhenFull(t *testing.T) {
	buffer := NewBuffer(3, logger.NewNopLogger())

	for i := 0; i < 5; i++ {
		event := events.NewTxEnded(fmt.Sprintf("saga-%d", i), "A", "ok", events.EventMetadata{}, 1)
		buffer.Push(event, "saga.events", "overflow")
	}

	assert.Equal(t, 3, buffer.Len())
	entries := buffer.Entries()
	assert.Equal(t, "saga-2", entries[0].SagaID)
	assert.Equal(t, "saga-4", entries[2].SagaID)
}
