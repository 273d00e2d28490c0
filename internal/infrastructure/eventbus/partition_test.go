package eventbus

import (
	"testing"

	"saga-coordinator/internal/domain/events"

	"github.com/stretchr/testify/assert"
)

func TestPartitionFor_SameSagaSamePartition(t *testing.T) {
	meta := events.EventMetadata{}

	started := events.NewSagaStarted("saga-1", "{}", meta, 1)
	ended := events.NewSagaEnded("saga-1", "COMMITTED", meta, 2)

	p1, err := PartitionFor(started, 12)
	assert.NoError(t, err)
	p2, err := PartitionFor(ended, 12)
	assert.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.GreaterOrEqual(t, p1, 0)
	assert.Less(t, p1, 12)
}

func TestPartitionFor_InvalidInput(t *testing.T) {
	meta := events.EventMetadata{}
	event := events.NewSagaStarted("saga-1", "{}", meta, 1)

	_, err := PartitionFor(event, 0)
	assert.Error(t, err)

	orphan := events.NewBaseEvent("id-1", events.TypeSagaStarted, "", events.SagaStartedData{}, meta, 1)
	_, err = PartitionFor(orphan, 12)
	assert.Error(t, err)
}
