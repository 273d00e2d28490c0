package saga

import (
	"context"
	"testing"
	"time"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/events"
	"saga-coordinator/internal/infrastructure/eventstore"
	"saga-coordinator/internal/infrastructure/participant"

	"github.com/stretchr/testify/assert"
)

func TestStatusQuery_ExecutionDetail_Committed(t *testing.T) {
	store := eventstore.NewMemoryEventStore()
	coordinator := NewCoordinator(store, participant.NewMockParticipant(), logger.NewNopLogger())

	sagaID, err := coordinator.Run(context.Background(), definitionJSON(t,
		testRequest("A"),
		testRequest("B", "A"),
	))
	assert.NoError(t, err)

	query := NewStatusQuery(store, logger.NewNopLogger())
	detail, err := query.ExecutionDetail(context.Background(), sagaID)
	assert.NoError(t, err)

	assert.Equal(t, map[string][]string{"A": {"B"}}, detail.Router)
	assert.Equal(t, map[string]string{"A": statusOK, "B": statusOK}, detail.Status)
	assert.Empty(t, detail.Error)
}

func TestStatusQuery_ExecutionDetail_RolledBack(t *testing.T) {
	store := eventstore.NewMemoryEventStore()
	invoker := participant.NewMockParticipant()
	invoker.FailRequest("C", "insufficient funds")
	coordinator := NewCoordinator(store, invoker, logger.NewNopLogger())

	sagaID, err := coordinator.Run(context.Background(), definitionJSON(t,
		testRequest("A"),
		testRequest("B", "A"),
		testRequest("C", "B"),
	))
	var abort *AbortError
	assert.ErrorAs(t, err, &abort)

	query := NewStatusQuery(store, logger.NewNopLogger())
	detail, err := query.ExecutionDetail(context.Background(), sagaID)
	assert.NoError(t, err)

	assert.Equal(t, map[string][]string{"A": {"B"}, "B": {"C"}}, detail.Router)
	assert.Equal(t, map[string]string{
		"A": statusOK,
		"B": statusOK,
		"C": statusFailed,
	}, detail.Status)
	assert.Contains(t, detail.Error["C"], "insufficient funds")
}

func TestStatusQuery_ExecutionDetail_NotFound(t *testing.T) {
	query := NewStatusQuery(eventstore.NewMemoryEventStore(), logger.NewNopLogger())

	_, err := query.ExecutionDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSagaNotFound)
}

func TestStatusQuery_Executions(t *testing.T) {
	store := eventstore.NewMemoryEventStore()
	ctx := context.Background()

	committed := participant.NewMockParticipant()
	coordinator := NewCoordinator(store, committed, logger.NewNopLogger())
	committedID, err := coordinator.Run(ctx, definitionJSON(t, testRequest("A")))
	assert.NoError(t, err)

	failing := participant.NewMockParticipant()
	failing.FailRequest("A", "down")
	failingCoordinator := NewCoordinator(store, failing, logger.NewNopLogger())
	failedID, err := failingCoordinator.Run(ctx, definitionJSON(t, testRequest("A")))
	var abort *AbortError
	assert.ErrorAs(t, err, &abort)

	// A saga with no end event is still running.
	assert.NoError(t, store.SaveEvent(ctx,
		events.NewSagaStarted("saga-running", definitionJSON(t, testRequest("A")), testMetadata(), 1)))

	query := NewStatusQuery(store, logger.NewNopLogger())
	result, err := query.Executions(ctx, 0, 10, time.UnixMilli(0), time.Now().Add(time.Hour))
	assert.NoError(t, err)

	assert.Equal(t, 0, result.PageIndex)
	assert.Equal(t, 10, result.PageSize)
	assert.Equal(t, 1, result.TotalPages)
	assert.Len(t, result.Requests, 3)

	statuses := make(map[string]string, len(result.Requests))
	for _, record := range result.Requests {
		statuses[record.SagaID] = record.Status
	}
	assert.Equal(t, statusOK, statuses[committedID])
	assert.Equal(t, statusFailed, statuses[failedID])
	assert.Equal(t, statusRunning, statuses["saga-running"])
}

func TestStatusQuery_ExecutionsOutsideWindowAreExcluded(t *testing.T) {
	store := eventstore.NewMemoryEventStore()
	ctx := context.Background()

	coordinator := NewCoordinator(store, participant.NewMockParticipant(), logger.NewNopLogger())
	_, err := coordinator.Run(ctx, definitionJSON(t, testRequest("A")))
	assert.NoError(t, err)

	query := NewStatusQuery(store, logger.NewNopLogger())
	past := time.Now().Add(-2 * time.Hour)
	result, err := query.Executions(ctx, 0, 10, past.Add(-time.Hour), past)
	assert.NoError(t, err)
	assert.Empty(t, result.Requests)
	assert.Equal(t, 0, result.TotalPages)
}

func TestStatusQuery_AllEventsGroupedBySaga(t *testing.T) {
	store := eventstore.NewMemoryEventStore()
	ctx := context.Background()
	coordinator := NewCoordinator(store, participant.NewMockParticipant(), logger.NewNopLogger())

	first, err := coordinator.Run(ctx, definitionJSON(t, testRequest("A")))
	assert.NoError(t, err)
	second, err := coordinator.Run(ctx, definitionJSON(t, testRequest("A")))
	assert.NoError(t, err)

	query := NewStatusQuery(store, logger.NewNopLogger())
	grouped, err := query.AllEvents(ctx)
	assert.NoError(t, err)

	assert.Len(t, grouped, 2)
	for _, sagaID := range []string{first, second} {
		views := grouped[sagaID]
		assert.NotEmpty(t, views)
		assert.Equal(t, events.TypeSagaStarted, views[0].Type)
		assert.Equal(t, events.TypeSagaEnded, views[len(views)-1].Type)
	}
}
