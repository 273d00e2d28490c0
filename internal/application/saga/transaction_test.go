package saga

import (
	"testing"
	"time"

	"saga-coordinator/internal/domain/events"
	"saga-coordinator/internal/domain/saga"

	"github.com/stretchr/testify/assert"
)

func testMetadata() events.EventMetadata {
	return events.EventMetadata{CorrelationID: "saga-1", Timestamp: time.Now()}
}

func testRequest(id string, parents ...string) saga.SagaRequest {
	return saga.SagaRequest{
		ID:          id,
		Type:        "rest",
		ServiceName: "svc-" + id,
		Transaction: saga.Operation{Method: "POST", Path: "/" + id},
		Compensation: saga.Operation{
			Method: "PUT",
			Path:   "/" + id + "/cancel",
		},
		Parents: parents,
	}
}

func TestGlobalTransaction_CommitFold(t *testing.T) {
	txn := NewGlobalTransaction("saga-1")

	assert.NoError(t, txn.Apply(events.NewSagaStarted("saga-1", "{}", testMetadata(), 1)))
	assert.NoError(t, txn.Apply(events.NewTxStarted("saga-1", testRequest("A"), saga.SagaStartRequestID, "", testMetadata(), 2)))
	assert.NoError(t, txn.Apply(events.NewTxEnded("saga-1", "A", "ok", testMetadata(), 3)))
	assert.NoError(t, txn.Apply(events.NewSagaEnded("saga-1", string(saga.GlobalTxCommitted), testMetadata(), 4)))

	assert.Equal(t, saga.GlobalTxCommitted, txn.State)

	sub, ok := txn.Sub("A")
	assert.True(t, ok)
	assert.Equal(t, saga.SubTxEnded, sub.State)
	assert.Equal(t, "ok", sub.Response)
	assert.Equal(t, []string{"A"}, txn.EndedOrder())
}

func TestGlobalTransaction_DuplicateEventIsNoOp(t *testing.T) {
	txn := NewGlobalTransaction("saga-1")

	assert.NoError(t, txn.Apply(events.NewSagaStarted("saga-1", "{}", testMetadata(), 1)))
	assert.NoError(t, txn.Apply(events.NewTxStarted("saga-1", testRequest("A"), "", "", testMetadata(), 2)))

	ended := events.NewTxEnded("saga-1", "A", "ok", testMetadata(), 3)
	assert.NoError(t, txn.Apply(ended))
	assert.NoError(t, txn.Apply(ended))

	assert.Equal(t, []string{"A"}, txn.EndedOrder())
}

func TestGlobalTransaction_OutcomeWithoutStartIsViolation(t *testing.T) {
	txn := NewGlobalTransaction("saga-1")

	assert.NoError(t, txn.Apply(events.NewSagaStarted("saga-1", "{}", testMetadata(), 1)))

	err := txn.Apply(events.NewTxEnded("saga-1", "ghost", "ok", testMetadata(), 2))
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestGlobalTransaction_AbortMovesGlobalToCompensating(t *testing.T) {
	txn := NewGlobalTransaction("saga-1")

	assert.NoError(t, txn.Apply(events.NewSagaStarted("saga-1", "{}", testMetadata(), 1)))
	assert.NoError(t, txn.Apply(events.NewTxStarted("saga-1", testRequest("A"), "", "", testMetadata(), 2)))
	assert.NoError(t, txn.Apply(events.NewTxAborted("saga-1", "A", "boom", testMetadata(), 3)))

	assert.Equal(t, saga.GlobalTxCompensating, txn.State)

	sub, _ := txn.Sub("A")
	assert.Equal(t, saga.SubTxAborted, sub.State)
	assert.Equal(t, "boom", sub.Error)
}

func TestGlobalTransaction_CompensationOutcomes(t *testing.T) {
	txn := NewGlobalTransaction("saga-1")

	assert.NoError(t, txn.Apply(events.NewSagaStarted("saga-1", "{}", testMetadata(), 1)))
	assert.NoError(t, txn.Apply(events.NewTxStarted("saga-1", testRequest("A"), "", "", testMetadata(), 2)))
	assert.NoError(t, txn.Apply(events.NewTxEnded("saga-1", "A", "ok", testMetadata(), 3)))
	assert.NoError(t, txn.Apply(events.NewTxStarted("saga-1", testRequest("B"), "", "", testMetadata(), 4)))
	assert.NoError(t, txn.Apply(events.NewTxEnded("saga-1", "B", "ok", testMetadata(), 5)))

	assert.NoError(t, txn.Apply(events.NewTxCompensated("saga-1", "B", testMetadata(), 6)))
	assert.NoError(t, txn.Apply(events.NewTxCompensateFailed("saga-1", "A", "still down", 3, testMetadata(), 7)))

	b, _ := txn.Sub("B")
	assert.Equal(t, saga.SubTxCompensated, b.State)

	a, _ := txn.Sub("A")
	assert.Equal(t, saga.SubTxCompensateFailed, a.State)
	assert.Equal(t, "still down", a.Error)
}

func TestGlobalTransaction_ViolationLeavesStateUntouched(t *testing.T) {
	txn := NewGlobalTransaction("saga-1")

	assert.NoError(t, txn.Apply(events.NewSagaStarted("saga-1", "{}", testMetadata(), 1)))
	assert.NoError(t, txn.Apply(events.NewTxStarted("saga-1", testRequest("A"), "", "", testMetadata(), 2)))
	assert.NoError(t, txn.Apply(events.NewTxAborted("saga-1", "A", "boom", testMetadata(), 3)))

	err := txn.Apply(events.NewTxEnded("saga-1", "A", "late success", testMetadata(), 4))
	assert.ErrorIs(t, err, ErrProtocolViolation)

	sub, _ := txn.Sub("A")
	assert.Equal(t, saga.SubTxAborted, sub.State)
	assert.Empty(t, txn.EndedOrder())
}

func TestGlobalTransaction_EndedOrderTracksCommitOrder(t *testing.T) {
	txn := NewGlobalTransaction("saga-1")

	assert.NoError(t, txn.Apply(events.NewSagaStarted("saga-1", "{}", testMetadata(), 1)))
	assert.NoError(t, txn.Apply(events.NewTxStarted("saga-1", testRequest("A"), "", "", testMetadata(), 2)))
	assert.NoError(t, txn.Apply(events.NewTxStarted("saga-1", testRequest("B"), "", "", testMetadata(), 3)))
	assert.NoError(t, txn.Apply(events.NewTxEnded("saga-1", "B", "ok", testMetadata(), 4)))
	assert.NoError(t, txn.Apply(events.NewTxEnded("saga-1", "A", "ok", testMetadata(), 5)))

	assert.Equal(t, []string{"B", "A"}, txn.EndedOrder())
}
