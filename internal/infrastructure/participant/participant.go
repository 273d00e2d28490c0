package participant

import (
	"context"

	"saga-coordinator/internal/domain/saga"
)

// Request describes one forward or compensating call against a participant
// service.
type Request struct {
	SagaID      string
	RequestID   string
	ServiceName string
	Operation   saga.Operation
	Payload     map[string]string
}

// Response carries the participant's reply body, recorded verbatim in the
// transaction log.
type Response struct {
	Body string
}

// Invoker executes sub-transactions and compensations against participant
// services. Invoke is called at most once per dispatch; Compensate may be
// retried and must be idempotent on the participant side.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
	Compensate(ctx context.Context, req Request) (Response, error)
}
