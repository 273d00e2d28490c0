package escalation

import (
	"context"
	"time"
)

// Record is one compensation that exhausted its retries and needs operator
// attention.
type Record struct {
	ID         string
	SagaID     string
	RequestID  string
	Reason     string
	Attempts   int
	OccurredAt time.Time
	Resolved   bool
}

// Log stores escalated compensation failures until an operator resolves them.
type Log interface {
	Record(ctx context.Context, rec Record) error
	Unresolved(ctx context.Context) ([]Record, error)
	Resolve(ctx context.Context, id string) error
}
