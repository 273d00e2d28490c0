package saga

import (
	"context"
	"time"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/events"
	"saga-coordinator/internal/domain/saga"
	"saga-coordinator/internal/infrastructure/escalation"
	"saga-coordinator/internal/infrastructure/participant"

	"github.com/google/uuid"
)

// RetryPolicy controls the pacing of compensation retries.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Backoff      float64
}

// Delay returns the pause before retry number attempt (zero-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(float64(p.InitialDelay) * float64(attempt+1) * p.Backoff)
}

func DefaultRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, Backoff: 2.0}
}

func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Compensator rolls back committed sub-transactions in reverse commit order.
// The walk is best-effort: a compensation that exhausts its retries is
// escalated and the walk continues with the remaining targets.
type Compensator struct {
	invoker     participant.Invoker
	policy      RetryPolicy
	escalations escalation.Log
	logger      logger.Logger
}

func NewCompensator(invoker participant.Invoker, policy RetryPolicy,
	escalations escalation.Log, l logger.Logger) *Compensator {
	return &Compensator{
		invoker:     invoker,
		policy:      policy,
		escalations: escalations,
		logger:      l,
	}
}

// Run compensates every committed sub-transaction of the instance and
// returns the terminal outcome: COMPENSATED when all targets rolled back,
// COMPENSATION_FAILED when any exhausted its retries. A non-nil error means
// the event log failed and the walk stopped.
func (c *Compensator) Run(ctx context.Context, inst *Instance) (saga.GlobalTxState, error) {
	outcome := saga.GlobalTxCompensated

	for _, target := range inst.compensationTargets() {
		ok, err := c.compensateOne(ctx, inst, target)
		if err != nil {
			return "", err
		}
		if !ok {
			outcome = saga.GlobalTxCompensationFailed
		}
	}

	return outcome, nil
}

func (c *Compensator) compensateOne(ctx context.Context, inst *Instance, sub SubTransaction) (bool, error) {
	var lastErr error

	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.policy.Delay(attempt - 1)):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}

		_, err := c.invoker.Compensate(ctx, participant.Request{
			SagaID:      inst.sagaID,
			RequestID:   sub.RequestID,
			ServiceName: sub.ServiceName,
			Operation:   sub.Compensation,
		})
		if err == nil {
			if _, rerr := inst.record(ctx, func(seq int64) events.Event {
				return events.NewTxCompensated(inst.sagaID, sub.RequestID, inst.metadata(), seq)
			}); rerr != nil {
				return false, rerr
			}
			return true, nil
		}

		lastErr = err
		c.logger.Warn("Compensation attempt failed",
			logger.Field{Key: "saga_id", Value: inst.sagaID},
			logger.Field{Key: "request_id", Value: sub.RequestID},
			logger.Field{Key: "attempt", Value: attempt + 1},
			logger.Field{Key: "error", Value: err})
	}

	if _, rerr := inst.record(ctx, func(seq int64) events.Event {
		return events.NewTxCompensateFailed(inst.sagaID, sub.RequestID, lastErr.Error(),
			c.policy.MaxAttempts, inst.metadata(), seq)
	}); rerr != nil {
		return false, rerr
	}
	c.escalate(ctx, inst.sagaID, sub.RequestID, lastErr.Error())

	return false, nil
}

func (c *Compensator) escalate(ctx context.Context, sagaID, requestID, reason string) {
	if c.escalations == nil {
		return
	}
	rec := escalation.Record{
		ID:         uuid.New().String(),
		SagaID:     sagaID,
		RequestID:  requestID,
		Reason:     reason,
		Attempts:   c.policy.MaxAttempts,
		OccurredAt: time.Now(),
	}
	if err := c.escalations.Record(ctx, rec); err != nil {
		c.logger.Error("Failed to escalate compensation failure",
			logger.Field{Key: "saga_id", Value: sagaID},
			logger.Field{Key: "request_id", Value: requestID},
			logger.Field{Key: "error", Value: err})
	}
}
