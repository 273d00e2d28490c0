package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/events"
	"saga-coordinator/internal/domain/saga"
	"saga-coordinator/internal/infrastructure/dlq"
	"saga-coordinator/internal/infrastructure/escalation"
	"saga-coordinator/internal/infrastructure/eventbus"
	"saga-coordinator/internal/infrastructure/eventstore"
	"saga-coordinator/internal/infrastructure/participant"

	"github.com/google/uuid"
)

var (
	// ErrInvalidDefinition marks a submission that failed parsing or graph
	// validation. Surfaced as a client error.
	ErrInvalidDefinition = errors.New("invalid saga definition")
	// ErrSagaNotFound marks a query for an unknown saga id.
	ErrSagaNotFound = errors.New("saga not found")
)

// Coordinator owns the lifecycle of saga instances: submission, forward
// execution, compensation, recovery, and participant event intake.
type Coordinator struct {
	store       eventstore.EventStore
	invoker     participant.Invoker
	builder     *saga.GraphBuilder
	executor    *Executor
	compensator *Compensator
	bus         eventbus.EventBus
	eventTopic  string
	deadLetters *dlq.Buffer
	logger      logger.Logger

	registry *instanceRegistry
}

type Option func(*coordinatorConfig)

type coordinatorConfig struct {
	bus         eventbus.EventBus
	eventTopic  string
	escalations escalation.Log
	deadLetters *dlq.Buffer
	retry       RetryPolicy
	timeout     time.Duration
}

// WithEventBus publishes every recorded event to the given topic for
// downstream observers.
func WithEventBus(bus eventbus.EventBus, topic string) Option {
	return func(c *coordinatorConfig) {
		c.bus = bus
		c.eventTopic = topic
	}
}

func WithEscalationLog(log escalation.Log) Option {
	return func(c *coordinatorConfig) { c.escalations = log }
}

func WithDeadLetterQueue(buffer *dlq.Buffer) Option {
	return func(c *coordinatorConfig) { c.deadLetters = buffer }
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *coordinatorConfig) { c.retry = policy }
}

func WithInvocationTimeout(timeout time.Duration) Option {
	return func(c *coordinatorConfig) { c.timeout = timeout }
}

func NewCoordinator(store eventstore.EventStore, invoker participant.Invoker,
	l logger.Logger, opts ...Option) *Coordinator {
	cfg := coordinatorConfig{
		retry:   DefaultRetry(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Coordinator{
		store:       store,
		invoker:     invoker,
		builder:     saga.NewGraphBuilder(saga.NewCycleDetector()),
		executor:    NewExecutor(invoker, cfg.timeout, l),
		compensator: NewCompensator(invoker, cfg.retry, cfg.escalations, l),
		bus:         cfg.bus,
		eventTopic:  cfg.eventTopic,
		deadLetters: cfg.deadLetters,
		logger:      l,
		registry:    newInstanceRegistry(),
	}
}

// Run executes one saga submission to its terminal state and returns the
// assigned saga id. The returned error is nil when the saga committed,
// *AbortError when it aborted and rolled back, and anything else when the
// log became unavailable mid-run.
func (c *Coordinator) Run(ctx context.Context, definitionJSON string) (string, error) {
	var definition saga.Definition
	if err := json.Unmarshal([]byte(definitionJSON), &definition); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	graph, err := c.builder.Build(definition.Requests)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	sagaID := uuid.New().String()
	inst := newInstance(sagaID, graph, c.store, c.bus, c.eventTopic, c.logger)

	if _, err := inst.record(ctx, func(seq int64) events.Event {
		return events.NewSagaStarted(sagaID, definitionJSON, inst.metadata(), seq)
	}); err != nil {
		return "", err
	}

	c.registry.add(inst)
	defer c.registry.remove(sagaID)

	return sagaID, c.runInstance(ctx, inst)
}

func (c *Coordinator) runInstance(ctx context.Context, inst *Instance) error {
	err := c.executor.Run(ctx, inst)
	if err == nil {
		inst.markCommitting()
		if _, rerr := inst.record(ctx, func(seq int64) events.Event {
			return events.NewSagaEnded(inst.sagaID, string(saga.GlobalTxCommitted), inst.metadata(), seq)
		}); rerr != nil {
			return rerr
		}
		c.logger.Info("Saga committed", logger.Field{Key: "saga_id", Value: inst.sagaID})
		return nil
	}

	var abort *AbortError
	if !errors.As(err, &abort) {
		// The log is down. Compensation would need the same log, so the
		// failure is surfaced instead of guessed around.
		return err
	}

	return c.compensate(ctx, inst, abort)
}

func (c *Coordinator) compensate(ctx context.Context, inst *Instance, abort *AbortError) error {
	outcome, err := c.compensator.Run(ctx, inst)
	if err != nil {
		return err
	}

	if _, rerr := inst.record(ctx, func(seq int64) events.Event {
		return events.NewSagaEnded(inst.sagaID, string(outcome), inst.metadata(), seq)
	}); rerr != nil {
		return rerr
	}

	c.logger.Warn("Saga rolled back",
		logger.Field{Key: "saga_id", Value: inst.sagaID},
		logger.Field{Key: "outcome", Value: string(outcome)},
		logger.Field{Key: "failed_request", Value: abort.RequestID})
	return abort
}

// HandleParticipantEvent folds an event reported asynchronously by a
// participant service. Events for unknown instances or events that violate
// the transaction protocol go to the dead letter buffer instead of the log.
func (c *Coordinator) HandleParticipantEvent(ctx context.Context, event events.Event) error {
	inst, ok := c.registry.get(event.SagaID())
	if !ok {
		if c.deadLetters != nil {
			c.deadLetters.Push(event, c.eventTopic, "unknown saga instance")
		}
		return nil
	}

	if err := inst.applyExternal(ctx, event); err != nil {
		if errors.Is(err, ErrProtocolViolation) {
			if c.deadLetters != nil {
				c.deadLetters.Push(event, c.eventTopic, err.Error())
			}
			return nil
		}
		return err
	}
	return nil
}

// Recover resumes every instance left pending in the log, typically at boot.
// Forward execution continues from the last committed frontier; instances
// already compensating finish their rollback.
func (c *Coordinator) Recover(ctx context.Context) error {
	pending, err := c.store.PendingSagaIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending sagas: %w", err)
	}

	for _, sagaID := range pending {
		if err := c.resume(ctx, sagaID); err != nil {
			c.logger.Error("Failed to resume saga",
				logger.Field{Key: "saga_id", Value: sagaID},
				logger.Field{Key: "error", Value: err})
		}
	}
	return nil
}

func (c *Coordinator) resume(ctx context.Context, sagaID string) error {
	inst, err := c.rebuild(ctx, sagaID)
	if err != nil {
		return err
	}

	c.registry.add(inst)
	defer c.registry.remove(sagaID)

	c.logger.Info("Resuming saga",
		logger.Field{Key: "saga_id", Value: sagaID},
		logger.Field{Key: "state", Value: string(inst.state())})

	switch state := inst.state(); {
	case state.IsTerminal():
		return nil
	case state == saga.GlobalTxCompensating:
		err = c.compensate(ctx, inst, &AbortError{Detail: "resumed during compensation"})
	default:
		err = c.runInstance(ctx, inst)
	}

	// A completed rollback is a successful resume; only log failures count.
	var abort *AbortError
	if errors.As(err, &abort) {
		return nil
	}
	return err
}

// rebuild reconstructs an instance purely from its event sequence.
func (c *Coordinator) rebuild(ctx context.Context, sagaID string) (*Instance, error) {
	evts, err := c.store.LoadEvents(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	if len(evts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSagaNotFound, sagaID)
	}

	started, ok := evts[0].Data().(events.SagaStartedData)
	if !ok {
		return nil, fmt.Errorf("saga %s log does not begin with a start event", sagaID)
	}

	var definition saga.Definition
	if err := json.Unmarshal([]byte(started.DefinitionJSON), &definition); err != nil {
		return nil, fmt.Errorf("failed to parse stored definition of saga %s: %w", sagaID, err)
	}
	graph, err := c.builder.Build(definition.Requests)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild graph of saga %s: %w", sagaID, err)
	}

	inst := newInstance(sagaID, graph, c.store, c.bus, c.eventTopic, c.logger)
	inst.replay(evts)
	return inst, nil
}
