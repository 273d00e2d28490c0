package saga

import (
	"context"
	"fmt"
	"time"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/events"
	"saga-coordinator/internal/domain/saga"
	"saga-coordinator/internal/infrastructure/participant"
)

// AbortError reports a sub-transaction whose forward action failed or timed
// out. It triggers compensation; any other error from the executor means the
// log itself is unavailable and no rollback is attempted.
type AbortError struct {
	RequestID string
	Detail    string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("sub-transaction %s aborted: %s", e.RequestID, e.Detail)
}

type invokeResult struct {
	node     *saga.Node
	response participant.Response
	err      error
	logErr   error
}

// Executor drives the forward phase of one instance: dispatch every request
// whose parents have all committed, as parallel as the graph allows.
type Executor struct {
	invoker participant.Invoker
	timeout time.Duration
	logger  logger.Logger
}

func NewExecutor(invoker participant.Invoker, timeout time.Duration, l logger.Logger) *Executor {
	return &Executor{invoker: invoker, timeout: timeout, logger: l}
}

// Run executes the forward phase. Returns nil once the end marker is reached
// with every branch committed, *AbortError when a sub-transaction aborted,
// and any other error when the event log failed an append.
//
// Requests already committed in the fold (a resumed instance) propagate
// without being re-invoked; requests left started without an outcome are
// re-invoked without a duplicate start record, so participants see
// at-least-once delivery.
func (e *Executor) Run(ctx context.Context, inst *Instance) error {
	graph := inst.graph

	indegree := make(map[string]int, graph.Size()+1)
	for _, node := range graph.Nodes() {
		indegree[node.ID()] = len(node.Parents())
	}
	indegree[saga.SagaEndRequestID] = len(graph.Leaf().Parents())

	results := make(chan invokeResult, graph.Size())
	var ready []*saga.Node
	leafReached := false
	inFlight := 0
	var abort *AbortError
	var logFailure error

	markDone := func(node *saga.Node) {
		for _, child := range node.Children() {
			indegree[child.ID()]--
			if indegree[child.ID()] == 0 {
				if child.ID() == saga.SagaEndRequestID {
					leafReached = true
				} else {
					ready = append(ready, child)
				}
			}
		}
	}

	// The root marker is satisfied by definition.
	markDone(graph.Root())

	for {
		for len(ready) > 0 && abort == nil && logFailure == nil {
			node := ready[0]
			ready = ready[1:]

			state, known := inst.subState(node.ID())
			if known && state == saga.SubTxEnded {
				markDone(node)
				continue
			}

			inFlight++
			go e.invokeNode(ctx, inst, node, known, results)
		}

		if inFlight == 0 {
			if logFailure != nil {
				return logFailure
			}
			if abort != nil {
				return abort
			}
			if leafReached {
				return nil
			}
			return fmt.Errorf("saga %s stalled during forward execution", inst.sagaID)
		}

		res := <-results
		inFlight--

		switch {
		case res.logErr != nil:
			logFailure = res.logErr
		case res.err != nil:
			if _, err := inst.record(ctx, func(seq int64) events.Event {
				return events.NewTxAborted(inst.sagaID, res.node.ID(), res.err.Error(), inst.metadata(), seq)
			}); err != nil {
				logFailure = err
				break
			}
			e.logger.Warn("Sub-transaction aborted",
				logger.Field{Key: "saga_id", Value: inst.sagaID},
				logger.Field{Key: "request_id", Value: res.node.ID()},
				logger.Field{Key: "error", Value: res.err})
			if abort == nil {
				abort = &AbortError{RequestID: res.node.ID(), Detail: res.err.Error()}
			}
		default:
			if _, err := inst.record(ctx, func(seq int64) events.Event {
				return events.NewTxEnded(inst.sagaID, res.node.ID(), res.response.Body, inst.metadata(), seq)
			}); err != nil {
				logFailure = err
				break
			}
			markDone(res.node)
		}
	}
}

// invokeNode records the start of a sub-transaction and calls the
// participant. The start record is durable before the call goes out, so a
// crash can never leave an invoked participant without a trace in the log.
func (e *Executor) invokeNode(ctx context.Context, inst *Instance, node *saga.Node, resume bool, results chan<- invokeResult) {
	req := node.Request()

	if !resume {
		parentID := ""
		if parents := node.Parents(); len(parents) > 0 {
			parentID = parents[0].ID()
		}
		if _, err := inst.record(ctx, func(seq int64) events.Event {
			return events.NewTxStarted(inst.sagaID, req, parentID, "", inst.metadata(), seq)
		}); err != nil {
			results <- invokeResult{node: node, logErr: err}
			return
		}
	}

	invokeCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	response, err := e.invoker.Invoke(invokeCtx, participant.Request{
		SagaID:      inst.sagaID,
		RequestID:   req.ID,
		ServiceName: req.ServiceName,
		Operation:   req.Transaction,
	})
	results <- invokeResult{node: node, response: response, err: err}
}
