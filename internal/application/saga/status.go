package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/events"
	"saga-coordinator/internal/domain/saga"
	"saga-coordinator/internal/infrastructure/eventstore"
)

// EventView is one log entry shaped for the query API.
type EventView struct {
	ID           string    `json:"id"`
	SagaID       string    `json:"sagaId"`
	Type         string    `json:"type"`
	RequestID    string    `json:"requestId,omitempty"`
	CreationTime time.Time `json:"creationTime"`
	Content      string    `json:"content"`
}

// ExecutionRecord summarizes one saga instance for the paged listing.
type ExecutionRecord struct {
	SagaID        string `json:"sagaId"`
	StartTime     int64  `json:"startTime"`
	CompletedTime int64  `json:"completedTime,omitempty"`
	Status        string `json:"status"`
}

// ExecutionQueryResult is one page of saga executions, newest first.
type ExecutionQueryResult struct {
	PageIndex  int               `json:"pageIndex"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
	Requests   []ExecutionRecord `json:"requests"`
}

// ExecutionDetailView mirrors the submitted graph with per-request outcomes.
// Router maps each request to its non-sentinel children.
type ExecutionDetailView struct {
	Router map[string][]string `json:"router"`
	Status map[string]string   `json:"status"`
	Error  map[string]string   `json:"error"`
}

const (
	statusRunning          = "Running"
	statusOK               = "OK"
	statusFailed           = "Failed"
	statusCompensateFailed = "CompensateFailed"
)

// StatusQuery reconstructs saga status purely from the event log. It never
// touches live instances, so answers are identical before and after a
// coordinator restart.
type StatusQuery struct {
	store   eventstore.EventStore
	builder *saga.GraphBuilder
	logger  logger.Logger
}

func NewStatusQuery(store eventstore.EventStore, l logger.Logger) *StatusQuery {
	return &StatusQuery{
		store:   store,
		builder: saga.NewGraphBuilder(saga.NewCycleDetector()),
		logger:  l,
	}
}

// AllEvents returns the whole log grouped by saga id, in log order.
func (q *StatusQuery) AllEvents(ctx context.Context) (map[string][]EventView, error) {
	evts, err := q.store.LoadAllEvents(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]EventView)
	for _, event := range evts {
		grouped[event.SagaID()] = append(grouped[event.SagaID()], toView(event))
	}
	return grouped, nil
}

// Executions pages saga instances whose start time falls in [from, to],
// newest first.
func (q *StatusQuery) Executions(ctx context.Context, pageIndex, pageSize int, from, to time.Time) (*ExecutionQueryResult, error) {
	startedEvents, total, err := q.store.LoadSagaStartedBetween(ctx, from, to, pageIndex*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	records := make([]ExecutionRecord, 0, len(startedEvents))
	for _, started := range startedEvents {
		record, err := q.summarize(ctx, started)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}

	return &ExecutionQueryResult{
		PageIndex:  pageIndex,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Requests:   records,
	}, nil
}

func (q *StatusQuery) summarize(ctx context.Context, started events.Event) (ExecutionRecord, error) {
	evts, err := q.store.LoadEvents(ctx, started.SagaID())
	if err != nil {
		return ExecutionRecord{}, err
	}

	record := ExecutionRecord{
		SagaID:    started.SagaID(),
		StartTime: started.Timestamp().UnixMilli(),
		Status:    statusRunning,
	}

	aborted := false
	for _, event := range evts {
		switch event.Type() {
		case events.TypeTxAborted:
			aborted = true
		case events.TypeSagaEnded:
			record.CompletedTime = event.Timestamp().UnixMilli()
			if aborted {
				record.Status = statusFailed
			} else {
				record.Status = statusOK
			}
		}
	}
	return record, nil
}

// ExecutionDetail rebuilds one instance's graph and fold from the log and
// reports each request's routing, status, and failure detail.
func (q *StatusQuery) ExecutionDetail(ctx context.Context, sagaID string) (*ExecutionDetailView, error) {
	evts, err := q.store.LoadEvents(ctx, sagaID)
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
	graph, err := q.builder.Build(definition.Requests)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild graph of saga %s: %w", sagaID, err)
	}

	txn := NewGlobalTransaction(sagaID)
	for _, event := range evts {
		if err := txn.Apply(event); err != nil {
			q.logger.Warn("Skipping unreplayable event in status query",
				logger.Field{Key: "saga_id", Value: sagaID},
				logger.Field{Key: "event_type", Value: event.Type()},
				logger.Field{Key: "error", Value: err})
		}
	}

	view := &ExecutionDetailView{
		Router: make(map[string][]string),
		Status: make(map[string]string),
		Error:  make(map[string]string),
	}

	for _, node := range graph.Nodes() {
		var children []string
		for _, child := range node.Children() {
			if child.ID() == saga.SagaEndRequestID {
				continue
			}
			children = append(children, child.ID())
		}
		if len(children) > 0 {
			view.Router[node.ID()] = children
		}

		sub, ok := txn.Sub(node.ID())
		if !ok {
			continue
		}
		// Status reflects the forward action: a compensated request still
		// committed its transaction, so it stays OK.
		switch sub.State {
		case saga.SubTxStarted:
			view.Status[node.ID()] = statusRunning
		case saga.SubTxEnded, saga.SubTxCompensating, saga.SubTxCompensated:
			view.Status[node.ID()] = statusOK
		case saga.SubTxAborted:
			view.Status[node.ID()] = statusFailed
			view.Error[node.ID()] = sub.Error
		case saga.SubTxCompensateFailed:
			view.Status[node.ID()] = statusCompensateFailed
			view.Error[node.ID()] = sub.Error
		}
	}

	return view, nil
}

func toView(event events.Event) EventView {
	view := EventView{
		ID:           event.ID(),
		SagaID:       event.SagaID(),
		Type:         event.Type(),
		CreationTime: event.Timestamp(),
	}

	switch data := event.Data().(type) {
	case events.TxStartedData:
		view.RequestID = data.RequestID
	case events.TxEndedData:
		view.RequestID = data.RequestID
	case events.TxAbortedData:
		view.RequestID = data.RequestID
	case events.TxCompensatedData:
		view.RequestID = data.RequestID
	case events.TxCompensateFailedData:
		view.RequestID = data.RequestID
	}

	if content, err := json.Marshal(event.Data()); err == nil {
		view.Content = string(content)
	}
	return view
}
