package saga

import (
	"context"
	"time"

	"saga-coordinator/internal/domain/events"
	"saga-coordinator/internal/infrastructure/eventbus"

	"github.com/stretchr/testify/mock"
)

type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) SaveEvent(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventStore) LoadEvents(ctx context.Context, sagaID string) ([]events.Event, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]events.Event), args.Error(1)
}

func (m *MockEventStore) LoadAllEvents(ctx context.Context) ([]events.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]events.Event), args.Error(1)
}

func (m *MockEventStore) LoadSagaStartedBetween(ctx context.Context, from, to time.Time, offset, limit int) ([]events.Event, int, error) {
	args := m.Called(ctx, from, to, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]events.Event), args.Int(1), args.Error(2)
}

func (m *MockEventStore) PendingSagaIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, topic string, event events.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, topic string, handler eventbus.EventHandler) error {
	args := m.Called(ctx, topic, handler)
	return args.Error(0)
}

func (m *MockEventBus) SubscribeWithGroupID(ctx context.Context, topic, groupID string, handler eventbus.EventHandler) error {
	args := m.Called(ctx, topic, groupID, handler)
	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(event events.Event) bool {
		return event.Type() == eventType
	})
}
