package participant

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockParticipant is a scripted in-memory Invoker for tests. Individual
// requests can be told to fail, fail their compensation a number of times, or
// respond after a delay.
type MockParticipant struct {
	mu sync.Mutex

	failRequests     map[string]string
	failCompensation map[string]int
	delays           map[string]time.Duration

	invocations   []string
	compensations []string
}

func NewMockParticipant() *MockParticipant {
	return &MockParticipant{
		failRequests:     make(map[string]string),
		failCompensation: make(map[string]int),
		delays:           make(map[string]time.Duration),
	}
}

// FailRequest makes Invoke fail for the given request id with the given
// failure detail.
func (m *MockParticipant) FailRequest(requestID, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRequests[requestID] = detail
}

// FailCompensation makes Compensate fail the first n times for the given
// request id, then succeed.
func (m *MockParticipant) FailCompensation(requestID string, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCompensation[requestID] = times
}

// DelayRequest makes Invoke sleep before responding for the given request id.
func (m *MockParticipant) DelayRequest(requestID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[requestID] = d
}

func (m *MockParticipant) Invoke(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	delay := m.delays[req.RequestID]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if detail, ok := m.failRequests[req.RequestID]; ok {
		return Response{}, fmt.Errorf("%s", detail)
	}

	m.invocations = append(m.invocations, req.RequestID)
	return Response{Body: fmt.Sprintf("%s succeeded", req.RequestID)}, nil
}

func (m *MockParticipant) Compensate(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if remaining, ok := m.failCompensation[req.RequestID]; ok && remaining > 0 {
		m.failCompensation[req.RequestID] = remaining - 1
		return Response{}, fmt.Errorf("compensation of %s unavailable", req.RequestID)
	}

	m.compensations = append(m.compensations, req.RequestID)
	return Response{Body: fmt.Sprintf("%s compensated", req.RequestID)}, nil
}

// Invocations returns the request ids of successful forward calls in
// completion order.
func (m *MockParticipant) Invocations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.invocations...)
}

// Compensations returns the request ids of successful compensating calls in
// completion order.
func (m *MockParticipant) Compensations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.compensations...)
}
