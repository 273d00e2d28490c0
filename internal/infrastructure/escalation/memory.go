package escalation

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLog is an in-memory Log for tests and single-node setups.
type MemoryLog struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Record(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *MemoryLog) Unresolved(_ context.Context) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var unresolved []Record
	for _, rec := range l.records {
		if !rec.Resolved {
			unresolved = append(unresolved, rec)
		}
	}
	return unresolved, nil
}

func (l *MemoryLog) Resolve(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.records {
		if l.records[i].ID == id {
			l.records[i].Resolved = true
			return nil
		}
	}
	return fmt.Errorf("compensation failure %s not found", id)
}
