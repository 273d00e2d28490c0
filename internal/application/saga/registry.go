package saga

import "sync"

// instanceRegistry tracks live instances so asynchronously reported
// participant events can be routed to them.
type instanceRegistry struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

func newInstanceRegistry() *instanceRegistry {
	return &instanceRegistry{instances: make(map[string]*Instance)}
}

func (r *instanceRegistry) add(inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.sagaID] = inst
}

func (r *instanceRegistry) remove(sagaID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, sagaID)
}

func (r *instanceRegistry) get(sagaID string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[sagaID]
	return inst, ok
}
