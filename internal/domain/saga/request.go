package saga

// Sentinel request ids. The root marker is always satisfied; the end marker
// is reached only when every branch has committed.
const (
	SagaStartRequestID = "saga-start"
	SagaEndRequestID   = "saga-end"
)

// Operation describes one participant call: a forward transaction or its
// compensating action.
type Operation struct {
	Method string            `json:"method"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
}

// SagaRequest is one sub-transaction of a saga definition. Parents lists the
// ids of requests this one depends on; an empty list attaches the request
// directly to the root.
type SagaRequest struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	ServiceName  string    `json:"serviceName"`
	Transaction  Operation `json:"transaction"`
	Compensation Operation `json:"compensation"`
	Parents      []string  `json:"parents,omitempty"`
}

// IsSentinel reports whether the request is one of the synthetic markers.
func (r SagaRequest) IsSentinel() bool {
	return r.ID == SagaStartRequestID || r.ID == SagaEndRequestID
}

// Definition is a parsed saga submission.
type Definition struct {
	Policy   string        `json:"policy,omitempty"`
	Requests []SagaRequest `json:"requests"`
}

func newStartRequest() SagaRequest {
	return SagaRequest{ID: SagaStartRequestID, Type: "nop"}
}

func newEndRequest() SagaRequest {
	return SagaRequest{ID: SagaEndRequestID, Type: "nop"}
}
