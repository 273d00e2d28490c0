package saga

import (
	"errors"
	"fmt"
)

var (
	ErrCyclicDependency   = errors.New("cyclic dependency detected")
	ErrDanglingDependency = errors.New("dependency refers to unknown request")
	ErrDuplicateRequest   = errors.New("duplicate request id")
	ErrReservedRequestID  = errors.New("request id is reserved")
)

// GraphBuilder converts a flat list of requests into a SingleLeafDAG with
// synthetic start and end markers.
type GraphBuilder struct {
	detector CycleDetector
}

func NewGraphBuilder(detector CycleDetector) *GraphBuilder {
	return &GraphBuilder{detector: detector}
}

// Build validates the dependency relation and materializes the graph.
// Requests with no parents become children of the root; requests nothing
// depends on gain an edge to the end marker. Deterministic for a given
// input ordering; on error nothing is built.
func (b *GraphBuilder) Build(requests []SagaRequest) (*SingleLeafDAG, error) {
	deps := make(map[string][]string, len(requests))
	for _, req := range requests {
		if req.IsSentinel() {
			return nil, fmt.Errorf("%w: %q", ErrReservedRequestID, req.ID)
		}
		if _, exists := deps[req.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRequest, req.ID)
		}
		deps[req.ID] = req.Parents
	}

	for _, req := range requests {
		for _, parent := range req.Parents {
			if _, exists := deps[parent]; !exists {
				return nil, fmt.Errorf("%w: request %q declares parent %q",
					ErrDanglingDependency, req.ID, parent)
			}
		}
	}

	if err := b.detector.Detect(deps); err != nil {
		return nil, err
	}

	root := &Node{request: newStartRequest()}
	end := &Node{request: newEndRequest()}

	graph := &SingleLeafDAG{
		root:  root,
		leaf:  end,
		nodes: make(map[string]*Node, len(requests)+2),
		order: make([]string, 0, len(requests)),
	}
	graph.nodes[root.ID()] = root
	graph.nodes[end.ID()] = end

	for _, req := range requests {
		node := &Node{request: req}
		graph.nodes[req.ID] = node
		graph.order = append(graph.order, req.ID)
	}

	hasDependents := make(map[string]bool, len(requests))
	for _, req := range requests {
		node := graph.nodes[req.ID]
		if len(req.Parents) == 0 {
			root.addChild(node)
			continue
		}
		for _, parent := range req.Parents {
			graph.nodes[parent].addChild(node)
			hasDependents[parent] = true
		}
	}

	// Every request nothing depends on feeds the single leaf; an empty
	// definition collapses to root -> end.
	for _, id := range graph.order {
		if !hasDependents[id] {
			graph.nodes[id].addChild(end)
		}
	}
	if len(requests) == 0 {
		root.addChild(end)
	}

	return graph, nil
}
