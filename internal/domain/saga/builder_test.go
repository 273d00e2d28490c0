package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func request(id string, parents ...string) SagaRequest {
	return SagaRequest{
		ID:          id,
		Type:        "rest",
		ServiceName: "svc-" + id,
		Parents:     parents,
	}
}

func TestGraphBuilder_LinearChain(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	graph, err := builder.Build([]SagaRequest{
		request("A"),
		request("B", "A"),
		request("C", "B"),
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, graph.Size())

	root := graph.Root()
	assert.Equal(t, SagaStartRequestID, root.ID())
	assert.Len(t, root.Children(), 1)
	assert.Equal(t, "A", root.Children()[0].ID())

	c, ok := graph.Node("C")
	assert.True(t, ok)
	assert.Len(t, c.Children(), 1)
	assert.Equal(t, SagaEndRequestID, c.Children()[0].ID())
}

func TestGraphBuilder_ParallelBranchesConvergeOnLeaf(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	graph, err := builder.Build([]SagaRequest{
		request("A"),
		request("B", "A"),
		request("C", "A"),
		request("D", "B", "C"),
	})

	assert.NoError(t, err)

	a, _ := graph.Node("A")
	assert.Len(t, a.Children(), 2)

	d, _ := graph.Node("D")
	assert.Len(t, d.Parents(), 2)
	assert.Len(t, d.Children(), 1)
	assert.Equal(t, SagaEndRequestID, d.Children()[0].ID())

	// Only D feeds the end marker; B and C have a dependent.
	assert.Len(t, graph.Leaf().Parents(), 1)
}

func TestGraphBuilder_IndependentRequestsAllFeedLeaf(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	graph, err := builder.Build([]SagaRequest{
		request("A"),
		request("B"),
	})

	assert.NoError(t, err)
	assert.Len(t, graph.Root().Children(), 2)
	assert.Len(t, graph.Leaf().Parents(), 2)
}

func TestGraphBuilder_EmptyDefinitionCollapsesToRootEnd(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	graph, err := builder.Build(nil)

	assert.NoError(t, err)
	assert.Equal(t, 0, graph.Size())
	assert.Len(t, graph.Root().Children(), 1)
	assert.Equal(t, SagaEndRequestID, graph.Root().Children()[0].ID())
}

func TestGraphBuilder_RejectsCycle(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	_, err := builder.Build([]SagaRequest{
		request("A", "C"),
		request("B", "A"),
		request("C", "B"),
	})

	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestGraphBuilder_RejectsSelfDependency(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	_, err := builder.Build([]SagaRequest{request("A", "A")})

	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestGraphBuilder_RejectsDanglingParent(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	_, err := builder.Build([]SagaRequest{
		request("A"),
		request("B", "missing"),
	})

	assert.ErrorIs(t, err, ErrDanglingDependency)
}

func TestGraphBuilder_RejectsDuplicateIDs(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	_, err := builder.Build([]SagaRequest{
		request("A"),
		request("A"),
	})

	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestGraphBuilder_RejectsReservedIDs(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	_, err := builder.Build([]SagaRequest{request(SagaStartRequestID)})
	assert.ErrorIs(t, err, ErrReservedRequestID)

	_, err = builder.Build([]SagaRequest{request(SagaEndRequestID)})
	assert.ErrorIs(t, err, ErrReservedRequestID)
}

func TestGraphBuilder_NodesKeepDefinitionOrder(t *testing.T) {
	builder := NewGraphBuilder(NewCycleDetector())

	graph, err := builder.Build([]SagaRequest{
		request("C"),
		request("A", "C"),
		request("B", "C"),
	})
	assert.NoError(t, err)

	var ids []string
	for _, node := range graph.Nodes() {
		ids = append(ids, node.ID())
	}
	assert.Equal(t, []string{"C", "A", "B"}, ids)
}
