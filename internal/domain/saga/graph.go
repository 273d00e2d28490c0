package saga

// Node wraps one SagaRequest within a built graph. Forward edges point at
// children; reverse edges are kept alongside so compensation can walk the
// same arena backwards without rebuilding anything.
type Node struct {
	request  SagaRequest
	children []*Node
	parents  []*Node
}

func (n *Node) Request() SagaRequest {
	return n.request
}

func (n *Node) ID() string {
	return n.request.ID
}

func (n *Node) Children() []*Node {
	return n.children
}

func (n *Node) Parents() []*Node {
	return n.parents
}

func (n *Node) addChild(child *Node) {
	n.children = append(n.children, child)
	child.parents = append(child.parents, n)
}

// SingleLeafDAG owns every node of one saga instance. There is exactly one
// root (the start marker) and exactly one leaf (the end marker) reachable
// from every node. Immutable once built; never shared across instances.
type SingleLeafDAG struct {
	root  *Node
	leaf  *Node
	nodes map[string]*Node
	order []string
}

// Root returns the synthetic start node.
func (g *SingleLeafDAG) Root() *Node {
	return g.root
}

// Leaf returns the synthetic end node.
func (g *SingleLeafDAG) Leaf() *Node {
	return g.leaf
}

// Node looks up a node by request id, sentinels included.
func (g *SingleLeafDAG) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the non-sentinel nodes in definition order.
func (g *SingleLeafDAG) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Size returns the number of non-sentinel nodes.
func (g *SingleLeafDAG) Size() int {
	return len(g.order)
}
