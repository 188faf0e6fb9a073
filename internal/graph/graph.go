package graph

// #region nodes
// Node is a stage of the pipeline cycle.
type Node string

const (
	NodeContextIngested Node = "ContextIngested"
	NodeFactsExtracted  Node = "FactsExtracted"
	NodeDriftChecked    Node = "DriftChecked"
)

// transitions defines the fixed pipeline cycle. Pure static lookup, total
// over all defined nodes.
var transitions = map[Node]Node{
	NodeContextIngested: NodeFactsExtracted,
	NodeFactsExtracted:  NodeDriftChecked,
	NodeDriftChecked:    NodeContextIngested,
}

// Next returns the successor of node in the pipeline cycle.
// The second return is false for an unknown node.
func Next(node Node) (Node, bool) {
	n, ok := transitions[node]
	return n, ok
}

// Known reports whether node is a defined pipeline node.
func Known(node Node) bool {
	_, ok := transitions[node]
	return ok
}

// Nodes returns all defined pipeline nodes in cycle order starting from
// ContextIngested.
func Nodes() []Node {
	return []Node{NodeContextIngested, NodeFactsExtracted, NodeDriftChecked}
}

// CycleHead is the node a completed cycle returns to.
const CycleHead = NodeContextIngested

// #endregion nodes
