// Package graph compiles detected actions and collected parameters into a
// directed workflow graph and into the executor's wire format.
//
// The first node is the trigger. A branching action gets up to three labeled
// edges to the actions that follow it, in the order complete, partial,
// gibberish/none, and no plain successor edge. Any other action gets one
// plain edge to the next action, unless it is itself the target of a branch.
package graph

import (
	"fmt"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
)

// Node kinds.
const (
	KindTrigger = "trigger"
	KindAction  = "action"
)

// Branch labels in edge order.
const (
	LabelComplete  = "complete"
	LabelPartial   = "partial"
	LabelGibberish = "gibberish/none"
)

// BranchLabels are the labels of a branching node's outgoing edges.
var BranchLabels = []string{LabelComplete, LabelPartial, LabelGibberish}

// Node is one workflow step.
type Node struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	ActivityID string            `json:"activity_id"`
	Params     map[string]string `json:"params"`
}

// Edge connects two nodes. Label is set only on branch edges.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Graph is a compiled workflow.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeID returns the id of the node at position i (zero-based).
func NodeID(i int) string {
	return fmt.Sprintf("node-%d", i+1)
}

func edgeID(source, target string) string {
	return "e-" + source + "-" + target
}

// Build compiles actions in order. params are copied per node; cat decides
// which actions branch and may be nil.
func Build(actions []string, params map[string]map[string]string, cat *catalog.Catalog) *Graph {
	g := &Graph{Nodes: make([]Node, 0, len(actions)), Edges: []Edge{}}
	for i, id := range actions {
		kind := KindAction
		if i == 0 {
			kind = KindTrigger
		}
		p := make(map[string]string, len(params[id]))
		for k, v := range params[id] {
			p[k] = v
		}
		g.Nodes = append(g.Nodes, Node{ID: NodeID(i), Kind: kind, ActivityID: id, Params: p})
	}

	branchTarget := make(map[int]bool)
	for i, id := range actions {
		src := NodeID(i)
		if cat.IsBranching(id) {
			for j, label := range BranchLabels {
				t := i + 1 + j
				if t >= len(actions) {
					break
				}
				branchTarget[t] = true
				g.Edges = append(g.Edges, Edge{ID: edgeID(src, NodeID(t)), Source: src, Target: NodeID(t), Label: label})
			}
			continue
		}
		if i+1 < len(actions) && !branchTarget[i] {
			dst := NodeID(i + 1)
			g.Edges = append(g.Edges, Edge{ID: edgeID(src, dst), Source: src, Target: dst})
		}
	}
	return g
}

// Outgoing returns the edges leaving nodeID in insertion order.
func (g *Graph) Outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Activities returns the activity ids in node order.
func (g *Graph) Activities() []string {
	out := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.ActivityID
	}
	return out
}
