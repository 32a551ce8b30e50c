// Package graphbuild implements the Graph builder (spec §4.6, C6): an
// iterative DFS over a namespace's root nodes that allocates exactly one
// Executor per distinct node and wires successor edges between them,
// grounded on the original prototype's NamespaceExecutor.build_graph.
package graphbuild

import (
	"cex/internal/graphwalk"
	"cex/node"
)

// Executor is the 1:1 runtime counterpart of a declared Node. The scheduler
// (package engine) attaches state and resolved inputs to it at run time.
type Executor struct {
	Node       *node.Node
	Successors []*Executor

	successorSet map[*Executor]bool
}

func newExecutor(n *node.Node) *Executor {
	return &Executor{Node: n, successorSet: make(map[*Executor]bool)}
}

func (e *Executor) addSuccessor(s *Executor) {
	if e.successorSet[s] {
		return
	}
	e.successorSet[s] = true
	e.Successors = append(e.Successors, s)
}

// DiGraph is the built graph of executors: the root executors plus a lookup
// from declared node to its executor, keyed by node identity so a node
// reachable through more than one path still gets exactly one Executor.
type DiGraph struct {
	Roots  []*Executor
	ByNode map[*node.Node]*Executor
}

// Build walks roots and their transitive successors, allocating one
// Executor per distinct *node.Node and one edge per distinct successor
// relationship (spec §4.6: "avoid revisiting by a visited set keyed on node
// identity").
func Build(roots []*node.Node) *DiGraph {
	g := &DiGraph{ByNode: make(map[*node.Node]*Executor)}

	getOrCreate := func(n *node.Node) *Executor {
		if e, ok := g.ByNode[n]; ok {
			return e
		}
		e := newExecutor(n)
		g.ByNode[n] = e
		return e
	}

	graphwalk.DFS(roots, func(n *node.Node) []*node.Node {
		return n.SubsequentNodes()
	}, func(n *node.Node, successors []*node.Node) {
		e := getOrCreate(n)
		for _, s := range successors {
			e.addSuccessor(getOrCreate(s))
		}
	})

	for _, r := range roots {
		g.Roots = append(g.Roots, getOrCreate(r))
	}
	return g
}

// TopologicalOrder returns every executor in g in a topological order
// (Kahn's algorithm), suitable for the scheduler's preparation and
// execution phases. The graph is assumed acyclic; validate.Namespace must
// run first to guarantee this.
func (g *DiGraph) TopologicalOrder() []*Executor {
	indegree := make(map[*Executor]int, len(g.ByNode))
	for _, e := range g.ByNode {
		if _, ok := indegree[e]; !ok {
			indegree[e] = 0
		}
		for _, s := range e.Successors {
			indegree[s]++
		}
	}

	queue := make([]*Executor, 0, len(g.ByNode))
	for e, deg := range indegree {
		if deg == 0 {
			queue = append(queue, e)
		}
	}

	order := make([]*Executor, 0, len(g.ByNode))
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		order = append(order, e)
		for _, s := range e.Successors {
			indegree[s]--
			if indegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	return order
}
