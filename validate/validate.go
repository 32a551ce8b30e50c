// Package validate implements the Validator (spec §4.5, C5): per-node
// structural checks plus a graph-wide reachability pass that proves every
// required input can be satisfied and unambiguously resolved before any
// node executes. Grounded on the original prototype's
// execution/validation.py, adapted to the checks Go's typed node builder
// leaves for runtime (duplicate aliases, single-serializer-on-multi-param,
// and the cross-node input-satisfiability analysis the builder cannot see).
package validate

import (
	"fmt"
	"os"
	"path/filepath"

	"cex/cexerr"
	"cex/dataflow"
	"cex/internal/hashcache"
	"cex/namespace"
	"cex/node"
	"cex/serializer"
	"cex/typetag"
)

// ValidateNode runs the per-node checks spec §4.5 assigns to the builder's
// blind spots: aliases must be non-duplicated once flattened across all
// parameters, and a single node-wide input serializer is rejected once the
// node has more than one parameter.
func ValidateNode(n *node.Node) []string {
	var messages []string

	seen := make(map[string]bool)
	for _, p := range n.Params() {
		for _, alias := range n.GetInputAliases(p.Name) {
			if seen[alias] {
				messages = append(messages, fmt.Sprintf("duplicate input alias %q on node %s", alias, n.Name))
				continue
			}
			seen[alias] = true
		}
	}

	if len(n.Params()) > 1 && n.HasSingleInputSerializer() {
		messages = append(messages, fmt.Sprintf(
			"node %s has multiple inputs but only one serializer was provided; use a per-parameter mapping instead", n.Name))
	}

	return messages
}

// Deps supplies the context the graph-wide pass needs to resolve file
// inputs and serializers the same way the engine will at run time.
type Deps struct {
	RootPath string // engine root; namespace.Path is relative to this
	Engine   *serializer.Registry
	Hasher   *hashcache.Cache
}

// Namespace runs both validation passes over a namespace's node graph and
// returns a *cexerr.ValidationFailure enumerating every defect found, or nil
// if the namespace is valid. Both passes accumulate every message before
// returning; a single malformed node never short-circuits the rest of the
// report (spec §4.5: "accumulate all messages before raising").
func Namespace(ns *namespace.Namespace, deps Deps) *cexerr.ValidationFailure {
	var messages []string

	if len(ns.RootNodes) == 0 {
		messages = append(messages, fmt.Sprintf("no root nodes provided to namespace %s", ns.Name))
	}

	nodes, predecessors, order, cyclic := topologicalOrder(ns.RootNodes)
	for _, n := range nodes {
		messages = append(messages, ValidateNode(n)...)
	}

	if cyclic {
		messages = append(messages, fmt.Sprintf("namespace %s's node graph contains a cycle", ns.Name))
		if len(messages) > 0 {
			return cexerr.NewValidationFailure(messages)
		}
		return nil
	}

	available := make(map[*node.Node][]dataflow.DataInfo)
	for _, n := range order {
		inputs := collectAvailable(ns, n, predecessors[n], available, deps)

		for _, required := range n.GetRequiredInputs() {
			aliases := n.GetInputAliases(required.Name)
			best, score, ambiguous := required.BestMatch(inputs, aliases)

			switch {
			case score == dataflow.MatchNone:
				messages = append(messages, fmt.Sprintf(
					"no suitable input was found for input %q of type %s of node %s in namespace %s",
					required.Name, required.Type, n.Name, ns.Name))
				continue
			case ambiguous:
				messages = append(messages, fmt.Sprintf(
					"ambiguous inputs detected for input %q of type %s of node %s in namespace %s",
					required.Name, required.Type, n.Name, ns.Name))
			}

			if err := resolveSerializer(n, ns, required, best, deps.Engine); err != nil {
				messages = append(messages, err.Error())
			}
		}

		if out, ok := nodeOutput(n); ok {
			available[n] = append(available[n], out)
		}
	}

	if len(messages) > 0 {
		return cexerr.NewValidationFailure(messages)
	}
	return nil
}

// topologicalOrder collects every node reachable from roots, a map from
// node to its direct predecessors, and a topological ordering (Kahn's
// algorithm). cyclic is true if no such ordering exists.
func topologicalOrder(roots []*node.Node) (nodes []*node.Node, predecessors map[*node.Node][]*node.Node, order []*node.Node, cyclic bool) {
	predecessors = make(map[*node.Node][]*node.Node)
	indegree := make(map[*node.Node]int)
	visited := make(map[*node.Node]bool)

	stack := append([]*node.Node{}, roots...)
	for _, n := range roots {
		if !indegreeSeen(indegree, n) {
			indegree[n] = 0
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		nodes = append(nodes, n)

		for _, succ := range n.SubsequentNodes() {
			predecessors[succ] = append(predecessors[succ], n)
			indegree[succ]++
			if !visited[succ] {
				stack = append(stack, succ)
			}
		}
	}

	queue := make([]*node.Node, 0, len(nodes))
	remaining := make(map[*node.Node]int, len(nodes))
	for _, n := range nodes {
		remaining[n] = indegree[n]
		if remaining[n] == 0 {
			queue = append(queue, n)
		}
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, succ := range n.SubsequentNodes() {
			remaining[succ]--
			if remaining[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	cyclic = len(order) != len(nodes)
	return nodes, predecessors, order, cyclic
}

func indegreeSeen(m map[*node.Node]int, n *node.Node) bool {
	_, ok := m[n]
	return ok
}

// collectAvailable builds the set of candidate DataInfo visible to n: the
// outputs of its already-visited predecessors plus its own declared file
// inputs.
func collectAvailable(ns *namespace.Namespace, n *node.Node, preds []*node.Node, available map[*node.Node][]dataflow.DataInfo, deps Deps) []dataflow.DataInfo {
	var inputs []dataflow.DataInfo
	for _, p := range preds {
		inputs = append(inputs, available[p]...)
	}

	if n.InputDirectory() == "" {
		return inputs
	}
	resolvedDir := filepath.Join(deps.RootPath, ns.Path, n.InputDirectory())
	if _, err := os.Stat(resolvedDir); err != nil {
		return inputs
	}
	files, err := n.GetAvailableFileInputs(resolvedDir, deps.Hasher)
	if err != nil {
		return inputs
	}
	return append(inputs, files...)
}

// nodeOutput returns the DataInfo a node contributes to its successors'
// available-input sets, if it produces output at all.
func nodeOutput(n *node.Node) (dataflow.DataInfo, bool) {
	typ, ok := n.ReturnType()
	if !ok {
		return dataflow.DataInfo{}, false
	}
	return dataflow.New(n.OutputName(), typ), true
}

// resolveSerializer proves a required input can resolve a serializer
// through the three-tier protocol (spec §4.1), the same way the engine
// will at run time, without actually loading or saving anything. Only
// inputs bound to an on-disk source (a file input, or a cached
// predecessor's persisted output) need a serializer at all; a purely
// in-memory hand-off between nodes in the same run never touches one.
func resolveSerializer(n *node.Node, ns *namespace.Namespace, required dataflow.DataInfo, bound dataflow.DataInfo, engine *serializer.Registry) error {
	if !bound.HasPath() {
		return nil
	}

	nodeScope := func(typetag.Tag) (serializer.Serializer, bool) {
		return n.InputSerializerFor(required.Name)
	}
	namespaceScope := func(t typetag.Tag) (serializer.Serializer, bool) {
		return ns.ResolveForType(t)
	}

	lookup := dataflow.New(required.Name, required.Type).WithPath(bound.Path)
	if _, err := serializer.Resolve(lookup, nodeScope, namespaceScope, engine); err != nil {
		return fmt.Errorf("unresolved serializer for input %q of node %s in namespace %s", required.Name, n.Name, ns.Name)
	}
	return nil
}
