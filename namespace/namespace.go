// Package namespace implements the Namespace model (spec §4.4, C4): a named,
// path-scoped collection of root nodes and type→serializer bindings.
package namespace

import (
	"context"

	"cex/node"
	"cex/serializer"
	"cex/typetag"
)

// Namespace groups a DAG of root nodes under a name and a relative output
// path, with its own type→Serializer bindings.
type Namespace struct {
	Name string
	Path string // relative to the engine root

	RootNodes []*node.Node

	byType map[string]serializer.Serializer
}

// New creates an empty Namespace rooted at path (relative to the engine's
// root_path).
func New(name, path string) *Namespace {
	return &Namespace{
		Name:   name,
		Path:   path,
		byType: make(map[string]serializer.Serializer),
	}
}

// AddRootNode registers a root node and returns the namespace for chaining,
// matching the original prototype's add_root_node.
func (ns *Namespace) AddRootNode(n *node.Node) *Namespace {
	ns.RootNodes = append(ns.RootNodes, n)
	return ns
}

// AddSerializerForType binds a namespace-scope serializer for a type tag
// (spec §4.1 tier 2).
func (ns *Namespace) AddSerializerForType(t typetag.Tag, s serializer.Serializer) *Namespace {
	ns.byType[t.Key()] = s
	return ns
}

// ResolveForType resolves the namespace-scope serializer bound to a type
// tag.
func (ns *Namespace) ResolveForType(t typetag.Tag) (serializer.Serializer, bool) {
	s, ok := ns.byType[t.Key()]
	return s, ok
}

// CloneAs clones the namespace's root-node graph by reference: the returned
// Namespace shares the same *node.Node pointers (and therefore the same
// persistent hashes), but gets its own name, output path, and serializer
// map, so cached outputs and metadata stay per-namespace while node
// declarations are reused (spec §4.4 init_from, scenario S6).
func (ns *Namespace) CloneAs(newName, newPath string) *Namespace {
	clone := New(newName, newPath)
	clone.RootNodes = append(clone.RootNodes, ns.RootNodes...)
	for k, v := range ns.byType {
		clone.byType[k] = v
	}
	return clone
}

// Runner executes a namespace's DAG. *engine.Engine implements Runner; it
// lives in a separate package to avoid an import cycle between namespace
// and engine.
type Runner interface {
	Run(ctx context.Context, ns *Namespace) error
}

// Run hands this namespace to an engine-provided scheduler, matching the
// original prototype's Namespace.run().
func (ns *Namespace) Run(ctx context.Context, runner Runner) error {
	return runner.Run(ctx, ns)
}
