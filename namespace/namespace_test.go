package namespace

import (
	"context"
	"testing"

	"cex/node"
	"cex/serializer"
	"cex/typetag"
)

func newSink(t *testing.T, name string) *node.Node {
	t.Helper()
	n, err := node.New(name, func(ctx context.Context) error { return nil }, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestAddRootNodeChains(t *testing.T) {
	ns := New("NS", "path")
	a := newSink(t, "A")
	b := newSink(t, "B")
	ns.AddRootNode(a).AddRootNode(b)
	if len(ns.RootNodes) != 2 {
		t.Fatalf("expected 2 root nodes, got %d", len(ns.RootNodes))
	}
}

func TestResolveForTypeMiss(t *testing.T) {
	ns := New("NS", "path")
	if _, ok := ns.ResolveForType(typetag.Int); ok {
		t.Fatal("expected no serializer bound for an unregistered type")
	}
}

func TestCloneAsSharesNodesButNotBindings(t *testing.T) {
	ns := New("Cached", "data")
	root := newSink(t, "One")
	ns.AddRootNode(root)
	ns.AddSerializerForType(typetag.Int, serializer.JSON{})

	clone := ns.CloneAs("Another", "other_data")

	if clone.Name != "Another" || clone.Path != "other_data" {
		t.Fatal("clone must have its own name and path")
	}
	if len(clone.RootNodes) != 1 || clone.RootNodes[0] != root {
		t.Fatal("clone must reuse the original root node by reference")
	}
	if _, ok := clone.ResolveForType(typetag.Int); !ok {
		t.Fatal("clone should start with a copy of the source's serializer bindings")
	}

	clone.AddSerializerForType(typetag.String, serializer.JSON{})
	if _, ok := ns.ResolveForType(typetag.String); ok {
		t.Fatal("mutating the clone's serializer bindings must not affect the original")
	}
}

type stubRunner struct {
	gotNS *Namespace
}

func (s *stubRunner) Run(ctx context.Context, ns *Namespace) error {
	s.gotNS = ns
	return nil
}

func TestRunDelegatesToRunner(t *testing.T) {
	ns := New("NS", "path")
	r := &stubRunner{}
	if err := ns.Run(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if r.gotNS != ns {
		t.Fatal("expected Run to hand the namespace itself to the runner")
	}
}
