package serializer

import (
	"path/filepath"
	"testing"

	"cex/dataflow"
	"cex/typetag"
)

func TestJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	var s JSON
	if err := s.Save(path, map[string]any{"a": 1.0}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["a"] != 1.0 {
		t.Fatalf("unexpected round-trip result: %v", got)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	var s JSON
	if _, err := s.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error loading a missing file")
	}
}

func TestCSVSave(t *testing.T) {
	var s CSV
	if err := s.Save(filepath.Join(t.TempDir(), "x.json"), 5); err == nil {
		t.Fatal("expected an error for a non-[][]string value")
	}
}

func TestResolveNodeScopeWinsFirst(t *testing.T) {
	data := dataflow.New("v", typetag.Int)
	registry := NewRegistry()
	registry.AddSerializerForType(typetag.Int, JSON{})

	nodeScope := func(typetag.Tag) (Serializer, bool) { return CSV{}, true }
	s, err := Resolve(data, nodeScope, nil, registry)
	if err != nil {
		t.Fatal(err)
	}
	if s.FileExtension() != ".csv" {
		t.Fatalf("expected node scope to win, got %s", s.FileExtension())
	}
}

func TestResolveFallsBackToExtension(t *testing.T) {
	data := dataflow.New("v", typetag.Unknown).WithPath("/tmp/x.yaml")
	registry := NewRegistry()
	s, err := Resolve(data, nil, nil, registry)
	if err != nil {
		t.Fatal(err)
	}
	if s.FileExtension() != ".yaml" {
		t.Fatalf("expected yaml default by extension, got %s", s.FileExtension())
	}
}

func TestResolveUnresolvedWithoutPathOrTypeBinding(t *testing.T) {
	data := dataflow.New("v", typetag.Of("custom"))
	registry := NewRegistry()
	if _, err := Resolve(data, nil, nil, registry); err == nil {
		t.Fatal("expected an unresolved serializer error")
	}
}
