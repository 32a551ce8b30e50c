package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cex/internal/cexlog"
	"cex/namespace"
	"cex/node"
	"cex/serializer"
	"cex/typetag"
)

func newEngine(root string) *Engine {
	return New().SetRootPath(root).WithLogger(cexlog.Discard())
}

// TestSequentialCacheHit is spec §8 scenario S1: one() -> double(y) ->
// square(z) chained via aliases on "result"; running twice must execute
// every node exactly once.
func TestSequentialCacheHit(t *testing.T) {
	root := t.TempDir()
	intTag := typetag.Int
	runs := map[string]int{}

	one, err := node.New("One", func(ctx context.Context) (int, error) {
		runs["One"]++
		return 1, nil
	}, nil, &intTag, node.WithOutputName("result"))
	require.NoError(t, err)

	double, err := node.New("Double", func(ctx context.Context, y int) (int, error) {
		runs["Double"]++
		return y * 2, nil
	}, []node.Param{{Name: "y", Type: typetag.Int}}, &intTag,
		node.WithOutputName("result"), node.WithAlias("y", "result"))
	require.NoError(t, err)

	square, err := node.New("Square", func(ctx context.Context, z int) (int, error) {
		runs["Square"]++
		return z * z, nil
	}, []node.Param{{Name: "z", Type: typetag.Int}}, &intTag,
		node.WithOutputName("result"), node.WithAlias("z", "result"))
	require.NoError(t, err)

	one.ContinueWith(double)
	double.ContinueWith(square)

	ns := namespace.New("SequentialNamespace", "seq")
	ns.AddSerializerForType(typetag.Int, serializer.JSON{})
	ns.AddRootNode(one)

	eng := newEngine(root)
	require.NoError(t, eng.Run(context.Background(), ns))
	require.Equal(t, 1, runs["One"])
	require.Equal(t, 1, runs["Double"])
	require.Equal(t, 1, runs["Square"])

	for _, want := range []struct {
		dir   string
		value string
	}{
		{"One", "1"},
		{"Double", "2"},
		{"Square", "4"},
	} {
		raw, err := os.ReadFile(filepath.Join(root, "seq", want.dir, "result.json"))
		require.NoError(t, err)
		require.JSONEq(t, want.value, string(raw))
	}

	// Second run with no changes: every node must be skipped, no function
	// invoked again, and files untouched.
	require.NoError(t, eng.Run(context.Background(), ns))
	require.Equal(t, 1, runs["One"])
	require.Equal(t, 1, runs["Double"])
	require.Equal(t, 1, runs["Square"])

	for _, want := range []struct {
		dir   string
		value string
	}{
		{"One", "1"},
		{"Double", "2"},
		{"Square", "4"},
	} {
		raw, err := os.ReadFile(filepath.Join(root, "seq", want.dir, "result.json"))
		require.NoError(t, err)
		require.JSONEq(t, want.value, string(raw))
	}
}

func dictTag() typetag.Tag { return typetag.Of("dict") }

// TestDiamondJoin is spec §8 scenario S2: load feeds two independent
// transforms, which join at combine. The combined sum is 250 on its first
// run, and manually mutating A's output file causes only combine to
// re-execute on the next run — A stays SKIPPED even though its own output
// changed underneath it, because A's skip decision only looks at its own
// inputs.
func TestDiamondJoin(t *testing.T) {
	root := t.TempDir()
	dt := dictTag()
	runs := map[string]int{}

	load, err := node.New("Load", func(ctx context.Context) (map[string]any, error) {
		runs["Load"]++
		return map[string]any{"value": 100.0}, nil
	}, nil, &dt, node.WithOutputName("raw_data"))
	require.NoError(t, err)

	transformA, err := node.New("TransformA", func(ctx context.Context, data map[string]any) (map[string]any, error) {
		runs["TransformA"]++
		return map[string]any{"transformed_val": data["value"].(float64) * 2}, nil
	}, []node.Param{{Name: "data", Type: dt}}, &dt, node.WithOutputName("transformed_A"))
	require.NoError(t, err)

	transformB, err := node.New("TransformB", func(ctx context.Context, data map[string]any) (map[string]any, error) {
		runs["TransformB"]++
		return map[string]any{"transformed_val": data["value"].(float64) / 2}, nil
	}, []node.Param{{Name: "data", Type: dt}}, &dt, node.WithOutputName("transformed_B"))
	require.NoError(t, err)

	combine, err := node.New("Combine", func(ctx context.Context, resultA, resultB map[string]any) (map[string]any, error) {
		runs["Combine"]++
		sum := resultA["transformed_val"].(float64) + resultB["transformed_val"].(float64)
		return map[string]any{"combined_sum": sum}, nil
	}, []node.Param{{Name: "resultA", Type: dt}, {Name: "resultB", Type: dt}}, &dt,
		node.WithOutputName("combined_sum"),
		node.WithAlias("resultA", "transformed_A"),
		node.WithAlias("resultB", "transformed_B"))
	require.NoError(t, err)

	load.ContinueWith(transformA, transformB)
	transformA.ContinueWith(combine)
	transformB.ContinueWith(combine)

	ns := namespace.New("DiamondNamespace", "diamond")
	ns.AddSerializerForType(dt, serializer.JSON{})
	ns.AddRootNode(load)

	eng := newEngine(root)
	require.NoError(t, eng.Run(context.Background(), ns))
	require.Equal(t, 1, runs["Load"])
	require.Equal(t, 1, runs["TransformA"])
	require.Equal(t, 1, runs["TransformB"])
	require.Equal(t, 1, runs["Combine"])

	combinedPath := filepath.Join(root, "diamond", "Combine", "combined_sum.json")
	raw, err := os.ReadFile(combinedPath)
	require.NoError(t, err)
	var combined map[string]any
	require.NoError(t, json.Unmarshal(raw, &combined))
	require.Equal(t, 250.0, combined["combined_sum"])

	// Manually mutate A's output file.
	aPath := filepath.Join(root, "diamond", "TransformA", "transformed_A.json")
	require.NoError(t, os.WriteFile(aPath, []byte(`{"transformed_val": 999}`), 0o644))

	require.NoError(t, eng.Run(context.Background(), ns))
	require.Equal(t, 1, runs["Load"], "Load must stay skipped")
	require.Equal(t, 1, runs["TransformA"], "TransformA must stay skipped even though its own output file was edited")
	require.Equal(t, 1, runs["TransformB"], "TransformB must stay skipped")
	require.Equal(t, 2, runs["Combine"], "Combine must re-execute once A's output content changed")

	raw, err = os.ReadFile(combinedPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &combined))
	require.Equal(t, 999.0+50.0, combined["combined_sum"])
}

// TestFileInputDrivenNode is spec §8 scenario S3: a node advertising an
// input_directory is driven entirely by file contents, with no upstream
// producer. It runs once per distinct file content.
func TestFileInputDrivenNode(t *testing.T) {
	root := t.TempDir()
	runs := 0

	printer, err := node.New("Printer", func(ctx context.Context, data map[string]any) error {
		runs++
		return nil
	}, []node.Param{{Name: "data", Type: typetag.Unknown}}, nil, node.WithInputDirectory("input"))
	require.NoError(t, err)

	ns := namespace.New("CachedNamespace", "data")
	ns.AddRootNode(printer)

	inputPath := filepath.Join(root, "data", "input", "data.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(inputPath), 0o755))
	require.NoError(t, os.WriteFile(inputPath, []byte(`{"k":1}`), 0o644))

	eng := newEngine(root)
	require.NoError(t, eng.Run(context.Background(), ns))
	require.Equal(t, 1, runs)

	// Second run, unchanged file: skipped.
	require.NoError(t, eng.Run(context.Background(), ns))
	require.Equal(t, 1, runs)

	// Overwrite the file: must re-run.
	require.NoError(t, os.WriteFile(inputPath, []byte(`{"k":2}`), 0o644))
	require.NoError(t, eng.Run(context.Background(), ns))
	require.Equal(t, 2, runs)
}

// TestAmbiguousInputAbortsRun is spec §8 scenario S4: two predecessors each
// emit an output named "x" of the same type into a single successor
// parameter "x"; the run must abort in validation, before any node executes.
func TestAmbiguousInputAbortsRun(t *testing.T) {
	root := t.TempDir()
	intTag := typetag.Int
	runs := 0

	producerA, err := node.New("ProducerA", func(ctx context.Context) (int, error) {
		return 1, nil
	}, nil, &intTag, node.WithOutputName("x"))
	require.NoError(t, err)

	producerB, err := node.New("ProducerB", func(ctx context.Context) (int, error) {
		return 2, nil
	}, nil, &intTag, node.WithOutputName("x"))
	require.NoError(t, err)

	consumer, err := node.New("Consumer", func(ctx context.Context, x int) error {
		runs++
		return nil
	}, []node.Param{{Name: "x", Type: typetag.Int}}, nil)
	require.NoError(t, err)

	producerA.ContinueWith(consumer)
	producerB.ContinueWith(consumer)

	ns := namespace.New("AmbiguousNamespace", "ambiguous")
	ns.AddSerializerForType(typetag.Int, serializer.JSON{})
	ns.AddRootNode(producerA)
	ns.AddRootNode(producerB)

	eng := newEngine(root)
	err = eng.Run(context.Background(), ns)
	require.Error(t, err)
	require.Equal(t, 0, runs, "no node should execute once validation fails")
}

// TestAliasResolvesCollision is spec §8 scenario S5: same setup as S4, but
// the consumer aliases its parameter to a name only one producer uses, so
// validation passes and the value from that producer is bound.
func TestAliasResolvesCollision(t *testing.T) {
	root := t.TempDir()
	intTag := typetag.Int
	var got int

	producerA, err := node.New("ProducerA", func(ctx context.Context) (int, error) {
		return 1, nil
	}, nil, &intTag, node.WithOutputName("x"))
	require.NoError(t, err)

	producerB, err := node.New("ProducerB", func(ctx context.Context) (int, error) {
		return 2, nil
	}, nil, &intTag, node.WithOutputName("x_from_B"))
	require.NoError(t, err)

	consumer, err := node.New("Consumer", func(ctx context.Context, x int) error {
		got = x
		return nil
	}, []node.Param{{Name: "x", Type: typetag.Int}}, nil, node.WithAlias("x", "x_from_B"))
	require.NoError(t, err)

	producerA.ContinueWith(consumer)
	producerB.ContinueWith(consumer)

	ns := namespace.New("AliasNamespace", "alias")
	ns.AddSerializerForType(typetag.Int, serializer.JSON{})
	ns.AddRootNode(producerA)
	ns.AddRootNode(producerB)

	eng := newEngine(root)
	require.NoError(t, eng.Run(context.Background(), ns))
	require.Equal(t, 2, got, "consumer must bind ProducerB's value, the only one named x_from_B")
}

// TestNamespaceCloneIndependentCaching is spec §8 scenario S6: cloning a
// namespace shares the node graph by reference but produces independent
// output trees and independent cache entries per namespace.
func TestNamespaceCloneIndependentCaching(t *testing.T) {
	root := t.TempDir()
	intTag := typetag.Int
	runs := 0

	producer, err := node.New("Producer", func(ctx context.Context) (int, error) {
		runs++
		return 7, nil
	}, nil, &intTag, node.WithOutputName("value"))
	require.NoError(t, err)

	ns1 := namespace.New("NS1", "ns1")
	ns1.AddSerializerForType(typetag.Int, serializer.JSON{})
	ns1.AddRootNode(producer)

	ns2 := ns1.CloneAs("NS2", "ns2")

	eng := newEngine(root)
	require.NoError(t, eng.Run(context.Background(), ns1))
	require.NoError(t, eng.Run(context.Background(), ns2))
	require.Equal(t, 2, runs, "each namespace must run the shared node independently on first use")

	for _, dir := range []string{"ns1", "ns2"} {
		raw, err := os.ReadFile(filepath.Join(root, dir, "Producer", "value.json"))
		require.NoError(t, err)
		require.JSONEq(t, "7", string(raw))
	}

	// Re-running both: cache hits independently, no further executions.
	require.NoError(t, eng.Run(context.Background(), ns1))
	require.NoError(t, eng.Run(context.Background(), ns2))
	require.Equal(t, 2, runs)
}
