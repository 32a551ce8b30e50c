// Package engine implements the Scheduler/executor (spec §4.7, C7): the
// component that turns a validated namespace graph into a topological walk
// that skips unchanged cached nodes, resolves and invokes the rest, and
// persists their output. Grounded on the original prototype's
// NamespaceExecutor (execution/namespace.py) and NodeExecutor
// (execution/node.py), reworked around Go's typed node builder and
// reflection-based invocation instead of Python's live signature
// inspection.
package engine

import (
	"context"
	"os"
	"path/filepath"

	"cex/cexerr"
	"cex/dataflow"
	"cex/graphbuild"
	"cex/internal/cexlog"
	"cex/internal/hashcache"
	"cex/internal/notify"
	"cex/meta"
	"cex/namespace"
	"cex/node"
	"cex/serializer"
	"cex/storage"
	"cex/typetag"
	"cex/validate"
)

// Engine is the fluent entry point matching the original prototype's
// CexExecutor: configure a root path and serializer bindings, then Run one
// or more namespaces against it. The zero value is not usable; construct
// with New.
type Engine struct {
	rootPath    string
	serializers *serializer.Registry
	metaStore   meta.Backend
	mirror      storage.Store // optional off-box artifact mirror (e.g. storage.S3Store)
	hasher      *hashcache.Cache
	log         cexlog.Logger
	observer    *notify.Hub
}

// New returns an Engine with CEX's built-in serializers registered and
// default logging to stderr. Chain the With*/Set* methods to configure it.
func New() *Engine {
	return &Engine{
		serializers: serializer.NewRegistry(),
		hasher:      hashcache.New(0),
		log:         cexlog.Default(),
	}
}

// SetRootPath sets the filesystem root all namespace paths, the metadata
// store, and the hash cache resolve against.
func (e *Engine) SetRootPath(path string) *Engine {
	e.rootPath = path
	return e
}

// AddSerializer registers an engine-scope default serializer, consulted by
// file extension (spec §4.1 tier 3).
func (e *Engine) AddSerializer(s serializer.Serializer) *Engine {
	e.serializers.AddSerializer(s)
	return e
}

// AddSerializerForType binds an engine-scope serializer to a type tag
// (spec §4.1 tier 3, checked before the extension-based defaults).
func (e *Engine) AddSerializerForType(t typetag.Tag, s serializer.Serializer) *Engine {
	e.serializers.AddSerializerForType(t, s)
	return e
}

// WithMetaStore overrides the metadata backend (meta.Store or
// metapg.Store). If unset, Run opens a meta.Store rooted at RootPath.
func (e *Engine) WithMetaStore(m meta.Backend) *Engine {
	e.metaStore = m
	return e
}

// WithArtifactMirror attaches an optional off-box copy target: every cached
// output, after being written locally, is also pushed there. Mirror
// failures are logged and never fail the run.
func (e *Engine) WithArtifactMirror(s storage.Store) *Engine {
	e.mirror = s
	return e
}

// WithLogger overrides the engine's logger.
func (e *Engine) WithLogger(l cexlog.Logger) *Engine {
	e.log = l
	return e
}

// WithObserver attaches a notify.Hub that receives every node state
// transition as it happens.
func (e *Engine) WithObserver(h *notify.Hub) *Engine {
	e.observer = h
	return e
}

// WithHashCacheCapacity overrides the file-hash memoization cache's size.
func (e *Engine) WithHashCacheCapacity(capacity int) *Engine {
	e.hasher = hashcache.New(capacity)
	return e
}

// Run validates ns, builds its executor graph, and walks it: preparation
// decides which cached nodes can be skipped, execution invokes the rest in
// topological order and persists their output. Implements
// namespace.Runner, so namespaces can also be run via ns.Run(ctx, engine).
func (e *Engine) Run(ctx context.Context, ns *namespace.Namespace) error {
	if e.metaStore == nil {
		store, err := meta.Open(e.rootPath)
		if err != nil {
			return err
		}
		e.metaStore = store
	}

	e.log.Infof("validating namespace %s", ns.Name)
	if vf := validate.Namespace(ns, validate.Deps{
		RootPath: e.rootPath,
		Engine:   e.serializers,
		Hasher:   e.hasher,
	}); vf != nil {
		return vf
	}

	graph := graphbuild.Build(ns.RootNodes)
	order := graph.TopologicalOrder()
	nsMeta := e.metaStore.Namespace(ns.Name)

	e.log.Infof("preparing namespace %s", ns.Name)
	states := e.prepare(ns, order, nsMeta)

	if err := e.execute(ctx, ns, order, states, nsMeta); err != nil {
		return err
	}

	entries := make([]meta.NodeEntry, 0, len(order))
	for _, ex := range order {
		entries = append(entries, meta.NodeEntry{
			PersistentHash: ex.Node.PersistentHash(),
			ParamNames:     paramNames(ex.Node),
		})
	}
	nsMeta.UpdateFrom(entries)

	if err := e.metaStore.Sync(); err != nil {
		e.log.Errorf("metadata sync failed: %v", err)
	}
	return nil
}

func paramNames(n *node.Node) []string {
	params := n.Params()
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

func (e *Engine) notify(ns, nodeName string, s State) {
	if e.observer == nil {
		return
	}
	e.observer.Publish(notify.Event{Namespace: ns, Node: nodeName, State: s.String()})
}

// outputInfo returns the DataInfo a node contributes to its successors, if
// it produces output at all.
func outputInfo(ex *graphbuild.Executor) (dataflow.DataInfo, bool) {
	typ, ok := ex.Node.ReturnType()
	if !ok {
		return dataflow.DataInfo{}, false
	}
	return dataflow.New(ex.Node.OutputName(), typ), true
}

// fileInputs lists a node's advertised input-directory files, resolved
// against the namespace's path under the engine root.
func (e *Engine) fileInputs(ns *namespace.Namespace, n *node.Node) ([]dataflow.DataInfo, error) {
	if n.InputDirectory() == "" {
		return nil, nil
	}
	resolvedDir := filepath.Join(e.rootPath, ns.Path, n.InputDirectory())
	return n.GetAvailableFileInputs(resolvedDir, e.hasher)
}

// resolveOutputSerializer resolves the serializer that will persist a
// node's output: its own override, else namespace/engine scope resolution.
func (e *Engine) resolveOutputSerializer(ns *namespace.Namespace, n *node.Node, sample dataflow.DataInfo) (serializer.Serializer, error) {
	if s, ok := n.OutputSerializer(); ok {
		return s, nil
	}
	s, err := serializer.Resolve(sample, nil, ns.ResolveForType, e.serializers)
	if err != nil {
		return nil, cexerr.NewRuntimeFailure(n.Name, cexerr.KindUnresolvedSerial, err)
	}
	return s, nil
}

// outputPath computes where a cached node's output lives on disk, without
// requiring the node to have actually run this invocation (needed when a
// node is SKIPPED so downstream nodes still know where to load its value
// from).
func (e *Engine) outputPath(ns *namespace.Namespace, n *node.Node) (string, error) {
	typ, _ := n.ReturnType()
	sample := dataflow.New(n.OutputName(), typ)
	ser, err := e.resolveOutputSerializer(ns, n, sample)
	if err != nil {
		return "", err
	}
	return filepath.Join(e.rootPath, ns.Path, n.OutputDirectory(), n.OutputName()+ser.FileExtension()), nil
}

// persistOutput saves a node's freshly produced value if it is cached, and
// returns the DataInfo its successors will see: carrying the in-memory
// value plus, for cached nodes, the path and content hash of the persisted
// copy.
func (e *Engine) persistOutput(ctx context.Context, ns *namespace.Namespace, n *node.Node, value any) (dataflow.DataInfo, error) {
	typ, _ := n.ReturnType()
	out := dataflow.New(n.OutputName(), typ).WithValue(value)

	// A sink has nothing to write to disk regardless of its cache flag; its
	// skip decision rests entirely on its own input hashes (spec §8 scenario
	// S3), never on an output hash it will never have.
	if !n.IsCached() || n.OutputName() == "" {
		return out, nil
	}

	ser, err := e.resolveOutputSerializer(ns, n, out)
	if err != nil {
		return dataflow.DataInfo{}, err
	}

	fullDir := filepath.Join(e.rootPath, ns.Path, n.OutputDirectory())
	fileName := n.OutputName() + ser.FileExtension()
	fullPath := filepath.Join(fullDir, fileName)

	if err := ser.Save(fullPath, value); err != nil {
		return dataflow.DataInfo{}, cexerr.NewRuntimeFailure(n.Name, cexerr.KindSerializerIO, err)
	}

	hash, err := hashcache.HashFile(fullPath)
	if err != nil {
		return dataflow.DataInfo{}, cexerr.NewRuntimeFailure(n.Name, cexerr.KindSerializerIO, err)
	}

	if e.mirror != nil {
		if raw, readErr := os.ReadFile(fullPath); readErr == nil {
			relPath := filepath.ToSlash(filepath.Join(ns.Path, n.OutputDirectory(), fileName))
			if mirrorErr := e.mirror.Write(ctx, relPath, raw); mirrorErr != nil {
				e.log.Errorf("artifact mirror failed for node %s: %v", n.Name, mirrorErr)
			}
		}
	}

	return out.WithPath(fullPath).WithHash(hash), nil
}

// currentOutputHash returns the SHA-256 hash of whatever currently sits at a
// cached node's computed output path, or "" if the path can't be resolved or
// the file is absent. Deliberately rehashed from disk rather than taken from
// the metadata store's last-recorded value, so a manual edit of a node's
// output file between runs is visible to downstream cached nodes even though
// the node that produced it stays SKIPPED (spec §8 scenario S2).
func (e *Engine) currentOutputHash(ns *namespace.Namespace, n *node.Node) string {
	path, err := e.outputPath(ns, n)
	if err != nil {
		return ""
	}
	hash, err := e.hasher.Hash(path)
	if err != nil {
		return ""
	}
	return hash
}

func nodeMetaEntry(nsMeta *meta.NamespaceMeta, n *node.Node) *meta.NodeMeta {
	hash := n.PersistentHash()
	if m, ok := nsMeta.GetNodeMeta(hash); ok {
		return m
	}
	m := &meta.NodeMeta{PersistentHash: hash, InputHashes: make(map[string]string)}
	if nsMeta.Nodes == nil {
		nsMeta.Nodes = make(map[string]*meta.NodeMeta)
	}
	nsMeta.Nodes[hash] = m
	return m
}

var _ namespace.Runner = (*Engine)(nil)
