package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cex/cexerr"
	"cex/dataflow"
	"cex/graphbuild"
	"cex/meta"
	"cex/namespace"
	"cex/node"
	"cex/serializer"
	"cex/typetag"
)

// execute implements the execution phase (spec §4.7): topological walk,
// emitting a SKIPPED node's stored output into its successors' inbox
// untouched, and for everything else resolving inputs, invoking the node,
// persisting cached output, and updating the metadata store. A node
// entering ERROR aborts the run without attempting any rollback of
// already-persisted output, matching spec §7's RuntimeFailure semantics.
func (e *Engine) execute(ctx context.Context, ns *namespace.Namespace, order []*graphbuild.Executor, states map[*graphbuild.Executor]State, nsMeta *meta.NamespaceMeta) error {
	inbox := make(map[*graphbuild.Executor][]dataflow.DataInfo)
	e.log.Infof("started execution of namespace %s", ns.Name)

	for _, ex := range order {
		n := ex.Node

		if states[ex] == StateSkipped {
			e.log.Infof("skipping node %s (unchanged)", n.Name)
			e.notify(ns.Name, n.Name, StateSkipped)
			e.propagateSkipped(ns, ex, inbox)
			continue
		}

		states[ex] = StateRunning
		e.notify(ns.Name, n.Name, StateRunning)

		args, resolved, err := e.resolveInputs(ns, n, inbox[ex])
		if err != nil {
			states[ex] = StateError
			e.notify(ns.Name, n.Name, StateError)
			return err
		}

		result, err := n.Invoke(ctx, args)
		if err != nil {
			states[ex] = StateError
			e.notify(ns.Name, n.Name, StateError)
			return cexerr.NewRuntimeFailure(n.Name, cexerr.KindUserFunction, err)
		}
		if n.OutputName() != "" && result == nil {
			states[ex] = StateError
			e.notify(ns.Name, n.Name, StateError)
			return cexerr.NewRuntimeFailure(n.Name, cexerr.KindMetaMissing,
				fmt.Errorf("expected output from node %s is missing", n.Name))
		}
		if n.OutputName() != "" && !n.CheckOutputType(result) {
			states[ex] = StateError
			e.notify(ns.Name, n.Name, StateError)
			return cexerr.NewRuntimeFailure(n.Name, cexerr.KindTypeMismatch,
				fmt.Errorf("produced value of type %T does not match node %s's declared output type", result, n.Name))
		}

		out, err := e.persistOutput(ctx, ns, n, result)
		if err != nil {
			states[ex] = StateError
			e.notify(ns.Name, n.Name, StateError)
			return err
		}

		nm := nodeMetaEntry(nsMeta, n)
		for paramName, source := range resolved {
			nm.UpdateInputHash(paramName, source.Hash)
		}
		if n.IsCached() && n.OutputName() != "" {
			nm.UpdateOutputHash(out.Hash)
		}

		states[ex] = StateExecuted
		e.notify(ns.Name, n.Name, StateExecuted)

		if out.Name != "" {
			for _, s := range ex.Successors {
				inbox[s] = append(inbox[s], out)
			}
		}
	}

	e.log.Infof("finished executing namespace %s", ns.Name)
	return nil
}

// propagateSkipped hands a skipped node's previously persisted output
// (located by recomputing its path, never re-executing) to its successors'
// inbox, carrying the hash of the file currently at that path (rehashed from
// disk, not the metadata store's recorded value) and no in-memory value; a downstream
// reader loads it lazily through its own serializer resolution.
func (e *Engine) propagateSkipped(ns *namespace.Namespace, ex *graphbuild.Executor, inbox map[*graphbuild.Executor][]dataflow.DataInfo) {
	n := ex.Node
	out, ok := outputInfo(ex)
	if !ok || len(ex.Successors) == 0 {
		return
	}

	if n.IsCached() {
		if path, err := e.outputPath(ns, n); err == nil {
			out = out.WithPath(path)
		}
		out = out.WithHash(e.currentOutputHash(ns, n))
	}
	for _, s := range ex.Successors {
		inbox[s] = append(inbox[s], out)
	}
}

// resolveInputs binds one argument per declared parameter, in order,
// against the available candidates (inbox entries plus the node's own
// advertised file inputs). It returns the resolved source DataInfo for each
// parameter (used afterward to update the metadata store's input hashes)
// alongside the actual argument values.
func (e *Engine) resolveInputs(ns *namespace.Namespace, n *node.Node, available []dataflow.DataInfo) ([]any, map[string]dataflow.DataInfo, error) {
	files, err := e.fileInputs(ns, n)
	if err != nil {
		return nil, nil, cexerr.NewRuntimeFailure(n.Name, cexerr.KindSerializerIO, err)
	}
	candidates := append(append([]dataflow.DataInfo{}, available...), files...)

	params := n.Params()
	args := make([]any, 0, len(params))
	resolved := make(map[string]dataflow.DataInfo, len(params))
	bound := make(map[uuid.UUID]bool, len(params))

	for _, p := range params {
		required := dataflow.New(p.Name, p.Type)
		aliases := n.GetInputAliases(p.Name)
		best, score, ambiguous := required.BestMatch(candidates, aliases)

		switch {
		case score == dataflow.MatchNone:
			// spec.md §7 buckets this with the tie case below as one runtime
			// kind ("ambiguous runtime input match"): zero matches and
			// multiple equally-scored matches are both a failure to settle on
			// exactly one source, not a type mismatch of a produced value.
			return nil, nil, cexerr.NewRuntimeFailure(n.Name, cexerr.KindAmbiguousInput,
				fmt.Errorf("no input resolved for parameter %q", p.Name))
		case ambiguous:
			return nil, nil, cexerr.NewRuntimeFailure(n.Name, cexerr.KindAmbiguousInput,
				fmt.Errorf("ambiguous input for parameter %q", p.Name))
		}
		if bound[best.ID] {
			return nil, nil, cexerr.NewRuntimeFailure(n.Name, cexerr.KindDoubleBinding,
				fmt.Errorf("input %q is already bound to another parameter", best.Name))
		}
		bound[best.ID] = true

		value := best.Value
		if !best.HasValue() {
			loaded, err := e.loadValue(ns, n, p.Name, best)
			if err != nil {
				return nil, nil, cexerr.NewRuntimeFailure(n.Name, cexerr.KindSerializerIO, err)
			}
			value = loaded
		}

		args = append(args, value)
		resolved[p.Name] = best
	}
	return args, resolved, nil
}

// loadValue loads a file-backed input's content through the three-tier
// serializer resolution protocol (spec §4.1), used whenever a bound source
// carries a path but no in-memory value (a SKIPPED predecessor's output, or
// a raw file input).
func (e *Engine) loadValue(ns *namespace.Namespace, n *node.Node, paramName string, d dataflow.DataInfo) (any, error) {
	if !d.HasPath() {
		return nil, fmt.Errorf("input %q has neither a value nor a path", d.Name)
	}
	nodeScope := func(typetag.Tag) (serializer.Serializer, bool) {
		return n.InputSerializerFor(paramName)
	}
	ser, err := serializer.Resolve(d, nodeScope, ns.ResolveForType, e.serializers)
	if err != nil {
		return nil, err
	}
	return ser.Load(d.Path)
}
