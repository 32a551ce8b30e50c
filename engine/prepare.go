package engine

import (
	"cex/dataflow"
	"cex/graphbuild"
	"cex/meta"
	"cex/namespace"
)

// prepare implements the preparation phase (spec §4.7): walk the graph in
// topological order, populate each successor's inbox with the predecessors'
// output DataInfo (hash-enriched for cached nodes), and decide READY vs
// SKIPPED for every cached node by comparing required-input hashes against
// the metadata store. Non-cached nodes are always READY.
func (e *Engine) prepare(ns *namespace.Namespace, order []*graphbuild.Executor, nsMeta *meta.NamespaceMeta) map[*graphbuild.Executor]State {
	states := make(map[*graphbuild.Executor]State, len(order))
	inbox := make(map[*graphbuild.Executor][]dataflow.DataInfo)

	for _, ex := range order {
		n := ex.Node
		available := append([]dataflow.DataInfo{}, inbox[ex]...)
		if files, err := e.fileInputs(ns, n); err == nil {
			available = append(available, files...)
		}

		if !n.IsCached() {
			states[ex] = StateReady
		} else {
			nodeMeta, _ := nsMeta.GetNodeMeta(n.PersistentHash())
			// A node that has never run under this persistent hash (no
			// recorded metadata entry at all) must run regardless of how
			// many inputs it declares — in particular, a zero-parameter
			// producer must not default to SKIPPED just because its empty
			// input set is trivially "current". A node that produces an
			// output additionally needs that output's hash on record: a run
			// that updated input hashes but never reached persistOutput
			// (e.g. a crash between the two) must not be mistaken for a
			// successful one. A sink has nothing to persist, so its
			// metadata entry existing at all is enough.
			state := StateReady
			hasOutput := n.OutputName() != ""
			ranBefore := nodeMeta != nil && (!hasOutput || nodeMeta.OutputHashString() != "")
			if ranBefore {
				state = StateSkipped
				for _, required := range n.GetRequiredInputs() {
					aliases := n.GetInputAliases(required.Name)
					best, score, ambiguous := required.BestMatch(available, aliases)
					if score == dataflow.MatchNone || ambiguous {
						state = StateReady
						continue
					}
					if !nodeMeta.IsCurrentInput(required.Name, best.Hash) {
						state = StateReady
					}
				}
			}
			states[ex] = state
		}

		if out, ok := outputInfo(ex); ok && len(ex.Successors) > 0 {
			if n.IsCached() {
				out = out.WithHash(e.currentOutputHash(ns, n))
			}
			for _, s := range ex.Successors {
				inbox[s] = append(inbox[s], out)
			}
		}
	}

	return states
}
