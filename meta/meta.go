// Package meta implements the JSON-backed metadata store (spec §4.2, C2):
// the persisted record of each node's last-known input and output hashes,
// used by the scheduler to decide whether a node's cached output is still
// current.
package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	metaDirName  = ".cex"
	metaFileName = "cex.json"
)

// NodeMeta records the last-known fingerprints for one node, keyed by its
// PersistentHash. InputHashes is keyed by parameter name. OutputHash is
// empty until the node has produced output at least once, and serializes as
// JSON null rather than an empty string, matching the original prototype's
// Optional[str] field.
type NodeMeta struct {
	PersistentHash string            `json:"persistent_hash"`
	InputHashes    map[string]string `json:"input_hashes"`
	OutputHash     optionalHash      `json:"output_hash"`
}

// optionalHash marshals "" as JSON null and null as "" on the way back in,
// so a node that has never produced output round-trips as output_hash: null
// instead of an empty string.
type optionalHash string

func (h optionalHash) MarshalJSON() ([]byte, error) {
	if h == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(h))
}

func (h *optionalHash) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*h = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*h = optionalHash(s)
	return nil
}

func newNodeMeta(persistentHash string) *NodeMeta {
	return &NodeMeta{
		PersistentHash: persistentHash,
		InputHashes:    make(map[string]string),
	}
}

// IsCurrentInput reports whether the stored hash for paramName matches hash.
// A parameter never recorded, or recorded with an empty hash, is not
// current.
func (m *NodeMeta) IsCurrentInput(paramName, hash string) bool {
	if hash == "" {
		return false
	}
	stored, ok := m.InputHashes[paramName]
	return ok && stored != "" && stored == hash
}

// IsCurrentOutput reports whether the stored output hash matches hash.
func (m *NodeMeta) IsCurrentOutput(hash string) bool {
	return hash != "" && string(m.OutputHash) == hash
}

// UpdateInputHash records the current hash observed for one input.
func (m *NodeMeta) UpdateInputHash(paramName, hash string) {
	if m.InputHashes == nil {
		m.InputHashes = make(map[string]string)
	}
	m.InputHashes[paramName] = hash
}

// UpdateOutputHash records the hash of the output this node last produced.
func (m *NodeMeta) UpdateOutputHash(hash string) {
	m.OutputHash = optionalHash(hash)
}

// OutputHashString returns the recorded output hash, or "" if the node has
// never produced output. Exported for backends (e.g. metapg) that persist
// to a column rather than round-tripping through JSON.
func (m *NodeMeta) OutputHashString() string {
	return string(m.OutputHash)
}

// pruneInputs drops recorded input hashes for parameters the node no longer
// declares, mirroring the original prototype's NodeMeta.update_from, which
// rebuilds input_hashes from the node's current parameter set while
// preserving hashes still relevant.
func (m *NodeMeta) pruneInputs(liveParams []string) {
	keep := make(map[string]struct{}, len(liveParams))
	for _, p := range liveParams {
		keep[p] = struct{}{}
	}
	for k := range m.InputHashes {
		if _, ok := keep[k]; !ok {
			delete(m.InputHashes, k)
		}
	}
}

// NamespaceMeta is the persisted metadata for one namespace: a map from a
// node's PersistentHash to its NodeMeta.
type NamespaceMeta struct {
	Name  string               `json:"name"`
	Nodes map[string]*NodeMeta `json:"nodes"`
}

func newNamespaceMeta(name string) *NamespaceMeta {
	return &NamespaceMeta{Name: name, Nodes: make(map[string]*NodeMeta)}
}

// NodeEntry describes one live node for UpdateFrom: its PersistentHash plus
// the parameter names it currently declares (used to prune obsolete input
// hash entries without the meta package importing the node package).
type NodeEntry struct {
	PersistentHash string
	ParamNames     []string
}

// UpdateFrom reconciles the namespace's metadata against the currently
// declared nodes: entries whose hash is still live are kept (with their
// input hashes pruned to the node's current parameter set), entries for new
// hashes are created empty, and entries for hashes no longer declared are
// dropped. This mirrors NamespaceMeta.update_from in the original prototype.
func (ns *NamespaceMeta) UpdateFrom(nodes []NodeEntry) {
	fresh := make(map[string]*NodeMeta, len(nodes))
	for _, n := range nodes {
		existing, ok := ns.Nodes[n.PersistentHash]
		if !ok {
			existing = newNodeMeta(n.PersistentHash)
		} else {
			existing.pruneInputs(n.ParamNames)
		}
		fresh[n.PersistentHash] = existing
	}
	ns.Nodes = fresh
}

// GetNodeMeta looks up a node's metadata by its PersistentHash.
func (ns *NamespaceMeta) GetNodeMeta(persistentHash string) (*NodeMeta, bool) {
	m, ok := ns.Nodes[persistentHash]
	return m, ok
}

// Backend is the storage-agnostic surface the engine depends on. *Store (the
// JSON file backend) and metapg.Store (the Postgres backend, spec §5/SPEC_FULL
// domain stack) both implement it.
type Backend interface {
	Namespace(name string) *NamespaceMeta
	Sync() error
}

// Store is the persisted collection of NamespaceMeta records backing one
// engine root. It is safe for concurrent use.
type Store struct {
	path string // <root>/.cex/cex.json

	mu         sync.Mutex
	namespaces map[string]*NamespaceMeta
}

// Open loads the metadata store rooted at root, creating <root>/.cex and an
// empty store if no file exists yet. Per spec §4.2's failure policy, any I/O
// or decode error here is returned to the caller as fatal: a corrupt or
// unreadable metadata file must fail the run rather than silently discard
// history.
func Open(root string) (*Store, error) {
	dir := filepath.Join(root, metaDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("meta: create %s: %w", dir, err)
	}

	path := filepath.Join(dir, metaFileName)
	s := &Store{path: path, namespaces: make(map[string]*NamespaceMeta)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("meta: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}

	var list []*NamespaceMeta
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("meta: decode %s: %w", path, err)
	}
	for _, ns := range list {
		if ns.Nodes == nil {
			ns.Nodes = make(map[string]*NodeMeta)
		}
		s.namespaces[ns.Name] = ns
	}
	return s, nil
}

// Namespace returns the metadata for a namespace, creating an empty record
// on first reference.
func (s *Store) Namespace(name string) *NamespaceMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		ns = newNamespaceMeta(name)
		s.namespaces[name] = ns
	}
	return ns
}

// Sync atomically rewrites the metadata file. Per spec §4.2's failure
// policy, sync errors are the caller's to log and tolerate; the run is not
// expected to fail because a cache-freshness record couldn't be persisted.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]*NamespaceMeta, 0, len(names))
	for _, name := range names {
		list = append(list, s.namespaces[name])
	}

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("meta: encode: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("meta: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("meta: rename %s: %w", s.path, err)
	}
	return nil
}
