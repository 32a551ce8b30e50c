package node

import (
	"os"
	"path/filepath"
	"strings"

	"cex/dataflow"
	"cex/internal/hashcache"
	"cex/typetag"
)

// GetRequiredInputs returns one DataInfo per function parameter, with its
// type tag populated and value/path/hash all absent.
func (n *Node) GetRequiredInputs() []dataflow.DataInfo {
	out := make([]dataflow.DataInfo, 0, len(n.params))
	for _, p := range n.params {
		out = append(out, dataflow.New(p.Name, p.Type))
	}
	return out
}

// GetAvailableFileInputs lists the files in the node's input directory
// (already resolved to an absolute path by the caller) as candidate inputs:
// DataInfo(name=file_stem, type=Unknown, path=file, hash=computed). Returns
// nil, nil if the node declares no input directory.
func (n *Node) GetAvailableFileInputs(resolvedDir string, hasher *hashcache.Cache) ([]dataflow.DataInfo, error) {
	if n.inputDirectory == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(resolvedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]dataflow.DataInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(resolvedDir, e.Name())
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))

		hash, err := hasher.Hash(full)
		if err != nil {
			return nil, err
		}

		out = append(out, dataflow.New(stem, typetag.Unknown).WithPath(full).WithHash(hash))
	}
	return out, nil
}
