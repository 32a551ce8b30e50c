// Package serializer resolves and implements the Serializer contract used to
// materialize node outputs to disk and load file-sourced inputs back into
// memory (spec §4.1, C1).
package serializer

import (
	"fmt"
	"strings"

	"cex/dataflow"
	"cex/typetag"
)

// Serializer loads and saves a value of some logical type to a file. All
// built-ins create parent directories on Save and return an error when Load
// is asked for a missing file.
type Serializer interface {
	// FileExtension is the suffix (including the leading dot) this
	// serializer writes, used to compute a cached output's path.
	FileExtension() string
	// Matches reports whether this serializer should handle a file with the
	// given extension (including the leading dot).
	Matches(extension string) bool
	Load(path string) (any, error)
	Save(path string, value any) error
}

// Registry holds the engine-scope serializer bindings: a type→Serializer
// map, consulted first, and an ordered list of default serializers matched
// by file extension.
type Registry struct {
	byType   map[string]Serializer
	defaults []Serializer
}

// NewRegistry returns an empty Registry seeded with CEX's built-in
// serializers as defaults, in the order the original prototype registered
// them (JSON, YAML, CSV, binary, plain text).
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[string]Serializer),
		defaults: []Serializer{
			JSON{},
			YAML{},
			CSV{},
			Binary{},
			PlainText{},
		},
	}
}

// AddSerializer appends a default serializer, consulted by extension after
// the type map misses.
func (r *Registry) AddSerializer(s Serializer) {
	r.defaults = append(r.defaults, s)
}

// AddSerializerForType binds a serializer to a type tag, consulted before
// the default list.
func (r *Registry) AddSerializerForType(t typetag.Tag, s Serializer) {
	r.byType[t.Key()] = s
}

// ResolveForType resolves the engine-scope serializer bound to a type tag.
func (r *Registry) ResolveForType(t typetag.Tag) (Serializer, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.byType[t.Key()]
	return s, ok
}

// ResolveForExtension returns the first default serializer that matches the
// given file extension.
func (r *Registry) ResolveForExtension(extension string) (Serializer, bool) {
	if r == nil {
		return nil, false
	}
	for _, s := range r.defaults {
		if s.Matches(extension) {
			return s, true
		}
	}
	return nil, false
}

// TypeLookup resolves a serializer bound to a type tag in a scope (node or
// namespace level).
type TypeLookup func(t typetag.Tag) (Serializer, bool)

// Resolve implements the three-tier protocol of spec §4.1: node scope, then
// namespace scope, then engine scope (type map, then default-by-extension).
// An "unresolved serializer" error is returned when no tier produces a
// serializer.
func Resolve(data dataflow.DataInfo, nodeScope TypeLookup, namespaceScope TypeLookup, engine *Registry) (Serializer, error) {
	if nodeScope != nil {
		if s, ok := nodeScope(data.Type); ok {
			return s, nil
		}
	}
	if namespaceScope != nil {
		if s, ok := namespaceScope(data.Type); ok {
			return s, nil
		}
	}
	if s, ok := engine.ResolveForType(data.Type); ok {
		return s, nil
	}
	if data.HasPath() {
		ext := extOf(data.Path)
		if s, ok := engine.ResolveForExtension(ext); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unresolved serializer for %q (type %s)", data.Name, data.Type)
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}
