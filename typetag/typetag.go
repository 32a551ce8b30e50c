// Package typetag gives CEX nodes a type identity that does not depend on
// Go's static type system. Node parameters and outputs are matched by a
// nominal tag rather than by reflect.Type, so the same Go type (e.g. []int)
// can be tagged differently by different nodes, and structurally distinct
// instantiations of a parameterized container (list of int vs list of
// string) compare as distinct tags.
package typetag

import "strings"

// Tag is an opaque, comparable type identity. The zero Tag is Unknown.
type Tag struct {
	key string
}

// Unknown represents an absent or unannotated type. It matches any other
// tag during input resolution (spec: "type_matches ... A.type is unknown OR
// R.type is unknown").
var Unknown = Tag{}

// Common scalar tags, provided for convenience; callers may define their own
// with Of.
var (
	Any    = Of("any")
	Int    = Of("int")
	Float  = Of("float")
	String = Of("string")
	Bool   = Of("bool")
	Bytes  = Of("bytes")
)

// Of returns a nominal tag identified by name. Two tags built with the same
// name are equal.
func Of(name string) Tag {
	return Tag{key: name}
}

// List returns the tag for "list of elem", structurally distinct from List
// of any other element tag.
func List(elem Tag) Tag {
	return Tag{key: "list<" + elem.key + ">"}
}

// Map returns the tag for "map from k to v".
func Map(k, v Tag) Tag {
	return Tag{key: "map<" + k.key + "," + v.key + ">"}
}

// IsUnknown reports whether t is the Unknown tag.
func (t Tag) IsUnknown() bool {
	return t.key == ""
}

// Equal reports nominal equality between two tags.
func (t Tag) Equal(other Tag) bool {
	return t.key == other.key
}

// Matches reports whether t and other should be treated as compatible for
// input resolution: equal, or either side unknown.
func (t Tag) Matches(other Tag) bool {
	return t.IsUnknown() || other.IsUnknown() || t.Equal(other)
}

// String renders the tag for logs and validation messages.
func (t Tag) String() string {
	if t.IsUnknown() {
		return "unknown"
	}
	return t.key
}

// Key returns the canonical structural key, usable as a map key where an
// explicit, stable identity is required (e.g. the per-type serializer maps).
func (t Tag) Key() string {
	return t.key
}

// FromExtension derives a best-effort tag name from a file extension, used
// when a file-sourced input carries no explicit annotation.
func FromExtension(ext string) Tag {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return Unknown
	}
	return Of("ext:" + ext)
}
