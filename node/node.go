// Package node implements the declarative Node model (spec §3, §4.3, C3).
//
// Go has no runtime reflection of a function's parameter names, only its
// positional parameter types (reflect.TypeOf(fn)). Per spec §9's Design
// Notes, CEX therefore requires every node to be constructed through a typed
// builder that supplies the parameter descriptor explicitly: an ordered
// list of (name, type tag) pairs plus an optional return type tag. The
// node's Go function must have the shape
//
//	func(ctx context.Context, p1 T1, p2 T2, ...) (R, error)   // produces an output
//	func(ctx context.Context, p1 T1, p2 T2, ...) error        // sink, no output
//
// where the p_i are bound, in order, to the resolved inputs for params[i].
package node

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"

	"cex/serializer"
	"cex/typetag"
)

// Param describes one function parameter for matching purposes: its name
// (used for alias resolution) and its nominal type tag (used for type
// matching and serializer resolution).
type Param struct {
	Name string
	Type typetag.Tag
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()
var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()

// Node is a declarative description of one computation. Nodes are user-owned
// and immutable after construction, aside from ContinueWith appending
// successors.
type Node struct {
	runtimeID uuid.UUID

	Name string

	fn           reflect.Value
	fnName       string // qualified function name, used only by PersistentHash
	params       []Param
	ret          *typetag.Tag // nil => sink, no output edge
	goReturnType reflect.Type // fn's actual Go return type, nil for a sink; set once in New

	inputAliases map[string][]string

	outputName      string
	isCached        bool
	inputDirectory  string
	outputDirectory string

	inputSerializerByName map[string]serializer.Serializer
	singleInputSerializer serializer.Serializer
	outputSerializer      serializer.Serializer

	subsequent []*Node
}

// Option configures optional Node attributes at construction time.
type Option func(*Node)

// WithInputAliases supplies the full alias map. A parameter absent from the
// map keeps its own name as its sole alias, matching spec §3.
func WithInputAliases(aliases map[string][]string) Option {
	return func(n *Node) {
		if n.inputAliases == nil {
			n.inputAliases = make(map[string][]string)
		}
		for k, v := range aliases {
			n.inputAliases[k] = append([]string{}, v...)
		}
	}
}

// WithAlias adds one or more alternative names for a single parameter.
func WithAlias(param string, aliases ...string) Option {
	return func(n *Node) {
		if n.inputAliases == nil {
			n.inputAliases = make(map[string][]string)
		}
		n.inputAliases[param] = append(n.inputAliases[param], aliases...)
	}
}

// WithOutputName declares the name of the edge this node's return value
// produces. Without it, the node is a pure side-effect sink.
func WithOutputName(name string) Option {
	return func(n *Node) { n.outputName = name }
}

// WithCached overrides the default cache flag. Every node is cached by
// default, including sinks: a sink with no output still has inputs worth
// fingerprinting, so its last-run input hashes are enough to decide whether
// to skip it (spec §8 scenario S3). Pass false for nodes whose function has
// side effects that must re-run unconditionally (spec §8 scenario S3's
// counterpart, an uncached node) or that are inherently non-deterministic.
func WithCached(cached bool) Option {
	return func(n *Node) { n.isCached = cached }
}

// WithInputDirectory advertises files on disk as additional candidate
// inputs for this node.
func WithInputDirectory(dir string) Option {
	return func(n *Node) { n.inputDirectory = dir }
}

// WithOutputDirectory overrides the output directory (defaults to the node
// name).
func WithOutputDirectory(dir string) Option {
	return func(n *Node) { n.outputDirectory = dir }
}

// WithInputSerializer binds a serializer to one parameter by name.
func WithInputSerializer(param string, s serializer.Serializer) Option {
	return func(n *Node) {
		if n.inputSerializerByName == nil {
			n.inputSerializerByName = make(map[string]serializer.Serializer)
		}
		n.inputSerializerByName[param] = s
	}
}

// WithSingleInputSerializer binds one serializer to use for the node's only
// parameter. The validator rejects this when the node has more than one
// parameter (spec §4.5).
func WithSingleInputSerializer(s serializer.Serializer) Option {
	return func(n *Node) { n.singleInputSerializer = s }
}

// WithOutputSerializer binds the serializer used to persist this node's
// output, overriding namespace/engine-scope resolution.
func WithOutputSerializer(s serializer.Serializer) Option {
	return func(n *Node) { n.outputSerializer = s }
}

// New constructs a Node. fn must be a func whose first parameter is a
// context.Context, whose remaining parameters correspond 1:1 (in order) to
// params, and which returns (value, error) if ret is non-nil or (error)
// alone if ret is nil.
func New(name string, fn any, params []Param, ret *typetag.Tag, opts ...Option) (*Node, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("node %s: function must be a func, got %T", name, fn)
	}
	ft := fv.Type()

	if ft.NumIn() != len(params)+1 {
		return nil, fmt.Errorf("node %s: function takes %d parameters, expected %d (ctx + %d declared)", name, ft.NumIn(), len(params)+1, len(params))
	}
	if ft.NumIn() == 0 || !ft.In(0).Implements(ctxType) {
		return nil, fmt.Errorf("node %s: function's first parameter must be context.Context", name)
	}

	wantOut := 1
	if ret != nil {
		wantOut = 2
	}
	if ft.NumOut() != wantOut {
		return nil, fmt.Errorf("node %s: function must return %d values, got %d", name, wantOut, ft.NumOut())
	}
	if !ft.Out(ft.NumOut() - 1).Implements(errorType) {
		return nil, fmt.Errorf("node %s: function's last return value must be error", name)
	}

	var goReturnType reflect.Type
	if ret != nil {
		goReturnType = ft.Out(0)
	}

	n := &Node{
		runtimeID:       uuid.New(),
		Name:            name,
		fn:              fv,
		fnName:          qualifiedFuncName(fv),
		params:          append([]Param{}, params...),
		ret:             ret,
		goReturnType:    goReturnType,
		isCached:        true,
		outputDirectory: name,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func qualifiedFuncName(fv reflect.Value) string {
	if fn := runtime.FuncForPC(fv.Pointer()); fn != nil {
		return fn.Name()
	}
	return "<anonymous>"
}

// RuntimeID is a token fresh per process, useful for logging and for
// observers that need to refer to a node instance without assuming names
// are unique (spec §3 recommends, but does not enforce, unique names).
func (n *Node) RuntimeID() uuid.UUID { return n.runtimeID }

// ContinueWith appends one or more direct successors. Repeated edges are
// permitted; the graph builder dedupes by node identity.
func (n *Node) ContinueWith(next ...*Node) *Node {
	n.subsequent = append(n.subsequent, next...)
	return n
}

// SubsequentNodes returns this node's direct successors.
func (n *Node) SubsequentNodes() []*Node {
	return n.subsequent
}

// OutputName returns the declared output name, or "" for a sink.
func (n *Node) OutputName() string { return n.outputName }

// IsCached reports whether this node's output is materialized and fingerprinted.
func (n *Node) IsCached() bool { return n.isCached }

// InputDirectory returns the node-relative directory advertising file
// inputs, or "" if none was declared.
func (n *Node) InputDirectory() string { return n.inputDirectory }

// OutputDirectory returns the node-relative directory its cached output is
// written under.
func (n *Node) OutputDirectory() string { return n.outputDirectory }

// ReturnType returns the node's declared output type tag and whether the
// node has an output at all.
func (n *Node) ReturnType() (typetag.Tag, bool) {
	if n.ret == nil {
		return typetag.Unknown, false
	}
	return *n.ret, true
}

// CheckOutputType reports whether value is assignable to the function's
// declared Go return type (the type fn's signature named at construction,
// which is what actually comes back from Invoke — not the nominal
// typetag.Tag in ret, which only drives matching and serializer lookup).
// Always true for a sink, which never hands a value back.
func (n *Node) CheckOutputType(value any) bool {
	if n.goReturnType == nil {
		return true
	}
	if value == nil {
		switch n.goReturnType.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
			return true
		default:
			return false
		}
	}
	return reflect.TypeOf(value).AssignableTo(n.goReturnType)
}

// Params returns the node's parameter descriptors, in call order.
func (n *Node) Params() []Param {
	return append([]Param{}, n.params...)
}

// GetInputAliases normalizes the alias list for a parameter, defaulting to
// the parameter's own name (spec §3).
func (n *Node) GetInputAliases(paramName string) []string {
	if n.inputAliases != nil {
		if aliases, ok := n.inputAliases[paramName]; ok && len(aliases) > 0 {
			return aliases
		}
	}
	return []string{paramName}
}

// InputSerializerFor resolves the node-scope serializer override for a
// single parameter, implementing spec §4.1 tier 1.
func (n *Node) InputSerializerFor(paramName string) (serializer.Serializer, bool) {
	if n.inputSerializerByName != nil {
		if s, ok := n.inputSerializerByName[paramName]; ok {
			return s, true
		}
	}
	if n.singleInputSerializer != nil {
		return n.singleInputSerializer, true
	}
	return nil, false
}

// HasSingleInputSerializer reports whether WithSingleInputSerializer was
// used, which the validator rejects on any node with more than one
// parameter (spec §4.5).
func (n *Node) HasSingleInputSerializer() bool {
	return n.singleInputSerializer != nil
}

// OutputSerializer resolves the node-scope output serializer override.
func (n *Node) OutputSerializer() (serializer.Serializer, bool) {
	if n.outputSerializer != nil {
		return n.outputSerializer, true
	}
	return nil, false
}

// Invoke binds args (one per Params(), in order) and calls the underlying
// function. It returns the node's result (nil for a sink) and any error the
// function returned. A RuntimeFailure-worthy type mismatch between a
// resolved input and the function's actual Go parameter type surfaces as a
// plain error; the caller (the engine) wraps it with the node's name.
func (n *Node) Invoke(ctx context.Context, args []any) (any, error) {
	if len(args) != len(n.params) {
		return nil, fmt.Errorf("node %s: expected %d arguments, got %d", n.Name, len(n.params), len(args))
	}

	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, reflect.ValueOf(ctx))

	ft := n.fn.Type()
	for i, arg := range args {
		want := ft.In(i + 1)
		rv, err := coerce(arg, want)
		if err != nil {
			return nil, fmt.Errorf("node %s: argument %q: %w", n.Name, n.params[i].Name, err)
		}
		in = append(in, rv)
	}

	out := n.fn.Call(in)

	errVal := out[len(out)-1]
	if !errVal.IsNil() {
		return nil, errVal.Interface().(error)
	}
	if len(out) == 1 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func coerce(arg any, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(want), nil
	}
	rv := reflect.ValueOf(arg)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("value of type %s is not assignable to parameter of type %s", rv.Type(), want)
}

// PersistentHash is the SHA-256 fingerprint of the node's stable declarative
// attributes (spec §3, §4.3): name, is_cached, qualified function name,
// output_name, input_directory, output_directory, and sorted input
// aliases. It explicitly excludes the runtime id, subsequent nodes,
// serializers, and the function body (only its fully-qualified name is
// hashed), so renaming a node changes the hash while editing its
// implementation does not (the user must rename to invalidate the cache).
func (n *Node) PersistentHash() string {
	var parts []string
	parts = append(parts, n.Name)
	parts = append(parts, fmt.Sprintf("%t", n.isCached))
	parts = append(parts, n.fnName)
	if n.outputName != "" {
		parts = append(parts, n.outputName)
	}
	if n.inputDirectory != "" {
		parts = append(parts, n.inputDirectory)
	}
	parts = append(parts, n.outputDirectory)
	if alias := stableAliases(n.inputAliases); alias != "" {
		parts = append(parts, alias)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func stableAliases(aliases map[string][]string) string {
	if len(aliases) == 0 {
		return ""
	}
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		vals := append([]string{}, aliases[k]...)
		sort.Strings(vals)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(vals, ","))
	}
	return b.String()
}
