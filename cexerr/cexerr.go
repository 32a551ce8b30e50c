// Package cexerr holds the two error kinds CEX raises: ValidationFailure,
// synchronous and batched, and RuntimeFailure, fatal for the current run.
package cexerr

import (
	"fmt"
	"strings"
)

// Runtime failure kinds, surfaced on RuntimeFailure.Kind.
const (
	KindAmbiguousInput   = "ambiguous_input"
	KindUnresolvedSerial = "unresolved_serializer"
	KindTypeMismatch     = "type_mismatch"
	KindSerializerIO     = "serializer_io"
	KindUserFunction     = "user_function"
	KindDoubleBinding    = "double_binding"
	KindMetaMissing      = "meta_missing"
)

// ValidationFailure is raised synchronously before any node executes. It
// carries every defect found, not just the first.
type ValidationFailure struct {
	Messages []string
}

// NewValidationFailure builds a ValidationFailure from one or more messages.
func NewValidationFailure(messages []string) *ValidationFailure {
	return &ValidationFailure{Messages: messages}
}

func (e *ValidationFailure) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	return fmt.Sprintf("%d validation errors: %s", len(e.Messages), strings.Join(e.Messages, "; "))
}

// RuntimeFailure is raised during execution. It wraps the offending node's
// name and the underlying cause.
type RuntimeFailure struct {
	Node string
	Kind string
	Err  error
}

func NewRuntimeFailure(node, kind string, err error) *RuntimeFailure {
	return &RuntimeFailure{Node: node, Kind: kind, Err: err}
}

func (e *RuntimeFailure) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("node %s: %s: %v", e.Node, e.Kind, e.Err)
}

func (e *RuntimeFailure) Unwrap() error {
	return e.Err
}

// AsValidationFailure converts an error (typically a RuntimeFailure) into a
// single-message ValidationFailure, mirroring the original prototype's
// RuntimeException.to_validaton_exception. The validate package does not
// call it; it reports unresolved serializers as plain messages.
func AsValidationFailure(err error) *ValidationFailure {
	if rf, ok := err.(*RuntimeFailure); ok {
		return NewValidationFailure([]string{rf.Error()})
	}
	return NewValidationFailure([]string{err.Error()})
}
