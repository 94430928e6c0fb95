package compiler

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
//
// Every error is raised synchronously while parsing and aborts the compile
// before any text is emitted.
// ---------------------------------------------------------------------------

// ErrContextUsed is returned when Parse or Emit is called on a context that
// has already been used. Contexts are one-shot.
var ErrContextUsed = errors.New("compilation context already used")

// ErrNotParsed is returned when emission is attempted before a successful Parse.
var ErrNotParsed = errors.New("compilation context has not been parsed")

// GraphStructureError reports a malformed graph: a cycle, a dangling
// reference, a nil input or a missing required output.
type GraphStructureError struct {
	NodeID NodeID // zero when the problem is not tied to a node
	Kind   string
	Reason string
}

func (e *GraphStructureError) Error() string {
	if e.NodeID == 0 {
		return "graph structure: " + e.Reason
	}
	return fmt.Sprintf("graph structure: node #%d (%s): %s", e.NodeID, e.Kind, e.Reason)
}

// TypeShapeError reports an operation applied to shapes it does not support.
type TypeShapeError struct {
	NodeID NodeID
	Kind   string
	Reason string
}

func (e *TypeShapeError) Error() string {
	return fmt.Sprintf("type shape: node #%d (%s): %s", e.NodeID, e.Kind, e.Reason)
}

// ConfigurationError reports a required injected parameter that is not
// bound, or an option outside its supported range.
type ConfigurationError struct {
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Name == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %q: %s", e.Name, e.Reason)
}

func structureErr(n Node, format string, args ...any) error {
	e := &GraphStructureError{Reason: fmt.Sprintf(format, args...)}
	if n != nil {
		e.NodeID = n.ID()
		e.Kind = n.Kind()
	}
	return e
}

func shapeErr(n Node, format string, args ...any) error {
	return &TypeShapeError{NodeID: n.ID(), Kind: n.Kind(), Reason: fmt.Sprintf(format, args...)}
}

func configErr(name, format string, args ...any) error {
	return &ConfigurationError{Name: name, Reason: fmt.Sprintf(format, args...)}
}
