package compiler

import (
	"fmt"
	"sync/atomic"

	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Nodes: immutable expression units of the graph
// ---------------------------------------------------------------------------

// NodeID identifies a node instance. Memoization is keyed by NodeID, never
// by node contents: two equal-looking nodes are emitted separately, a
// shared node is emitted once per scope.
type NodeID uint64

var lastNodeID atomic.Uint64

// Node is the interface implemented by all graph nodes. The set of node
// types is closed: the unexported methods restrict implementations to
// this package.
//
// Construction is pure. All code generation happens in emit, which is only
// ever called by Context.Emit.
type Node interface {
	ID() NodeID
	Kind() string
	Shape() Shape
	Inputs() []Node

	// structure folds every shape-affecting choice of the node into the
	// structural hash. Runtime values must never be written here.
	structure(h *hash.Accumulator)

	// emit generates code for the node in the current scope and returns
	// the symbol or inline expression that holds its value. Dependencies
	// are emitted first through Context.Emit.
	emit(c *Context) (string, error)
}

type nodeBase struct {
	id NodeID
}

func newBase() nodeBase {
	return nodeBase{id: NodeID(lastNodeID.Add(1))}
}

func (b nodeBase) ID() NodeID { return b.id }

// describe formats a node for error messages.
func describe(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("#%d (%s)", n.ID(), n.Kind())
}

// ---------------------------------------------------------------------------
// Literal conversion
// ---------------------------------------------------------------------------

// Lit converts a Go literal to a constant node. Nodes are returned as is.
// Unsupported literals produce a node that fails graph validation.
func Lit(v any) Node {
	if n, ok := v.(Node); ok {
		return n
	}
	if v == nil {
		return nil
	}
	val, err := ValueOf(v)
	if err != nil {
		return &badLiteral{nodeBase: newBase(), value: v, err: err}
	}
	return Constant(val)
}

func lits(vs ...any) []Node {
	out := make([]Node, len(vs))
	for i, v := range vs {
		out[i] = Lit(v)
	}
	return out
}

// badLiteral stands in for a literal that could not be converted.
type badLiteral struct {
	nodeBase
	value any
	err   error
}

func (n *badLiteral) Kind() string                  { return "literal" }
func (n *badLiteral) Shape() Shape                  { return ShapeInvalid }
func (n *badLiteral) Inputs() []Node                { return nil }
func (n *badLiteral) structure(h *hash.Accumulator) {}
func (n *badLiteral) emit(c *Context) (string, error) {
	return "", structureErr(n, "unsupported literal: %v", n.err)
}

// ---------------------------------------------------------------------------
// Leaves
// ---------------------------------------------------------------------------

// PositionNode reads the world position of the current dispatch.
type PositionNode struct {
	nodeBase
}

var thePosition = &PositionNode{nodeBase: newBase()}

// Position returns the world-position input of the graph. There is a
// single shared instance.
func Position() Node { return thePosition }

func (n *PositionNode) Kind() string   { return "position" }
func (n *PositionNode) Shape() Shape   { return Vec3 }
func (n *PositionNode) Inputs() []Node { return nil }

func (n *PositionNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagPosition)
}

func (n *PositionNode) emit(c *Context) (string, error) {
	sym, ok := c.positionSymbol()
	if !ok {
		return "", structureErr(n, "position is not available in scope %s", c.Current().Name)
	}
	return sym, nil
}

// ConstantNode is a literal value. The value is placed in the parameter
// buffer so that editing it never changes the generated source.
type ConstantNode struct {
	nodeBase
	value Value
}

// Constant returns a constant node holding v.
func Constant(v Value) Node {
	return &ConstantNode{nodeBase: newBase(), value: v}
}

// Num returns a float constant.
func Num(f float32) Node { return Constant(Scalar(f)) }

// Value returns the constant's value.
func (n *ConstantNode) Value() Value { return n.value }

func (n *ConstantNode) Kind() string   { return "constant" }
func (n *ConstantNode) Shape() Shape   { return n.value.Shape }
func (n *ConstantNode) Inputs() []Node { return nil }

func (n *ConstantNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagConstant)
	h.Tag(byte(n.value.Shape))
}

func (n *ConstantNode) emit(c *Context) (string, error) {
	if !n.value.Shape.Valid() {
		return "", shapeErr(n, "constant has no valid shape")
	}
	slot := c.constantSlot(n)
	return paramExpr(slot, n.value.Shape), nil
}

// InjectNode is a named external parameter resolved at emit time.
type InjectNode struct {
	nodeBase
	name  string
	shape Shape
	def   *Value
}

// Inject returns a named external parameter of the given shape. The value
// must be supplied by the compile's Injector.
func Inject(name string, shape Shape) Node {
	return &InjectNode{nodeBase: newBase(), name: name, shape: shape}
}

// InjectDefault returns a named external parameter that falls back to def
// when the Injector does not bind it.
func InjectDefault(name string, def any) Node {
	v, err := ValueOf(def)
	if err != nil {
		return &badLiteral{nodeBase: newBase(), value: def, err: err}
	}
	return &InjectNode{nodeBase: newBase(), name: name, shape: v.Shape, def: &v}
}

// Name returns the parameter name.
func (n *InjectNode) Name() string { return n.name }

func (n *InjectNode) Kind() string   { return "inject" }
func (n *InjectNode) Shape() Shape   { return n.shape }
func (n *InjectNode) Inputs() []Node { return nil }

func (n *InjectNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagInject)
	h.Tag(byte(n.shape))
	h.Str(n.name)
}

func (n *InjectNode) emit(c *Context) (string, error) {
	if !isIdentifier(n.name) {
		return "", configErr(n.name, "parameter name is not an identifier")
	}
	v, ok := c.lookupInjected(n.name)
	if !ok {
		if n.def == nil {
			return "", configErr(n.name, "required injected parameter is not bound")
		}
		v = *n.def
	}
	if v.Shape != n.shape {
		return "", configErr(n.name, "bound value is %s, parameter is %s", v.Shape, n.shape)
	}
	slot, err := c.injectedSlot(n.name, v)
	if err != nil {
		return "", err
	}
	return paramExpr(slot, n.shape), nil
}

// RefNode is a forward reference resolved after construction. An
// unresolved reference is a dangling reference; resolving it to one of its
// own consumers creates a cycle. Both are reported as GraphStructureError.
type RefNode struct {
	nodeBase
	name   string
	shape  Shape
	target Node
}

// Ref returns an unresolved forward reference of the given shape.
func Ref(name string, shape Shape) *RefNode {
	return &RefNode{nodeBase: newBase(), name: name, shape: shape}
}

// Resolve points the reference at n and returns the reference.
func (n *RefNode) Resolve(target Node) *RefNode {
	n.target = target
	return n
}

// Name returns the reference label.
func (n *RefNode) Name() string { return n.name }

// Target returns the resolved node, or nil.
func (n *RefNode) Target() Node { return n.target }

func (n *RefNode) Kind() string { return "ref" }
func (n *RefNode) Shape() Shape { return n.shape }

func (n *RefNode) Inputs() []Node {
	if n.target == nil {
		return nil
	}
	return []Node{n.target}
}

func (n *RefNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagRef)
	h.Tag(byte(n.shape))
}

func (n *RefNode) emit(c *Context) (string, error) {
	if n.target == nil {
		return "", structureErr(n, "dangling reference %q", n.name)
	}
	sym, err := c.Emit(n.target)
	if err != nil {
		return "", err
	}
	if got := n.target.Shape(); got != n.shape {
		return "", shapeErr(n, "reference %q declared %s, resolved to %s", n.name, n.shape, got)
	}
	return sym, nil
}

// paramExpr reads slot k of the parameter buffer as the given shape.
func paramExpr(slot int, s Shape) string {
	switch s {
	case Float:
		return fmt.Sprintf("params[%d].x", slot)
	case Vec2:
		return fmt.Sprintf("params[%d].xy", slot)
	case Vec3:
		return fmt.Sprintf("params[%d].xyz", slot)
	case Int:
		return fmt.Sprintf("i32(params[%d].x)", slot)
	case Bool:
		return fmt.Sprintf("(params[%d].x != 0.0)", slot)
	default:
		return fmt.Sprintf("params[%d]", slot)
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
