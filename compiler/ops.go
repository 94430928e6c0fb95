package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Expression families
//
// Every factory accepts operands as `any`: nodes are used directly, Go
// literals are converted with Lit. Result shapes are resolved at
// construction; an unsupported combination is recorded and reported as a
// TypeShapeError when the node is emitted.
// ---------------------------------------------------------------------------

// exprBase carries the resolved shape of a node and, when resolution
// failed, the reason.
type exprBase struct {
	nodeBase
	shape Shape
	bad   string
}

func (b *exprBase) Shape() Shape { return b.shape }

func (b *exprBase) reject(format string, args ...any) {
	b.shape = ShapeInvalid
	b.bad = fmt.Sprintf(format, args...)
}

// shapes returns the input shapes, flagging nil inputs.
func shapesOf(ins []Node) ([]Shape, bool) {
	out := make([]Shape, len(ins))
	for i, n := range ins {
		if n == nil {
			return nil, false
		}
		out[i] = n.Shape()
	}
	return out, true
}

// emitInputs emits every input, then reports the node's own shape error.
// Dependencies go first so the root cause of a shape problem is reported.
func emitInputs(c *Context, self Node, b *exprBase, ins []Node) ([]string, error) {
	syms := make([]string, len(ins))
	for i, in := range ins {
		if in == nil {
			return nil, structureErr(self, "input %d is nil", i)
		}
		sym, err := c.Emit(in)
		if err != nil {
			return nil, err
		}
		syms[i] = sym
	}
	if b.bad != "" {
		return nil, shapeErr(self, "%s", b.bad)
	}
	return syms, nil
}

// widen broadcasts a float scalar symbol to the target vector shape.
func widen(sym string, from, to Shape) string {
	if from == Float && to.IsVector() {
		return fmt.Sprintf("%s(%s)", to.WGSL(), sym)
	}
	return sym
}

// elementwise resolves the result of combining float-like or int operands
// elementwise, allowing a float scalar to broadcast to a vector.
func elementwise(a, b Shape, allowInt bool) (Shape, bool) {
	switch {
	case a == b && a.IsFloatLike():
		return a, true
	case a == b && a == Int && allowInt:
		return Int, true
	case a == Float && b.IsVector():
		return b, true
	case b == Float && a.IsVector():
		return a, true
	}
	return ShapeInvalid, false
}

// ---------------------------------------------------------------------------
// Binary arithmetic
// ---------------------------------------------------------------------------

// BinaryOp selects an arithmetic operator. Values are frozen.
type BinaryOp uint8

const (
	OpAdd BinaryOp = 1
	OpSub BinaryOp = 2
	OpMul BinaryOp = 3
	OpDiv BinaryOp = 4
	OpMod BinaryOp = 5
	OpMin BinaryOp = 6
	OpMax BinaryOp = 7
	OpPow BinaryOp = 8
)

var binaryNames = map[BinaryOp]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div",
	OpMod: "mod", OpMin: "min", OpMax: "max", OpPow: "pow",
}

var binaryInfix = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
}

func (op BinaryOp) String() string { return binaryNames[op] }

// BinaryNode applies an arithmetic operator to two operands.
type BinaryNode struct {
	exprBase
	op   BinaryOp
	a, b Node
}

// Binary builds an arithmetic node.
func Binary(op BinaryOp, a, b any) Node {
	n := &BinaryNode{exprBase: exprBase{nodeBase: newBase()}, op: op, a: Lit(a), b: Lit(b)}
	sh, ok := shapesOf(n.Inputs())
	if !ok {
		n.reject("missing operand")
		return n
	}
	if _, known := binaryNames[op]; !known {
		n.reject("unknown operator %d", op)
		return n
	}
	res, ok := elementwise(sh[0], sh[1], op != OpPow)
	if !ok {
		n.reject("cannot %s %s and %s", op, sh[0], sh[1])
		return n
	}
	n.shape = res
	return n
}

func Add(a, b any) Node { return Binary(OpAdd, a, b) }
func Sub(a, b any) Node { return Binary(OpSub, a, b) }
func Mul(a, b any) Node { return Binary(OpMul, a, b) }
func Div(a, b any) Node { return Binary(OpDiv, a, b) }
func Mod(a, b any) Node { return Binary(OpMod, a, b) }
func Min(a, b any) Node { return Binary(OpMin, a, b) }
func Max(a, b any) Node { return Binary(OpMax, a, b) }
func Pow(a, b any) Node { return Binary(OpPow, a, b) }

func (n *BinaryNode) Kind() string   { return n.op.String() }
func (n *BinaryNode) Inputs() []Node { return []Node{n.a, n.b} }

func (n *BinaryNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagBinary)
	h.Tag(byte(n.op))
	h.Tag(byte(n.shape))
}

func (n *BinaryNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	a := widen(syms[0], n.a.Shape(), n.shape)
	b := widen(syms[1], n.b.Shape(), n.shape)
	if infix, ok := binaryInfix[n.op]; ok {
		return c.Bind(n, fmt.Sprintf("%s %s %s", a, infix, b)), nil
	}
	return c.Bind(n, fmt.Sprintf("%s(%s, %s)", n.op, a, b)), nil
}

// ---------------------------------------------------------------------------
// Unary functions
// ---------------------------------------------------------------------------

// UnaryOp selects a unary function. Values are frozen.
type UnaryOp uint8

const (
	OpNeg       UnaryOp = 1
	OpAbs       UnaryOp = 2
	OpSin       UnaryOp = 3
	OpCos       UnaryOp = 4
	OpTan       UnaryOp = 5
	OpSqrt      UnaryOp = 6
	OpExp       UnaryOp = 7
	OpLog       UnaryOp = 8
	OpFloor     UnaryOp = 9
	OpCeil      UnaryOp = 10
	OpFract     UnaryOp = 11
	OpRound     UnaryOp = 12
	OpSign      UnaryOp = 13
	OpSaturate  UnaryOp = 14
	OpLength    UnaryOp = 15
	OpNormalize UnaryOp = 16
)

var unaryNames = map[UnaryOp]string{
	OpNeg: "neg", OpAbs: "abs", OpSin: "sin", OpCos: "cos", OpTan: "tan",
	OpSqrt: "sqrt", OpExp: "exp", OpLog: "log", OpFloor: "floor",
	OpCeil: "ceil", OpFract: "fract", OpRound: "round", OpSign: "sign",
	OpSaturate: "saturate", OpLength: "length", OpNormalize: "normalize",
}

func (op UnaryOp) String() string { return unaryNames[op] }

// UnaryNode applies a unary function.
type UnaryNode struct {
	exprBase
	op UnaryOp
	a  Node
}

// Unary builds a unary function node.
func Unary(op UnaryOp, a any) Node {
	n := &UnaryNode{exprBase: exprBase{nodeBase: newBase()}, op: op, a: Lit(a)}
	if n.a == nil {
		n.reject("missing operand")
		return n
	}
	if _, known := unaryNames[op]; !known {
		n.reject("unknown function %d", op)
		return n
	}
	s := n.a.Shape()
	switch op {
	case OpNeg, OpAbs:
		if s.IsFloatLike() || s == Int {
			n.shape = s
			return n
		}
	case OpLength:
		if s.IsVector() {
			n.shape = Float
			return n
		}
	case OpNormalize:
		if s.IsVector() {
			n.shape = s
			return n
		}
	default:
		if s.IsFloatLike() {
			n.shape = s
			return n
		}
	}
	n.reject("%s does not accept %s", op, s)
	return n
}

func Neg(a any) Node       { return Unary(OpNeg, a) }
func Abs(a any) Node       { return Unary(OpAbs, a) }
func Sin(a any) Node       { return Unary(OpSin, a) }
func Cos(a any) Node       { return Unary(OpCos, a) }
func Tan(a any) Node       { return Unary(OpTan, a) }
func Sqrt(a any) Node      { return Unary(OpSqrt, a) }
func Exp(a any) Node       { return Unary(OpExp, a) }
func Log(a any) Node       { return Unary(OpLog, a) }
func Floor(a any) Node     { return Unary(OpFloor, a) }
func Ceil(a any) Node      { return Unary(OpCeil, a) }
func Fract(a any) Node     { return Unary(OpFract, a) }
func Round(a any) Node     { return Unary(OpRound, a) }
func Sign(a any) Node      { return Unary(OpSign, a) }
func Saturate(a any) Node  { return Unary(OpSaturate, a) }
func Length(a any) Node    { return Unary(OpLength, a) }
func Normalize(a any) Node { return Unary(OpNormalize, a) }

func (n *UnaryNode) Kind() string   { return n.op.String() }
func (n *UnaryNode) Inputs() []Node { return []Node{n.a} }

func (n *UnaryNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagUnary)
	h.Tag(byte(n.op))
	h.Tag(byte(n.shape))
}

func (n *UnaryNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	if n.op == OpNeg {
		return c.Bind(n, "-"+syms[0]), nil
	}
	return c.Bind(n, fmt.Sprintf("%s(%s)", n.op, syms[0])), nil
}

// ---------------------------------------------------------------------------
// Vector products
// ---------------------------------------------------------------------------

// VectorNode is a dot or cross product.
type VectorNode struct {
	exprBase
	cross bool
	a, b  Node
}

// Dot returns the dot product of two vectors of equal width.
func Dot(a, b any) Node { return vectorProduct(false, a, b) }

// Cross returns the cross product of two 3-vectors.
func Cross(a, b any) Node { return vectorProduct(true, a, b) }

func vectorProduct(cross bool, a, b any) Node {
	n := &VectorNode{exprBase: exprBase{nodeBase: newBase()}, cross: cross, a: Lit(a), b: Lit(b)}
	sh, ok := shapesOf(n.Inputs())
	switch {
	case !ok:
		n.reject("missing operand")
	case sh[0] != sh[1] || !sh[0].IsVector():
		n.reject("%s needs two vectors of equal width, got %s and %s", n.Kind(), sh[0], sh[1])
	case cross && sh[0] != Vec3:
		n.reject("cross needs vec3 operands, got %s", sh[0])
	case cross:
		n.shape = Vec3
	default:
		n.shape = Float
	}
	return n
}

func (n *VectorNode) Kind() string {
	if n.cross {
		return "cross"
	}
	return "dot"
}

func (n *VectorNode) Inputs() []Node { return []Node{n.a, n.b} }

func (n *VectorNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagVector)
	h.Bool(n.cross)
	h.Tag(byte(n.a.Shape()))
}

func (n *VectorNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	return c.Bind(n, fmt.Sprintf("%s(%s, %s)", n.Kind(), syms[0], syms[1])), nil
}

// ---------------------------------------------------------------------------
// Comparisons and logic
// ---------------------------------------------------------------------------

// CompareOp selects a comparison. Values are frozen.
type CompareOp uint8

const (
	OpLess         CompareOp = 1
	OpLessEqual    CompareOp = 2
	OpGreater      CompareOp = 3
	OpGreaterEqual CompareOp = 4
	OpEqual        CompareOp = 5
	OpNotEqual     CompareOp = 6
)

var compareInfix = map[CompareOp]string{
	OpLess: "<", OpLessEqual: "<=", OpGreater: ">", OpGreaterEqual: ">=",
	OpEqual: "==", OpNotEqual: "!=",
}

// CompareNode compares two scalars of the same shape.
type CompareNode struct {
	exprBase
	op   CompareOp
	a, b Node
}

// Compare builds a comparison node producing a Bool.
func Compare(op CompareOp, a, b any) Node {
	n := &CompareNode{exprBase: exprBase{nodeBase: newBase()}, op: op, a: Lit(a), b: Lit(b)}
	sh, ok := shapesOf(n.Inputs())
	switch {
	case !ok:
		n.reject("missing operand")
	case compareInfix[op] == "":
		n.reject("unknown comparison %d", op)
	case sh[0] != sh[1] || (sh[0] != Float && sh[0] != Int):
		n.reject("comparison needs two float or two int scalars, got %s and %s", sh[0], sh[1])
	default:
		n.shape = Bool
	}
	return n
}

func Less(a, b any) Node         { return Compare(OpLess, a, b) }
func LessEqual(a, b any) Node    { return Compare(OpLessEqual, a, b) }
func Greater(a, b any) Node      { return Compare(OpGreater, a, b) }
func GreaterEqual(a, b any) Node { return Compare(OpGreaterEqual, a, b) }
func Equal(a, b any) Node        { return Compare(OpEqual, a, b) }
func NotEqual(a, b any) Node     { return Compare(OpNotEqual, a, b) }

func (n *CompareNode) Kind() string   { return "compare" }
func (n *CompareNode) Inputs() []Node { return []Node{n.a, n.b} }

func (n *CompareNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagCompare)
	h.Tag(byte(n.op))
	h.Tag(byte(n.a.Shape()))
}

func (n *CompareNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	return c.Bind(n, fmt.Sprintf("%s %s %s", syms[0], compareInfix[n.op], syms[1])), nil
}

// LogicNode is a boolean and/or/not.
type LogicNode struct {
	exprBase
	op  byte // '&', '|', '!'
	ins []Node
}

func logic(op byte, ins ...any) Node {
	n := &LogicNode{exprBase: exprBase{nodeBase: newBase()}, op: op, ins: lits(ins...)}
	sh, ok := shapesOf(n.ins)
	if !ok {
		n.reject("missing operand")
		return n
	}
	for _, s := range sh {
		if s != Bool {
			n.reject("logic operands must be bool, got %s", s)
			return n
		}
	}
	n.shape = Bool
	return n
}

func And(a, b any) Node { return logic('&', a, b) }
func Or(a, b any) Node  { return logic('|', a, b) }
func Not(a any) Node    { return logic('!', a) }

func (n *LogicNode) Kind() string   { return "logic" }
func (n *LogicNode) Inputs() []Node { return n.ins }

func (n *LogicNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagLogic)
	h.Tag(n.op)
}

func (n *LogicNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.ins)
	if err != nil {
		return "", err
	}
	switch n.op {
	case '!':
		return c.Bind(n, "!"+syms[0]), nil
	case '&':
		return c.Bind(n, syms[0]+" && "+syms[1]), nil
	default:
		return c.Bind(n, syms[0]+" || "+syms[1]), nil
	}
}

// ---------------------------------------------------------------------------
// Swizzle and construction
// ---------------------------------------------------------------------------

// SwizzleNode projects components of a vector.
type SwizzleNode struct {
	exprBase
	v    Node
	mask string
}

// Swizzle selects components of v by mask, e.g. "xz" or "zyx".
func Swizzle(v any, mask string) Node {
	n := &SwizzleNode{exprBase: exprBase{nodeBase: newBase()}, v: Lit(v), mask: mask}
	if n.v == nil {
		n.reject("missing operand")
		return n
	}
	src := n.v.Shape()
	if !src.IsVector() && src != Rotation {
		n.reject("cannot swizzle %s", src)
		return n
	}
	out, ok := vectorShape(len(mask))
	if !ok {
		n.reject("unsupported %d-component swizzle target %q on %s", len(mask), mask, src)
		return n
	}
	for _, r := range mask {
		idx := strings.IndexRune("xyzw", r)
		if idx < 0 {
			n.reject("invalid swizzle component %q", r)
			return n
		}
		if idx >= src.Components() {
			n.reject("component %q is out of range for %s", r, src)
			return n
		}
	}
	n.shape = out
	return n
}

// X, Y and Z project a single component.
func X(v any) Node { return Swizzle(v, "x") }
func Y(v any) Node { return Swizzle(v, "y") }
func Z(v any) Node { return Swizzle(v, "z") }

func (n *SwizzleNode) Kind() string   { return "swizzle" }
func (n *SwizzleNode) Inputs() []Node { return []Node{n.v} }

func (n *SwizzleNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagSwizzle)
	h.Str(n.mask)
}

func (n *SwizzleNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	return c.Bind(n, syms[0]+"."+n.mask), nil
}

// ConstructNode builds a vector from float scalars.
type ConstructNode struct {
	exprBase
	parts []Node
}

// Vec2Of builds a 2-vector from two floats.
func Vec2Of(x, y any) Node { return construct(x, y) }

// Vec3Of builds a 3-vector from three floats.
func Vec3Of(x, y, z any) Node { return construct(x, y, z) }

func construct(parts ...any) Node {
	n := &ConstructNode{exprBase: exprBase{nodeBase: newBase()}, parts: lits(parts...)}
	sh, ok := shapesOf(n.parts)
	if !ok {
		n.reject("missing component")
		return n
	}
	for _, s := range sh {
		if s != Float {
			n.reject("vector components must be float, got %s", s)
			return n
		}
	}
	n.shape, _ = vectorShape(len(parts))
	return n
}

func (n *ConstructNode) Kind() string   { return "construct" }
func (n *ConstructNode) Inputs() []Node { return n.parts }

func (n *ConstructNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagConstruct)
	h.Tag(byte(len(n.parts)))
}

func (n *ConstructNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.parts)
	if err != nil {
		return "", err
	}
	return c.Bind(n, fmt.Sprintf("%s(%s)", n.shape.WGSL(), strings.Join(syms, ", "))), nil
}

// ---------------------------------------------------------------------------
// Casts
// ---------------------------------------------------------------------------

// CastNode converts between scalar shapes.
type CastNode struct {
	exprBase
	v  Node
	to Shape
}

// Cast converts v to the target shape. Supported: float, int and bool
// among each other, and identity casts.
func Cast(v any, to Shape) Node {
	n := &CastNode{exprBase: exprBase{nodeBase: newBase()}, v: Lit(v), to: to}
	if n.v == nil {
		n.reject("missing operand")
		return n
	}
	from := n.v.Shape()
	scalar := func(s Shape) bool { return s == Float || s == Int || s == Bool }
	if from != to && !(scalar(from) && scalar(to)) {
		n.reject("cannot cast %s to %s", from, to)
		return n
	}
	n.shape = to
	return n
}

func (n *CastNode) Kind() string   { return "cast" }
func (n *CastNode) Inputs() []Node { return []Node{n.v} }

func (n *CastNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagCast)
	h.Tag(byte(n.v.Shape()))
	h.Tag(byte(n.to))
}

func (n *CastNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	sym, from := syms[0], n.v.Shape()
	switch {
	case from == n.to:
		return sym, nil
	case n.to == Bool && from == Float:
		return c.Bind(n, sym+" != 0.0"), nil
	case n.to == Bool:
		return c.Bind(n, sym+" != 0"), nil
	case from == Bool && n.to == Float:
		return c.Bind(n, fmt.Sprintf("select(0.0, 1.0, %s)", sym)), nil
	case from == Bool:
		return c.Bind(n, fmt.Sprintf("select(0, 1, %s)", sym)), nil
	default:
		return c.Bind(n, fmt.Sprintf("%s(%s)", n.to.WGSL(), sym)), nil
	}
}

// BroadcastNode widens a float scalar to a vector.
type BroadcastNode struct {
	exprBase
	v Node
}

// Broadcast widens scalar s to every lane of the target vector shape.
func Broadcast(s any, to Shape) Node {
	n := &BroadcastNode{exprBase: exprBase{nodeBase: newBase()}, v: Lit(s)}
	switch {
	case n.v == nil:
		n.reject("missing operand")
	case n.v.Shape() != Float:
		n.reject("can only broadcast float, got %s", n.v.Shape())
	case !to.IsVector():
		n.reject("cannot broadcast to %s", to)
	default:
		n.shape = to
	}
	return n
}

func (n *BroadcastNode) Kind() string   { return "broadcast" }
func (n *BroadcastNode) Inputs() []Node { return []Node{n.v} }

func (n *BroadcastNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagBroadcast)
	h.Tag(byte(n.shape))
}

func (n *BroadcastNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	return c.Bind(n, widen(syms[0], Float, n.shape)), nil
}

// ---------------------------------------------------------------------------
// Select, lerp, clamp and friends
// ---------------------------------------------------------------------------

// SelectNode picks a when cond holds, b otherwise.
type SelectNode struct {
	exprBase
	cond, a, b Node
}

// Select returns a when cond is true and b otherwise.
func Select(cond, a, b any) Node {
	n := &SelectNode{exprBase: exprBase{nodeBase: newBase()}, cond: Lit(cond), a: Lit(a), b: Lit(b)}
	sh, ok := shapesOf(n.Inputs())
	switch {
	case !ok:
		n.reject("missing operand")
	case sh[0] != Bool:
		n.reject("select condition must be bool, got %s", sh[0])
	case sh[1] != sh[2] || !sh[1].Valid():
		n.reject("select branches differ: %s and %s", sh[1], sh[2])
	default:
		n.shape = sh[1]
	}
	return n
}

func (n *SelectNode) Kind() string   { return "select" }
func (n *SelectNode) Inputs() []Node { return []Node{n.cond, n.a, n.b} }

func (n *SelectNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagSelect)
	h.Tag(byte(n.shape))
}

func (n *SelectNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	return c.Bind(n, fmt.Sprintf("select(%s, %s, %s)", syms[2], syms[1], syms[0])), nil
}

// blendNode covers the fixed-arity float builtins whose trailing operands
// may be scalars broadcast to the primary operand's shape.
type blendNode struct {
	exprBase
	tag  byte
	kind string
	ins  []Node
	// primary is the index of the operand that defines the result shape.
	primary int
	render  func(syms []string) string
}

func newBlend(tag byte, kind string, primary int, render func([]string) string, ins ...any) *blendNode {
	n := &blendNode{exprBase: exprBase{nodeBase: newBase()}, tag: tag, kind: kind, ins: lits(ins...), primary: primary, render: render}
	sh, ok := shapesOf(n.ins)
	if !ok {
		n.reject("missing operand")
		return n
	}
	res := sh[primary]
	if !res.IsFloatLike() {
		n.reject("%s does not accept %s", kind, res)
		return n
	}
	for i, s := range sh {
		if s != res && s != Float {
			n.reject("%s operand %d is %s, want %s or float", kind, i, s, res)
			return n
		}
	}
	n.shape = res
	return n
}

// Lerp linearly interpolates from a to b by t.
func Lerp(a, b, t any) Node {
	n := newBlend(hash.TagLerp, "lerp", 0, func(s []string) string {
		return fmt.Sprintf("mix(%s, %s, %s)", s[0], s[1], s[2])
	}, a, b, t)
	if n.bad == "" && n.ins[1].Shape() != n.shape {
		n.reject("lerp endpoints differ: %s and %s", n.shape, n.ins[1].Shape())
	}
	return n
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi any) Node {
	return newBlend(hash.TagClamp, "clamp", 0, func(s []string) string {
		return fmt.Sprintf("clamp(%s, %s, %s)", s[0], s[1], s[2])
	}, x, lo, hi)
}

// Smoothstep is the Hermite step of x between edges e0 and e1.
func Smoothstep(e0, e1, x any) Node {
	return newBlend(hash.TagSmoothstep, "smoothstep", 2, func(s []string) string {
		return fmt.Sprintf("smoothstep(%s, %s, %s)", s[0], s[1], s[2])
	}, e0, e1, x)
}

// Remap maps x from [inLo, inHi] to [outLo, outHi].
func Remap(x, inLo, inHi, outLo, outHi any) Node {
	return newBlend(hash.TagRemap, "remap", 0, func(s []string) string {
		return fmt.Sprintf("%s + (%s - %s) * (%s - %s) / (%s - %s)", s[3], s[0], s[1], s[4], s[3], s[2], s[1])
	}, x, inLo, inHi, outLo, outHi)
}

func (n *blendNode) Kind() string   { return n.kind }
func (n *blendNode) Inputs() []Node { return n.ins }

func (n *blendNode) structure(h *hash.Accumulator) {
	h.Tag(n.tag)
	h.Tag(byte(n.shape))
	for _, in := range n.ins {
		h.Tag(byte(in.Shape()))
	}
}

func (n *blendNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.ins)
	if err != nil {
		return "", err
	}
	for i, in := range n.ins {
		syms[i] = widen(syms[i], in.Shape(), n.shape)
	}
	return c.Bind(n, n.render(syms)), nil
}

// ---------------------------------------------------------------------------
// Rotations
// ---------------------------------------------------------------------------

// RotationNode builds a quaternion or rotates a vector by one.
type RotationNode struct {
	exprBase
	tag  byte
	kind string
	fn   string
	ins  []Node
}

func rotation(tag byte, kind, fn string, want []Shape, out Shape, ins ...any) Node {
	n := &RotationNode{exprBase: exprBase{nodeBase: newBase()}, tag: tag, kind: kind, fn: fn, ins: lits(ins...)}
	sh, ok := shapesOf(n.ins)
	if !ok {
		n.reject("missing operand")
		return n
	}
	for i, s := range sh {
		if s != want[i] {
			n.reject("%s operand %d is %s, want %s", kind, i, s, want[i])
			return n
		}
	}
	n.shape = out
	return n
}

// RotationEuler builds a quaternion from XYZ euler angles in radians.
func RotationEuler(angles any) Node {
	return rotation(hash.TagRotation, "rotation_euler", "vg_quat_euler", []Shape{Vec3}, Rotation, angles)
}

// RotationAxisAngle builds a quaternion rotating angle radians about axis.
func RotationAxisAngle(axis, angle any) Node {
	return rotation(hash.TagRotation, "rotation_axis_angle", "vg_quat_axis_angle", []Shape{Vec3, Float}, Rotation, axis, angle)
}

// Rotate applies quaternion q to vector v.
func Rotate(v, q any) Node {
	return rotation(hash.TagRotate, "rotate", "vg_quat_rotate", []Shape{Vec3, Rotation}, Vec3, v, q)
}

func (n *RotationNode) Kind() string   { return n.kind }
func (n *RotationNode) Inputs() []Node { return n.ins }

func (n *RotationNode) structure(h *hash.Accumulator) {
	h.Tag(n.tag)
	h.Str(n.fn)
}

func (n *RotationNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.ins)
	if err != nil {
		return "", err
	}
	c.Require(n.fn)
	return c.Bind(n, fmt.Sprintf("%s(%s)", n.fn, strings.Join(syms, ", "))), nil
}
