package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Built-in nodes: noise, signed distance functions, cellular sampling and
// caching. Loops only ever appear inside the fixed templates here.
// ---------------------------------------------------------------------------

// NoiseKind selects a gradient or value noise family. Values are frozen.
type NoiseKind uint8

const (
	NoiseValue  NoiseKind = 1
	NoisePerlin NoiseKind = 2
)

func (k NoiseKind) String() string {
	switch k {
	case NoiseValue:
		return "value"
	case NoisePerlin:
		return "perlin"
	default:
		return fmt.Sprintf("noise(%d)", uint8(k))
	}
}

// Metric selects a distance metric. Values are frozen.
type Metric uint8

const (
	Euclidean Metric = 1
	Manhattan Metric = 2
	Chebyshev Metric = 3
)

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Manhattan:
		return "manhattan"
	case Chebyshev:
		return "chebyshev"
	default:
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
}

func (m Metric) valid() bool { return m >= Euclidean && m <= Chebyshev }

// metricExpr renders the length of delta (a named symbol of shape s) under m.
func metricExpr(m Metric, delta string, s Shape) string {
	if s == Float {
		return fmt.Sprintf("abs(%s)", delta)
	}
	switch m {
	case Manhattan:
		return fmt.Sprintf("dot(abs(%s), %s(1.0))", delta, s.WGSL())
	case Chebyshev:
		out := fmt.Sprintf("abs(%s.x)", delta)
		for _, l := range lanes[1:s.Components()] {
			out = fmt.Sprintf("max(%s, abs(%s.%s))", out, delta, l)
		}
		return out
	default:
		return fmt.Sprintf("length(%s)", delta)
	}
}

// seeded offsets a sampling point by the segment seed.
func seeded(p string, s Shape) string {
	if s == Vec2 {
		return fmt.Sprintf("(%s + vg_seed3().xz)", p)
	}
	return fmt.Sprintf("(%s + vg_seed3())", p)
}

// noiseFn returns the library routine for kind at dims.
func noiseFn(kind NoiseKind, d Dims) string {
	return fmt.Sprintf("vg_%s%d", kind, d)
}

// ---------------------------------------------------------------------------
// Noise
// ---------------------------------------------------------------------------

// NoiseNode samples seeded noise at a 2D or 3D point.
type NoiseNode struct {
	exprBase
	p    Node
	kind NoiseKind
	dims Dims
}

// Noise samples noise of the given kind at p, which must be 2D or 3D. The
// result lies roughly in [-1, 1].
func Noise(p any, kind NoiseKind) Node {
	n := &NoiseNode{exprBase: exprBase{nodeBase: newBase()}, p: Lit(p), kind: kind}
	switch {
	case n.p == nil:
		n.reject("missing operand")
	case kind != NoiseValue && kind != NoisePerlin:
		n.reject("unknown noise kind %d", kind)
	default:
		d, ok := spatialDims(n.p.Shape())
		if !ok {
			n.reject("noise input must be 2D or 3D, got %s", n.p.Shape())
			return n
		}
		n.dims = d
		n.shape = Float
	}
	return n
}

func (n *NoiseNode) Kind() string   { return "noise" }
func (n *NoiseNode) Inputs() []Node { return []Node{n.p} }

func (n *NoiseNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagNoise)
	h.Tag(byte(n.kind))
	h.Tag(byte(n.dims))
}

func (n *NoiseNode) emit(c *Context) (string, error) {
	syms, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	fn := noiseFn(n.kind, n.dims)
	c.Require(fn)
	return c.Bind(n, fmt.Sprintf("%s(%s)", fn, seeded(syms[0], n.p.Shape()))), nil
}

// MaxOctaves bounds the octave count of fractal noise.
const MaxOctaves = 16

// FractalNode sums octaves of noise in an extracted loop.
type FractalNode struct {
	exprBase
	p, lacunarity, persistence Node
	kind                       NoiseKind
	octaves                    int
	dims                       Dims
}

// Fractal sums octaves of noise at p. Each octave scales frequency by
// lacunarity and amplitude by persistence; the sum is normalized by the
// total amplitude.
func Fractal(p any, kind NoiseKind, octaves int, lacunarity, persistence any) Node {
	n := &FractalNode{
		exprBase:    exprBase{nodeBase: newBase()},
		p:           Lit(p),
		lacunarity:  Lit(lacunarity),
		persistence: Lit(persistence),
		kind:        kind,
		octaves:     octaves,
	}
	sh, ok := shapesOf(n.Inputs())
	if !ok {
		n.reject("missing operand")
		return n
	}
	d, ok := spatialDims(sh[0])
	switch {
	case !ok:
		n.reject("fractal input must be 2D or 3D, got %s", sh[0])
	case kind != NoiseValue && kind != NoisePerlin:
		n.reject("unknown noise kind %d", kind)
	case sh[1] != Float || sh[2] != Float:
		n.reject("lacunarity and persistence must be float, got %s and %s", sh[1], sh[2])
	default:
		n.dims = d
		n.shape = Float
	}
	return n
}

func (n *FractalNode) Kind() string   { return "fractal" }
func (n *FractalNode) Inputs() []Node { return []Node{n.p, n.lacunarity, n.persistence} }

func (n *FractalNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagFractal)
	h.Tag(byte(n.kind))
	h.Tag(byte(n.dims))
	h.Uint16(uint16(n.octaves))
}

func (n *FractalNode) emit(c *Context) (string, error) {
	if _, err := emitInputs(c, n, &n.exprBase, n.Inputs()); err != nil {
		return "", err
	}
	if n.octaves < 1 || n.octaves > MaxOctaves {
		return "", configErr("octaves", "%d is outside 1..%d", n.octaves, MaxOctaves)
	}
	fn := noiseFn(n.kind, n.dims)
	c.Require(fn)
	ps := n.p.Shape()
	return c.Nested(n, NestedScope{
		Key:    fmt.Sprintf("fractal/%s/%s/%d", n.kind, n.dims, n.octaves),
		Prefix: "vg_fractal",
		Inputs: n.Inputs(),
		Output: Float,
		Body: func(c *Context, a []string) (string, error) {
			c.Line("var sum = 0.0;")
			c.Line("var amp = 1.0;")
			c.Line("var freq = 1.0;")
			c.Line("var norm = 0.0;")
			c.Line("for (var i = 0; i < %d; i = i + 1) {", n.octaves)
			c.Line("\tsum = sum + amp * %s(%s * freq + %s(f32(i) * 17.0));", fn, seeded(a[0], ps), ps.WGSL())
			c.Line("\tnorm = norm + amp;")
			c.Line("\tamp = amp * %s;", a[2])
			c.Line("\tfreq = freq * %s;", a[1])
			c.Line("}")
			return "sum / norm", nil
		},
	})
}

// ---------------------------------------------------------------------------
// Signed distance primitives
// ---------------------------------------------------------------------------

// Primitive selects an SDF primitive. Values are frozen.
type Primitive uint8

const (
	PrimSphere   Primitive = 1
	PrimBox      Primitive = 2
	PrimTorus    Primitive = 3
	PrimPlane    Primitive = 4
	PrimCylinder Primitive = 5
)

var primitiveNames = map[Primitive]string{
	PrimSphere: "sphere", PrimBox: "box", PrimTorus: "torus",
	PrimPlane: "plane", PrimCylinder: "cylinder",
}

func (p Primitive) String() string { return primitiveNames[p] }

// SDFNode is a signed distance primitive evaluated at a point.
type SDFNode struct {
	exprBase
	prim Primitive
	ins  []Node
}

func primitive(prim Primitive, want []Shape, ins ...any) Node {
	n := &SDFNode{exprBase: exprBase{nodeBase: newBase()}, prim: prim, ins: lits(ins...)}
	sh, ok := shapesOf(n.ins)
	if !ok {
		n.reject("missing operand")
		return n
	}
	for i, s := range sh {
		if s != want[i] && !(i == 0 && prim == PrimSphere && s == Vec2) {
			n.reject("%s operand %d is %s, want %s", prim, i, s, want[i])
			return n
		}
	}
	n.shape = Float
	return n
}

// Sphere is the distance from p to a sphere (or circle, for 2D p) of the
// given radius at the origin.
func Sphere(p, radius any) Node {
	return primitive(PrimSphere, []Shape{Vec3, Float}, p, radius)
}

// Box is the distance from p to an axis-aligned box with half extents b.
func Box(p, halfExtents any) Node {
	return primitive(PrimBox, []Shape{Vec3, Vec3}, p, halfExtents)
}

// Torus is the distance from p to a torus in the XZ plane.
func Torus(p, major, minor any) Node {
	return primitive(PrimTorus, []Shape{Vec3, Float, Float}, p, major, minor)
}

// Plane is the signed distance from p to the plane dot(p, normal) + height = 0.
func Plane(p, normal, height any) Node {
	return primitive(PrimPlane, []Shape{Vec3, Vec3, Float}, p, normal, height)
}

// Cylinder is the distance from p to a capped Y-axis cylinder.
func Cylinder(p, radius, halfHeight any) Node {
	return primitive(PrimCylinder, []Shape{Vec3, Float, Float}, p, radius, halfHeight)
}

func (n *SDFNode) Kind() string   { return n.prim.String() }
func (n *SDFNode) Inputs() []Node { return n.ins }

func (n *SDFNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagSDFPrimitive)
	h.Tag(byte(n.prim))
	h.Tag(byte(n.ins[0].Shape()))
}

func (n *SDFNode) emit(c *Context) (string, error) {
	s, err := emitInputs(c, n, &n.exprBase, n.ins)
	if err != nil {
		return "", err
	}
	var expr string
	switch n.prim {
	case PrimSphere:
		expr = fmt.Sprintf("length(%s) - %s", s[0], s[1])
	case PrimPlane:
		expr = fmt.Sprintf("dot(%s, normalize(%s)) + %s", s[0], s[1], s[2])
	default:
		fn := "vg_sdf_" + n.prim.String()
		c.Require(fn)
		expr = fmt.Sprintf("%s(%s)", fn, strings.Join(s, ", "))
	}
	return c.Bind(n, expr), nil
}

// ---------------------------------------------------------------------------
// SDF combinators
// ---------------------------------------------------------------------------

// Combine selects a boolean SDF combinator. Values are frozen.
type Combine uint8

const (
	CombineUnion        Combine = 1
	CombineIntersection Combine = 2
	CombineSubtraction  Combine = 3
)

var combineNames = map[Combine]string{
	CombineUnion: "union", CombineIntersection: "intersection", CombineSubtraction: "subtraction",
}

func (op Combine) String() string { return combineNames[op] }

// CombineNode merges two distance fields.
type CombineNode struct {
	exprBase
	op     Combine
	smooth bool
	ins    []Node
}

func combine(op Combine, smooth bool, ins ...any) Node {
	n := &CombineNode{exprBase: exprBase{nodeBase: newBase()}, op: op, smooth: smooth, ins: lits(ins...)}
	sh, ok := shapesOf(n.ins)
	if !ok {
		n.reject("missing operand")
		return n
	}
	for i, s := range sh {
		if s != Float {
			n.reject("%s operand %d must be float, got %s", n.Kind(), i, s)
			return n
		}
	}
	n.shape = Float
	return n
}

func Union(a, b any) Node        { return combine(CombineUnion, false, a, b) }
func Intersection(a, b any) Node { return combine(CombineIntersection, false, a, b) }
func Subtraction(a, b any) Node  { return combine(CombineSubtraction, false, a, b) }

// SmoothUnion blends a and b over a band of width k.
func SmoothUnion(a, b, k any) Node        { return combine(CombineUnion, true, a, b, k) }
func SmoothIntersection(a, b, k any) Node { return combine(CombineIntersection, true, a, b, k) }
func SmoothSubtraction(a, b, k any) Node  { return combine(CombineSubtraction, true, a, b, k) }

func (n *CombineNode) Kind() string {
	if n.smooth {
		return "smooth_" + n.op.String()
	}
	return n.op.String()
}

func (n *CombineNode) Inputs() []Node { return n.ins }

func (n *CombineNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagSDFCombine)
	h.Tag(byte(n.op))
	h.Bool(n.smooth)
}

func (n *CombineNode) emit(c *Context) (string, error) {
	s, err := emitInputs(c, n, &n.exprBase, n.ins)
	if err != nil {
		return "", err
	}
	a, b := s[0], s[1]
	if n.op == CombineSubtraction {
		b = "-" + b
	}
	if !n.smooth {
		fn := "min"
		if n.op != CombineUnion {
			fn = "max"
		}
		return c.Bind(n, fmt.Sprintf("%s(%s, %s)", fn, a, b)), nil
	}
	fn := "vg_smooth_min"
	if n.op != CombineUnion {
		fn = "vg_smooth_max"
	}
	c.Require(fn)
	return c.Bind(n, fmt.Sprintf("%s(%s, %s, %s)", fn, a, b, s[2])), nil
}

// ---------------------------------------------------------------------------
// Distance metrics
// ---------------------------------------------------------------------------

// DistanceNode measures the distance between two points under a metric.
type DistanceNode struct {
	exprBase
	a, b   Node
	metric Metric
}

// Distance returns the distance between a and b under metric m.
func Distance(a, b any, m Metric) Node {
	n := &DistanceNode{exprBase: exprBase{nodeBase: newBase()}, a: Lit(a), b: Lit(b), metric: m}
	sh, ok := shapesOf(n.Inputs())
	switch {
	case !ok:
		n.reject("missing operand")
	case !m.valid():
		n.reject("unknown metric %d", m)
	case sh[0] != sh[1] || !sh[0].IsFloatLike():
		n.reject("distance needs two points of equal shape, got %s and %s", sh[0], sh[1])
	default:
		n.shape = Float
	}
	return n
}

func (n *DistanceNode) Kind() string   { return "distance" }
func (n *DistanceNode) Inputs() []Node { return []Node{n.a, n.b} }

func (n *DistanceNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagDistance)
	h.Tag(byte(n.metric))
	h.Tag(byte(n.a.Shape()))
}

func (n *DistanceNode) emit(c *Context) (string, error) {
	s, err := emitInputs(c, n, &n.exprBase, n.Inputs())
	if err != nil {
		return "", err
	}
	sh := n.a.Shape()
	delta := c.Local(sh, fmt.Sprintf("%s - %s", s[0], s[1]))
	return c.Bind(n, metricExpr(n.metric, delta, sh)), nil
}

// ---------------------------------------------------------------------------
// Cellular sampling
// ---------------------------------------------------------------------------

// CellFeature selects which nearest-feature distance cellular noise returns.
// Values are frozen.
type CellFeature uint8

const (
	F1        CellFeature = 1
	F2        CellFeature = 2
	F2MinusF1 CellFeature = 3
)

func (f CellFeature) String() string {
	switch f {
	case F1:
		return "f1"
	case F2:
		return "f2"
	case F2MinusF1:
		return "f2-f1"
	default:
		return fmt.Sprintf("feature(%d)", uint8(f))
	}
}

// CellularNode is tiled cellular noise: a neighbour search over the 3x3 or
// 3x3x3 cells around p, extracted into its own function.
type CellularNode struct {
	exprBase
	p       Node
	metric  Metric
	feature CellFeature
	dims    Dims
}

// Cellular samples cellular noise at p under metric m.
func Cellular(p any, m Metric, feature CellFeature) Node {
	n := &CellularNode{exprBase: exprBase{nodeBase: newBase()}, p: Lit(p), metric: m, feature: feature}
	if n.p == nil {
		n.reject("missing operand")
		return n
	}
	d, ok := spatialDims(n.p.Shape())
	switch {
	case !ok:
		n.reject("cellular input must be 2D or 3D, got %s", n.p.Shape())
	case !m.valid():
		n.reject("unknown metric %d", m)
	case feature < F1 || feature > F2MinusF1:
		n.reject("unknown cell feature %d", feature)
	default:
		n.dims = d
		n.shape = Float
	}
	return n
}

func (n *CellularNode) Kind() string   { return "cellular" }
func (n *CellularNode) Inputs() []Node { return []Node{n.p} }

func (n *CellularNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagCellular)
	h.Tag(byte(n.dims))
	h.Tag(byte(n.metric))
	h.Tag(byte(n.feature))
}

func (n *CellularNode) emit(c *Context) (string, error) {
	if _, err := emitInputs(c, n, &n.exprBase, n.Inputs()); err != nil {
		return "", err
	}
	ps := n.p.Shape()
	vec := ps.WGSL()
	hashFn := "vg_hash33"
	if n.dims == Dims2 {
		hashFn = "vg_hash22"
	}
	c.Require(hashFn)
	return c.Nested(n, NestedScope{
		Key:    fmt.Sprintf("cellular/%s/%s/%s", n.dims, n.metric, n.feature),
		Prefix: "vg_cellular",
		Inputs: n.Inputs(),
		Output: Float,
		Body: func(c *Context, a []string) (string, error) {
			c.Line("let sp = %s;", seeded(a[0], ps))
			c.Line("let cell = floor(sp);")
			c.Line("let local = sp - cell;")
			c.Line("var f1 = 1e9;")
			c.Line("var f2 = 1e9;")
			axes := lanes[:n.dims]
			indent := ""
			for i := len(axes) - 1; i >= 0; i-- {
				c.Line("%sfor (var %s = -1; %s <= 1; %s = %s + 1) {", indent, "o"+axes[i], "o"+axes[i], "o"+axes[i], "o"+axes[i])
				indent += "\t"
			}
			casts := make([]string, len(axes))
			for i, l := range axes {
				casts[i] = "f32(o" + l + ")"
			}
			c.Line("%slet o = %s(%s);", indent, vec, strings.Join(casts, ", "))
			c.Line("%slet delta = o + %s(cell + o) - local;", indent, hashFn)
			c.Line("%slet d = %s;", indent, metricExpr(n.metric, "delta", ps))
			c.Line("%sif (d < f1) {", indent)
			c.Line("%s\tf2 = f1;", indent)
			c.Line("%s\tf1 = d;", indent)
			c.Line("%s} else if (d < f2) {", indent)
			c.Line("%s\tf2 = d;", indent)
			c.Line("%s}", indent)
			for range axes {
				indent = indent[1:]
				c.Line("%s}", indent)
			}
			switch n.feature {
			case F2:
				return "f2", nil
			case F2MinusF1:
				return "f2 - f1", nil
			default:
				return "f1", nil
			}
		},
	})
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

// CacheNode evaluates its value in a separate, coarser 2D dispatch over the
// XZ plane and samples the result in the caller. The value is evaluated at
// y = 0.
type CacheNode struct {
	exprBase
	value     Node
	reduction int
}

// Cache evaluates value once per cell of a 2D grid reduced by 2^reduction
// and reads it back wherever it is used.
func Cache(value any, reduction int) Node {
	n := &CacheNode{exprBase: exprBase{nodeBase: newBase()}, value: Lit(value), reduction: reduction}
	switch {
	case n.value == nil:
		n.reject("missing operand")
	case n.value.Shape() == Bool || !n.value.Shape().Valid():
		n.reject("cannot cache %s", n.value.Shape())
	default:
		n.shape = n.value.Shape()
	}
	return n
}

// Reduction returns the resolution-reduction exponent.
func (n *CacheNode) Reduction() int { return n.reduction }

func (n *CacheNode) Kind() string   { return "cache" }
func (n *CacheNode) Inputs() []Node { return []Node{n.value} }

func (n *CacheNode) structure(h *hash.Accumulator) {
	h.Tag(hash.TagCache)
	h.Uint16(uint16(n.reduction))
	h.Tag(byte(n.shape))
}

func (n *CacheNode) emit(c *Context) (string, error) {
	if n.reduction < 0 || n.reduction > MaxReduction {
		return "", configErr("reduction", "%d is outside 0..%d", n.reduction, MaxReduction)
	}
	if n.bad != "" {
		return "", shapeErr(n, "%s", n.bad)
	}
	pos, ok := c.positionSymbol()
	if !ok {
		return "", structureErr(n, "cache sampled where position is not available")
	}
	d, err := c.cacheDispatch(n)
	if err != nil {
		return "", err
	}
	c.Require("vg_cache_index")
	return c.Bind(n, fmt.Sprintf("%s[vg_cache_index(%s, %du)]", d.Outputs[0].Buffer, pos, n.reduction)), nil
}
