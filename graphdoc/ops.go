package graphdoc

import (
	"fmt"
	"math"
	"slices"

	"github.com/chazu/voxgraph/compiler"
)

// opSpec builds one node kind from resolved inputs. arity -1 accepts any
// number of inputs and leaves the check to build.
type opSpec struct {
	arity int
	build func(spec *NodeSpec, in []any) (compiler.Node, error)
}

// ops is the closed set of document ops, filled once at init.
var ops = make(map[string]opSpec)

func init() {
	for name, op := range map[string]compiler.BinaryOp{
		"add": compiler.OpAdd, "sub": compiler.OpSub, "mul": compiler.OpMul, "div": compiler.OpDiv,
		"mod": compiler.OpMod, "min": compiler.OpMin, "max": compiler.OpMax, "pow": compiler.OpPow,
	} {
		ops[name] = fixed2(func(a, b any) compiler.Node { return compiler.Binary(op, a, b) })
	}
	for name, op := range map[string]compiler.UnaryOp{
		"neg": compiler.OpNeg, "abs": compiler.OpAbs, "sin": compiler.OpSin, "cos": compiler.OpCos,
		"tan": compiler.OpTan, "sqrt": compiler.OpSqrt, "exp": compiler.OpExp, "log": compiler.OpLog,
		"floor": compiler.OpFloor, "ceil": compiler.OpCeil, "fract": compiler.OpFract, "round": compiler.OpRound,
		"sign": compiler.OpSign, "saturate": compiler.OpSaturate, "length": compiler.OpLength,
		"normalize": compiler.OpNormalize,
	} {
		ops[name] = fixed1(func(a any) compiler.Node { return compiler.Unary(op, a) })
	}
	for name, op := range map[string]compiler.CompareOp{
		"less": compiler.OpLess, "less_equal": compiler.OpLessEqual, "greater": compiler.OpGreater,
		"greater_equal": compiler.OpGreaterEqual, "equal": compiler.OpEqual, "not_equal": compiler.OpNotEqual,
	} {
		ops[name] = fixed2(func(a, b any) compiler.Node { return compiler.Compare(op, a, b) })
	}

	ops["dot"] = fixed2(compiler.Dot)
	ops["cross"] = fixed2(compiler.Cross)
	ops["and"] = fixed2(compiler.And)
	ops["or"] = fixed2(compiler.Or)
	ops["not"] = fixed1(compiler.Not)
	ops["vec2"] = fixed2(compiler.Vec2Of)
	ops["vec3"] = fixed3(compiler.Vec3Of)
	ops["select"] = fixed3(compiler.Select)
	ops["lerp"] = fixed3(compiler.Lerp)
	ops["clamp"] = fixed3(compiler.Clamp)
	ops["smoothstep"] = fixed3(compiler.Smoothstep)
	ops["rotation_euler"] = fixed1(compiler.RotationEuler)
	ops["rotation_axis_angle"] = fixed2(compiler.RotationAxisAngle)
	ops["rotate"] = fixed2(compiler.Rotate)
	ops["sphere"] = fixed2(compiler.Sphere)
	ops["box"] = fixed2(compiler.Box)
	ops["torus"] = fixed3(compiler.Torus)
	ops["plane"] = fixed3(compiler.Plane)
	ops["cylinder"] = fixed3(compiler.Cylinder)
	ops["union"] = fixed2(compiler.Union)
	ops["intersection"] = fixed2(compiler.Intersection)
	ops["subtraction"] = fixed2(compiler.Subtraction)
	ops["smooth_union"] = fixed3(compiler.SmoothUnion)
	ops["smooth_intersection"] = fixed3(compiler.SmoothIntersection)
	ops["smooth_subtraction"] = fixed3(compiler.SmoothSubtraction)

	ops["remap"] = opSpec{arity: 5, build: func(_ *NodeSpec, in []any) (compiler.Node, error) {
		return compiler.Remap(in[0], in[1], in[2], in[3], in[4]), nil
	}}
	ops["swizzle"] = opSpec{arity: 1, build: func(s *NodeSpec, in []any) (compiler.Node, error) {
		if s.Mask == "" {
			return nil, fmt.Errorf("swizzle needs a mask")
		}
		return compiler.Swizzle(in[0], s.Mask), nil
	}}
	ops["cast"] = opSpec{arity: 1, build: func(s *NodeSpec, in []any) (compiler.Node, error) {
		to, err := parseShape(s.Shape)
		if err != nil {
			return nil, err
		}
		return compiler.Cast(in[0], to), nil
	}}
	ops["broadcast"] = opSpec{arity: 1, build: func(s *NodeSpec, in []any) (compiler.Node, error) {
		to, err := parseShape(s.Shape)
		if err != nil {
			return nil, err
		}
		return compiler.Broadcast(in[0], to), nil
	}}
	ops["noise"] = opSpec{arity: 1, build: func(s *NodeSpec, in []any) (compiler.Node, error) {
		kind, err := parseNoise(s.Kind)
		if err != nil {
			return nil, err
		}
		return compiler.Noise(in[0], kind), nil
	}}
	// fractal inputs: point, lacunarity, persistence
	ops["fractal"] = opSpec{arity: 3, build: func(s *NodeSpec, in []any) (compiler.Node, error) {
		kind, err := parseNoise(s.Kind)
		if err != nil {
			return nil, err
		}
		return compiler.Fractal(in[0], kind, s.Octaves, in[1], in[2]), nil
	}}
	ops["distance"] = opSpec{arity: 2, build: func(s *NodeSpec, in []any) (compiler.Node, error) {
		m, err := parseMetric(s.Metric)
		if err != nil {
			return nil, err
		}
		return compiler.Distance(in[0], in[1], m), nil
	}}
	ops["cellular"] = opSpec{arity: 1, build: func(s *NodeSpec, in []any) (compiler.Node, error) {
		m, err := parseMetric(s.Metric)
		if err != nil {
			return nil, err
		}
		f := compiler.F1
		if s.Feature != "" {
			if f, err = parseEnum("feature", s.Feature, compiler.F1, compiler.F2MinusF1); err != nil {
				return nil, err
			}
		}
		return compiler.Cellular(in[0], m, f), nil
	}}
	ops["cache"] = opSpec{arity: 1, build: func(s *NodeSpec, in []any) (compiler.Node, error) {
		return compiler.Cache(in[0], s.Reduction), nil
	}}
	ops["inject"] = opSpec{arity: 0, build: func(s *NodeSpec, _ []any) (compiler.Node, error) {
		if s.Name == "" {
			return nil, fmt.Errorf("inject needs a name")
		}
		if s.Value != nil {
			v, err := valueOf(s.Value)
			if err != nil {
				return nil, err
			}
			return compiler.InjectDefault(s.Name, v), nil
		}
		shape, err := parseShape(s.Shape)
		if err != nil {
			return nil, err
		}
		return compiler.Inject(s.Name, shape), nil
	}}
	ops["const"] = opSpec{arity: 0, build: func(s *NodeSpec, _ []any) (compiler.Node, error) {
		v, err := valueOf(s.Value)
		if err != nil {
			return nil, err
		}
		if s.Shape != "" {
			shape, err := parseShape(s.Shape)
			if err != nil {
				return nil, err
			}
			if v, err = convert(v, shape); err != nil {
				return nil, err
			}
		}
		return compiler.Constant(v), nil
	}}
}

func fixed1(f func(any) compiler.Node) opSpec {
	return opSpec{arity: 1, build: func(_ *NodeSpec, in []any) (compiler.Node, error) {
		return f(in[0]), nil
	}}
}

func fixed2(f func(a, b any) compiler.Node) opSpec {
	return opSpec{arity: 2, build: func(_ *NodeSpec, in []any) (compiler.Node, error) {
		return f(in[0], in[1]), nil
	}}
}

func fixed3(f func(a, b, c any) compiler.Node) opSpec {
	return opSpec{arity: 3, build: func(_ *NodeSpec, in []any) (compiler.Node, error) {
		return f(in[0], in[1], in[2]), nil
	}}
}

// Ops lists the op names documents may use, sorted.
func Ops() []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ---------------------------------------------------------------------------
// Attribute parsing
// ---------------------------------------------------------------------------

type enum interface {
	~uint8
	String() string
}

func parseEnum[T enum](what, s string, lo, hi T) (T, error) {
	for v := lo; v <= hi; v++ {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}

func parseShape(s string) (compiler.Shape, error) {
	return parseEnum("shape", s, compiler.Float, compiler.Rotation)
}

func parseNoise(s string) (compiler.NoiseKind, error) {
	if s == "" {
		return compiler.NoisePerlin, nil
	}
	return parseEnum("noise kind", s, compiler.NoiseValue, compiler.NoisePerlin)
}

func parseMetric(s string) (compiler.Metric, error) {
	if s == "" {
		return compiler.Euclidean, nil
	}
	return parseEnum("metric", s, compiler.Euclidean, compiler.Chebyshev)
}

// convert reinterprets a scalar literal as an int or bool constant.
func convert(v compiler.Value, to compiler.Shape) (compiler.Value, error) {
	if v.Shape == to {
		return v, nil
	}
	if v.Shape != compiler.Float {
		return compiler.Value{}, fmt.Errorf("cannot convert %s literal to %s", v.Shape, to)
	}
	switch to {
	case compiler.Int:
		f := float64(v.V[0])
		if f != math.Trunc(f) {
			return compiler.Value{}, fmt.Errorf("int literal %g is not a whole number", f)
		}
		if math.Abs(f) > compiler.MaxExactInt {
			return compiler.Value{}, fmt.Errorf("int literal %g is outside ±%d", f, compiler.MaxExactInt)
		}
		return compiler.IntValue(int32(f)), nil
	case compiler.Bool:
		return compiler.BoolValue(v.V[0] != 0), nil
	}
	return compiler.Value{}, fmt.Errorf("cannot convert %s literal to %s", v.Shape, to)
}
