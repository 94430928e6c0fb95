package compiler

import (
	"strings"
	"testing"
)

func TestShapes_Resolution(t *testing.T) {
	p := Position()
	xz := Swizzle(p, "xz")
	f := Num(1)

	cases := []struct {
		name string
		node Node
		want Shape
	}{
		{"position", p, Vec3},
		{"scalar broadcast left", Mul(2.0, p), Vec3},
		{"scalar broadcast right", Add(xz, 1.0), Vec2},
		{"int arithmetic", Add(3, 4), Int},
		{"int pow", Pow(3, 4), ShapeInvalid},
		{"mixed vectors", Add(xz, p), ShapeInvalid},
		{"length", Length(p), Float},
		{"normalize scalar", Normalize(f), ShapeInvalid},
		{"dot", Dot(p, p), Float},
		{"cross 2d", Cross(xz, xz), ShapeInvalid},
		{"compare", Less(f, 2.0), Bool},
		{"compare vectors", Less(xz, xz), ShapeInvalid},
		{"and", And(Less(f, 2.0), true), Bool},
		{"or float", Or(f, true), ShapeInvalid},
		{"swizzle reorder", Swizzle(p, "zyx"), Vec3},
		{"swizzle rotation", Swizzle(RotationEuler(p), "xyz"), Vec3},
		{"swizzle scalar", Swizzle(f, "x"), ShapeInvalid},
		{"swizzle four", Swizzle(p, "xyzx"), ShapeInvalid},
		{"construct", Vec3Of(f, f, f), Vec3},
		{"construct int", Vec2Of(f, 1), ShapeInvalid},
		{"cast", Cast(f, Int), Int},
		{"cast vector", Cast(p, Float), ShapeInvalid},
		{"broadcast", Broadcast(f, Vec3), Vec3},
		{"select", Select(true, p, p), Vec3},
		{"select mismatch", Select(true, p, xz), ShapeInvalid},
		{"lerp", Lerp(p, p, 0.5), Vec3},
		{"lerp mismatch", Lerp(f, p, 0.5), ShapeInvalid},
		{"clamp", Clamp(xz, 0.0, 1.0), Vec2},
		{"smoothstep", Smoothstep(0.0, 1.0, p), Vec3},
		{"remap", Remap(f, 0.0, 1.0, -1.0, 1.0), Float},
		{"rotate", Rotate(p, RotationEuler(p)), Vec3},
		{"rotate wrong", Rotate(p, p), ShapeInvalid},
		{"noise 2d", Noise(xz, NoiseValue), Float},
		{"noise scalar", Noise(f, NoiseValue), ShapeInvalid},
		{"sphere 2d", Sphere(xz, 1.0), Float},
		{"box 2d", Box(xz, xz), ShapeInvalid},
		{"distance", Distance(p, p, Chebyshev), Float},
		{"distance metric", Distance(p, p, Metric(9)), ShapeInvalid},
		{"cellular", Cellular(xz, Manhattan, F2), Float},
		{"cache", Cache(xz, 1), Vec2},
		{"cache bool", Cache(true, 1), ShapeInvalid},
		{"inject", InjectDefault("h", 2.0), Float},
		{"ref", Ref("r", Vec2), Vec2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.node.Shape(); got != tc.want {
				t.Errorf("shape = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestLit_Conversions(t *testing.T) {
	cases := []struct {
		in   any
		want Shape
	}{
		{1.5, Float},
		{float32(1.5), Float},
		{7, Int},
		{true, Bool},
		{[2]float32{1, 2}, Vec2},
		{[3]float32{1, 2, 3}, Vec3},
		{[]float64{1, 2, 3}, Vec3},
		{Quat(0, 0, 0, 1), Rotation},
	}
	for _, tc := range cases {
		n := Lit(tc.in)
		if _, ok := n.(*ConstantNode); !ok {
			t.Errorf("Lit(%v) = %T, want constant", tc.in, n)
			continue
		}
		if n.Shape() != tc.want {
			t.Errorf("Lit(%v) shape = %s, want %s", tc.in, n.Shape(), tc.want)
		}
	}
	p := Position()
	if Lit(p) != p {
		t.Error("Lit does not pass nodes through")
	}
	if _, ok := Lit("text").(*badLiteral); !ok {
		t.Error("Lit accepts a string")
	}
	for _, in := range []any{1 << 30, int64(1) << 40, int32(-MaxExactInt - 1)} {
		if _, ok := Lit(in).(*badLiteral); !ok {
			t.Errorf("Lit(%v) accepted an integer beyond float precision", in)
		}
	}
	if v, err := ValueOf(int64(-MaxExactInt)); err != nil || v.V[0] != -MaxExactInt {
		t.Errorf("ValueOf(-MaxExactInt) = %v, %v", v, err)
	}
}

func emitRoot(t *testing.T, n Node) []string {
	t.Helper()
	c := NewContext(Options{Required: []string{}})
	if err := c.Parse([]Root{{"value", n}}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return c.Root().Lines
}

func TestEmit_Expressions(t *testing.T) {
	p := Position()
	cases := []struct {
		name string
		node Node
		want string
	}{
		{"broadcast operand", Mul(2.0, p), "let v_1: vec3<f32> = vec3<f32>(params[0].x) * position;"},
		{"function call", Max(X(p), Y(p)), "let v_3: f32 = max(v_1, v_2);"},
		{"select order", Select(Less(X(p), 0.0), 1.0, 2.0), "select(params[2].x, params[1].x, v_2)"},
		{"cast bool", Cast(Less(X(p), 0.0), Float), "select(0.0, 1.0, v_2)"},
		{"int param", Add(intParam("n"), 1), "i32(params[0].x) + i32(params[1].x)"},
		{"negate", Neg(X(p)), "= -v_1;"},
		{"chebyshev", Distance(p, [3]float32{1, 2, 3}, Chebyshev), "max(max(abs(v_1.x), abs(v_1.y)), abs(v_1.z))"},
		{"smooth subtraction", SmoothSubtraction(X(p), Y(p), 0.5), "vg_smooth_max(v_1, -v_2, params[0].x)"},
		{"cache sample", Cache(X(p), 3), "buf_cache_1[vg_cache_index(position, 3u)]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lines := strings.Join(emitRoot(t, tc.node), "\n")
			if !strings.Contains(lines, tc.want) {
				t.Errorf("lines\n%s\ndo not contain %q", lines, tc.want)
			}
		})
	}
}

// intParam is an int parameter with a default.
func intParam(name string) Node { return InjectDefault(name, 4) }
