package compiler

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

// terrain builds a small graph exercising most node families.
func terrain(height float64, metric Metric, bumps Dims) GraphFunc {
	return func(p Node) Outputs {
		var sample Node = Swizzle(p, "xz")
		if bumps == Dims3 {
			sample = Mul(p, 0.05)
		}
		ground := Sub(Y(p), Mul(Fractal(Mul(Swizzle(p, "xz"), 0.01), NoisePerlin, 5, 2.0, 0.5), height))
		caves := Cellular(sample, metric, F2MinusF1)
		rock := SmoothSubtraction(ground, Sub(caves, 0.2), 0.1)
		blob := Sphere(Sub(p, [3]float32{0, 40, 0}), Inject("blob_radius", Float))
		density := Union(rock, blob)
		tint := Saturate(Remap(Y(p), -10.0, 60.0, 0.0, 1.0))
		color := Lerp([3]float32{0.3, 0.25, 0.2}, [3]float32{0.9, 0.9, 0.95}, tint)
		return Outputs{Density: density, Color: color, Smoothness: Clamp(tint, 0.0, 0.8)}
	}
}

func compileTerrain(t *testing.T, height float64, metric Metric, bumps Dims, radius float32) *Program {
	t.Helper()
	prog, err := CompileFunc(terrain(height, metric, bumps), Options{
		Injector: MapInjector{"blob_radius": Scalar(radius)},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return prog
}

func TestCompile_Idempotent(t *testing.T) {
	a := compileTerrain(t, 12, Euclidean, Dims3, 8)
	b := compileTerrain(t, 12, Euclidean, Dims3, 8)
	if a.Source != b.Source {
		t.Error("sources differ between identical compiles")
	}
	if a.Hash != b.Hash {
		t.Errorf("hash %s != %s", a.Hash.Short(), b.Hash.Short())
	}
}

func TestCompile_HashIgnoresRuntimeValues(t *testing.T) {
	base := compileTerrain(t, 12, Euclidean, Dims3, 8)
	for name, prog := range map[string]*Program{
		"constant": compileTerrain(t, 30, Euclidean, Dims3, 8),
		"injected": compileTerrain(t, 12, Euclidean, Dims3, 3),
	} {
		if prog.Hash != base.Hash {
			t.Errorf("%s: hash changed with a runtime value", name)
		}
		if prog.Source != base.Source {
			t.Errorf("%s: source changed with a runtime value", name)
		}
	}
}

func TestCompile_HashTracksStructuralChoices(t *testing.T) {
	base := compileTerrain(t, 12, Euclidean, Dims3, 8)
	for name, prog := range map[string]*Program{
		"metric":         compileTerrain(t, 12, Manhattan, Dims3, 8),
		"dimensionality": compileTerrain(t, 12, Euclidean, Dims2, 8),
	} {
		if prog.Hash == base.Hash {
			t.Errorf("%s: hash unchanged by a structural choice", name)
		}
	}
}

func TestCompile_HashTracksWorkgroup(t *testing.T) {
	seen := make(map[string]int)
	for _, wg := range []int{1, 64, 128, 256, MaxWorkgroup} {
		prog, err := Compile([]Root{{TargetDensity, Y(Position())}}, Options{
			Required:  []string{TargetDensity},
			Workgroup: wg,
		})
		if err != nil {
			t.Fatalf("workgroup %d: %v", wg, err)
		}
		if prev, ok := seen[prog.Hash.String()]; ok {
			t.Errorf("workgroups %d and %d share hash %s", prev, wg, prog.Hash.Short())
		}
		seen[prog.Hash.String()] = wg
	}
}

func TestCompile_BoolOutputStoredAsWord(t *testing.T) {
	p := Position()
	prog, err := Compile([]Root{
		{TargetDensity, Y(p)},
		{"solid", Less(Y(p), 0.0)},
	}, densityOnly())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, want := range []string{
		"var<storage, read_write> buf_solid: array<u32>;",
		"buf_solid[index] = select(0u, 1u, o1);",
	} {
		if !strings.Contains(prog.Source, want) {
			t.Errorf("source lacks %q", want)
		}
	}
	if strings.Contains(prog.Source, "array<bool>") {
		t.Error("source declares a bool storage buffer")
	}
	for _, b := range prog.Buffers {
		if b.Name == "solid" && (b.Shape != Bool || b.ElementSize() != 4) {
			t.Errorf("solid buffer = %+v", b)
		}
	}
}

func TestCompile_EntriesFlattenTwoDimensionalGrids(t *testing.T) {
	prog, err := Compile([]Root{{TargetDensity, Y(Position())}}, Options{
		Required:  []string{TargetDensity},
		Workgroup: 128,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, want := range []string{
		"@builtin(num_workgroups) groups: vec3<u32>",
		"let index = gid.x + gid.y * groups.x * 128u;",
		"buf_density[index] = o0;",
	} {
		if !strings.Contains(prog.Source, want) {
			t.Errorf("source lacks %q", want)
		}
	}
}

func TestCompile_NoLiteralsInSource(t *testing.T) {
	prog := compileTerrain(t, 12.345, Euclidean, Dims3, 8.765)
	for _, lit := range []string{"12.345", "8.765", "0.05"} {
		if strings.Contains(prog.Source, lit) {
			t.Errorf("source contains runtime value %s", lit)
		}
	}
	inj := prog.Injected()
	if p, ok := inj["blob_radius"]; !ok || p.Value.V[0] != 8.765 {
		t.Errorf("blob_radius parameter = %+v", p)
	}
	if !strings.Contains(prog.Source, "blob_radius (float)") {
		t.Error("source does not list the injected parameter")
	}
}

func TestProgram_ParameterData(t *testing.T) {
	prog, err := Compile([]Root{{TargetDensity, Mul(Inject("k", Float), 3.0)}}, Options{
		Required: []string{TargetDensity},
		Injector: MapInjector{"k": Scalar(2)},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	read := func(data []byte, slot int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[16*slot:]))
	}

	data, err := prog.ParameterData(nil)
	if err != nil {
		t.Fatalf("parameter data: %v", err)
	}
	if len(data) != 32 || read(data, 0) != 2 || read(data, 1) != 3 {
		t.Errorf("data = %v", data)
	}

	data, err = prog.ParameterData(MapInjector{"k": Scalar(7)})
	if err != nil {
		t.Fatalf("parameter data: %v", err)
	}
	if read(data, 0) != 7 {
		t.Errorf("override = %v, want 7", read(data, 0))
	}

	_, err = prog.ParameterData(MapInjector{"k": V2(1, 2)})
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Errorf("err = %v, want ConfigurationError", err)
	}
}

func TestCompile_Errors(t *testing.T) {
	p := Position()
	dangling := Ref("later", Float)
	loop := Ref("loop", Float)
	loopBody := Add(loop, 1.0)
	loop.Resolve(loopBody)

	cases := []struct {
		name  string
		roots []Root
		opts  Options
		check func(error) bool
	}{
		{
			name:  "missing required output",
			roots: []Root{{TargetDensity, Y(p)}},
			check: isStructure,
		},
		{
			name:  "dangling reference",
			roots: []Root{{TargetDensity, Add(dangling, 1.0)}},
			opts:  densityOnly(),
			check: isStructure,
		},
		{
			name:  "cycle",
			roots: []Root{{TargetDensity, loopBody}},
			opts:  densityOnly(),
			check: isStructure,
		},
		{
			name:  "nil input",
			roots: []Root{{TargetDensity, Add(nil, 1.0)}},
			opts:  densityOnly(),
			check: isStructure,
		},
		{
			name:  "bad literal",
			roots: []Root{{TargetDensity, Add("one", 1.0)}},
			opts:  densityOnly(),
			check: isStructure,
		},
		{
			name:  "duplicate target",
			roots: []Root{{TargetDensity, Y(p)}, {TargetDensity, X(p)}},
			opts:  densityOnly(),
			check: isStructure,
		},
		{
			name:  "four component swizzle",
			roots: []Root{{TargetDensity, X(Swizzle(Swizzle(p, "xz"), "xyzw"))}},
			opts:  densityOnly(),
			check: isShape,
		},
		{
			name:  "swizzle beyond source width",
			roots: []Root{{TargetDensity, X(Swizzle(Swizzle(p, "xz"), "xz"))}},
			opts:  densityOnly(),
			check: isShape,
		},
		{
			name:  "cellular on a scalar",
			roots: []Root{{TargetDensity, Cellular(X(p), Euclidean, F1)}},
			opts:  densityOnly(),
			check: isShape,
		},
		{
			name:  "mismatched operands",
			roots: []Root{{TargetDensity, X(Add(Swizzle(p, "xy"), p))}},
			opts:  densityOnly(),
			check: isShape,
		},
		{
			name:  "wrong output shape",
			roots: []Root{{TargetDensity, p}},
			opts:  densityOnly(),
			check: isShape,
		},
		{
			name:  "unbound injected parameter",
			roots: []Root{{TargetDensity, Inject("missing", Float)}},
			opts:  densityOnly(),
			check: isConfig,
		},
		{
			name:  "reduction out of range",
			roots: []Root{{TargetDensity, Cache(X(p), MaxReduction+1)}},
			opts:  densityOnly(),
			check: isConfig,
		},
		{
			name:  "workgroup above limit",
			roots: []Root{{TargetDensity, Y(p)}},
			opts:  Options{Required: []string{TargetDensity}, Workgroup: 65600},
			check: isConfig,
		},
		{
			name: "target in the cache namespace",
			roots: []Root{
				{TargetDensity, Sub(Y(p), Cache(Noise(Swizzle(p, "xz"), NoiseValue), 1))},
				{"cache_2", X(p)},
			},
			opts:  densityOnly(),
			check: isStructure,
		},
		{
			name:  "octaves out of range",
			roots: []Root{{TargetDensity, Fractal(p, NoiseValue, 0, 2.0, 0.5)}},
			opts:  densityOnly(),
			check: isConfig,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog, err := Compile(tc.roots, tc.opts)
			if err == nil {
				t.Fatal("expected an error")
			}
			if prog != nil {
				t.Error("failed compile returned a program")
			}
			if !tc.check(err) {
				t.Errorf("unexpected error type %T: %v", err, err)
			}
		})
	}
}

func TestCompile_FailureLeavesNoText(t *testing.T) {
	c := NewContext(Options{})
	err := c.Parse([]Root{{TargetDensity, Num(1)}})
	var gse *GraphStructureError
	if !errors.As(err, &gse) {
		t.Fatalf("err = %v, want GraphStructureError", err)
	}
	if !strings.Contains(gse.Error(), `"color"`) {
		t.Errorf("error %q does not name the missing output", gse.Error())
	}
	if c.State() != StateFailed {
		t.Errorf("state = %s, want failed", c.State())
	}
	if len(c.Root().Lines) != 0 {
		t.Errorf("root scope has %d lines after a failed parse", len(c.Root().Lines))
	}
	if _, err := c.Program(); !errors.Is(err, ErrNotParsed) {
		t.Errorf("program err = %v, want ErrNotParsed", err)
	}
}

func TestCompile_ErrorNamesNode(t *testing.T) {
	p := Position()
	bad := Swizzle(p, "q")
	_, err := Compile([]Root{{TargetDensity, X(Mul(bad, 1.0))}}, densityOnly())
	var tse *TypeShapeError
	if !errors.As(err, &tse) {
		t.Fatalf("err = %v, want TypeShapeError", err)
	}
	if tse.NodeID != bad.ID() || tse.Kind != "swizzle" {
		t.Errorf("error names node #%d (%s), want #%d (swizzle)", tse.NodeID, tse.Kind, bad.ID())
	}
}

func isStructure(err error) bool {
	var e *GraphStructureError
	return errors.As(err, &e)
}

func isShape(err error) bool {
	var e *TypeShapeError
	return errors.As(err, &e)
}

func isConfig(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}
