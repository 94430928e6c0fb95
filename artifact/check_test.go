package artifact

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/voxgraph/compiler"
)

// outcrop exercises most node families in one graph.
func outcrop(p compiler.Node) compiler.Outputs {
	ground := compiler.Sub(compiler.Y(p), compiler.Mul(compiler.Fractal(compiler.Mul(compiler.Swizzle(p, "xz"), 0.01), compiler.NoisePerlin, 5, 2.0, 0.5), 12.0))
	caves := compiler.Cellular(compiler.Mul(p, 0.05), compiler.Euclidean, compiler.F2MinusF1)
	rock := compiler.SmoothSubtraction(ground, compiler.Sub(caves, 0.2), 0.1)
	blob := compiler.Sphere(compiler.Sub(p, [3]float32{0, 40, 0}), compiler.Inject("blob_radius", compiler.Float))
	tint := compiler.Saturate(compiler.Remap(compiler.Y(p), -10.0, 60.0, 0.0, 1.0))
	return compiler.Outputs{
		Density:    compiler.Union(rock, blob),
		Color:      compiler.Lerp([3]float32{0.3, 0.25, 0.2}, [3]float32{0.9, 0.9, 0.95}, tint),
		Smoothness: compiler.Clamp(tint, 0.0, 0.8),
	}
}

func TestCheckSource_CompiledGraphs(t *testing.T) {
	cases := []struct {
		name  string
		graph compiler.GraphFunc
		opts  compiler.Options
	}{
		{
			name:  "outcrop",
			graph: outcrop,
			opts:  compiler.Options{Injector: compiler.MapInjector{"blob_radius": compiler.Scalar(8)}},
		},
		{
			name: "cached heightmap",
			graph: func(p compiler.Node) compiler.Outputs {
				height := compiler.Cache(compiler.Mul(compiler.Fractal(compiler.Swizzle(p, "xz"), compiler.NoiseValue, 3, 2.0, 0.5), 20.0), 2)
				return compiler.Outputs{
					Density: compiler.Sub(compiler.Y(p), height),
					Color:   compiler.Vec3Of(compiler.Saturate(compiler.Div(height, 20.0)), 0.5, 0.2),
				}
			},
		},
		{
			name: "nested caches",
			graph: func(p compiler.Node) compiler.Outputs {
				base := compiler.Cache(compiler.Noise(compiler.Swizzle(p, "xz"), compiler.NoisePerlin), 3)
				detail := compiler.Cache(compiler.Add(base, compiler.Mul(compiler.Noise(compiler.Mul(compiler.Swizzle(p, "xz"), 4.0), compiler.NoiseValue), 0.25)), 1)
				return compiler.Outputs{
					Density: compiler.Sub(compiler.Y(p), compiler.Add(detail, base)),
					Color:   compiler.Lit([3]float32{0.5, 0.5, 0.5}),
				}
			},
		},
		{
			name: "rotated box",
			graph: func(p compiler.Node) compiler.Outputs {
				q := compiler.RotationAxisAngle([3]float32{0, 1, 0}, compiler.Inject("spin", compiler.Float))
				local := compiler.Rotate(p, q)
				return compiler.Outputs{
					Density: compiler.SmoothUnion(compiler.Box(local, [3]float32{4, 1, 4}), compiler.Torus(p, 6.0, 1.0), 0.5),
					Color:   compiler.Select(compiler.Greater(compiler.Y(p), 0.0), [3]float32{1, 1, 1}, [3]float32{0.2, 0.2, 0.2}),
				}
			},
			opts: compiler.Options{Injector: compiler.MapInjector{"spin": compiler.Scalar(0.3)}, Workgroup: 128},
		},
		{
			name: "bool extra output",
			graph: func(p compiler.Node) compiler.Outputs {
				y := compiler.Y(p)
				return compiler.Outputs{
					Density: y,
					Color:   compiler.Lit([3]float32{1, 0, 0}),
					Extra: []compiler.Root{
						{Target: "solid", Node: compiler.Less(y, 0.0)},
						{Target: "lit", Node: compiler.And(compiler.Greater(y, 2.0), compiler.Less(compiler.X(p), 1.0))},
					},
				}
			},
		},
		{
			name: "largest workgroup",
			graph: func(p compiler.Node) compiler.Outputs {
				return compiler.Outputs{
					Density: compiler.Sub(compiler.Y(p), compiler.Cache(compiler.Noise(compiler.Swizzle(p, "xz"), compiler.NoiseValue), 0)),
					Color:   compiler.Lit([3]float32{0, 1, 0}),
				}
			},
			opts: compiler.Options{Workgroup: compiler.MaxWorkgroup},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog, err := compiler.CompileFunc(tc.graph, tc.opts)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if err := CheckSource(prog.Source); err != nil {
				t.Errorf("generated source does not validate: %v\n%s", err, prog.Source)
			}
			if strings.Contains(prog.Source, "array<bool>") {
				t.Error("bool storage buffer in generated source")
			}
		})
	}
}

func TestCheckSource_CacheNamesNeverCollide(t *testing.T) {
	p := compiler.Position()
	height := compiler.Cache(compiler.Noise(compiler.Swizzle(p, "xz"), compiler.NoiseValue), 1)
	roots := []compiler.Root{
		{Target: compiler.TargetDensity, Node: compiler.Sub(compiler.Y(p), height)},
	}
	opts := compiler.Options{Required: []string{compiler.TargetDensity}}

	prog, err := compiler.Compile(roots, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cache := prog.Dispatches[0].Name
	if err := CheckSource(prog.Source); err != nil {
		t.Fatalf("generated source does not validate: %v", err)
	}

	// An output named like the generated cache is refused before any
	// buffer is declared twice.
	clash := append(roots, compiler.Root{Target: cache, Node: compiler.X(p)})
	_, err = compiler.Compile(clash, opts)
	var gse *compiler.GraphStructureError
	if !errors.As(err, &gse) {
		t.Fatalf("target %q err = %v, want GraphStructureError", cache, err)
	}
}
