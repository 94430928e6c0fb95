package graphdoc

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/voxgraph/compiler"
)

func loadTerrain(t *testing.T) *Document {
	t.Helper()
	doc, err := Load(filepath.Join("testdata", "terrain.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return doc
}

func TestLoad_Terrain(t *testing.T) {
	doc := loadTerrain(t)
	if doc.Name != "terrain" || len(doc.Nodes) != 14 {
		t.Fatalf("doc = %q with %d nodes", doc.Name, len(doc.Nodes))
	}
	roots, err := doc.Roots()
	if err != nil {
		t.Fatalf("roots: %v", err)
	}
	var targets []string
	for _, r := range roots {
		targets = append(targets, r.Target)
	}
	if got := strings.Join(targets, ","); got != "density,color,smoothness" {
		t.Errorf("targets = %s", got)
	}

	prog, err := doc.Compile(compiler.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(prog.Dispatches) != 2 {
		t.Errorf("dispatches = %d, want the cache and the main pass", len(prog.Dispatches))
	}
	inj := prog.Injected()
	if inj["blob_radius"].Value.V[0] != 8 {
		t.Errorf("blob_radius = %v, want the document default", inj["blob_radius"].Value)
	}
	if inj["sky"].Shape != compiler.Vec3 {
		t.Errorf("sky shape = %s", inj["sky"].Shape)
	}
}

func TestCompile_InjectorOverridesDocument(t *testing.T) {
	doc := loadTerrain(t)
	prog, err := doc.Compile(compiler.Options{Injector: compiler.MapInjector{"blob_radius": compiler.Scalar(3)}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := prog.Injected()["blob_radius"].Value.V[0]; got != 3 {
		t.Errorf("blob_radius = %v, want 3", got)
	}
	base, err := loadTerrain(t).Compile(compiler.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if base.Hash != prog.Hash {
		t.Error("parameter override changed the structural hash")
	}
}

func TestRoots_SharedNamesBuildOnce(t *testing.T) {
	doc, err := Parse([]byte(`
nodes:
  s: {op: sin, in: [x]}
  x: {op: swizzle, in: [position], mask: x}
  d: {op: add, in: [s, s]}
outputs:
  density: d
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := doc.Compile(compiler.Options{Required: []string{compiler.TargetDensity}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := strings.Count(prog.Source, "= sin("); got != 1 {
		t.Errorf("sin emitted %d times, want 1", got)
	}
}

func TestRoots_Errors(t *testing.T) {
	cases := []struct {
		name  string
		doc   string
		check func(error) bool
		want  string
	}{
		{
			name:  "cycle",
			doc:   "nodes:\n  a: {op: add, in: [b, 1]}\n  b: {op: sin, in: [a]}\noutputs:\n  density: a\n",
			check: isStructure,
			want:  "a -> b -> a",
		},
		{
			name:  "self reference",
			doc:   "nodes:\n  a: {op: neg, in: [a]}\noutputs:\n  density: a\n",
			check: isStructure,
			want:  "cycle",
		},
		{
			name:  "missing node",
			doc:   "nodes:\n  a: {op: neg, in: [ghost]}\noutputs:\n  density: a\n",
			check: isStructure,
			want:  `"ghost"`,
		},
		{
			name:  "missing output node",
			doc:   "nodes: {}\noutputs:\n  density: nothing\n",
			check: isStructure,
			want:  "outputs",
		},
		{
			name:  "unknown op",
			doc:   "nodes:\n  a: {op: warp, in: [position]}\noutputs:\n  density: a\n",
			check: isStructure,
			want:  "warp",
		},
		{
			name:  "arity",
			doc:   "nodes:\n  a: {op: add, in: [1]}\noutputs:\n  density: a\n",
			check: isStructure,
			want:  "takes 2 inputs",
		},
		{
			name:  "unknown metric",
			doc:   "nodes:\n  a: {op: cellular, in: [position], metric: taxicab}\noutputs:\n  density: a\n",
			check: isConfig,
			want:  "taxicab",
		},
		{
			name:  "fractional int",
			doc:   "nodes:\n  a: {op: const, value: 2.5, shape: int}\noutputs:\n  density: a\n",
			check: isConfig,
			want:  "whole number",
		},
		{
			name:  "int beyond float precision",
			doc:   "nodes:\n  a: {op: const, value: 20000000, shape: int}\noutputs:\n  density: a\n",
			check: isConfig,
			want:  "outside",
		},
		{
			name:  "huge float as int",
			doc:   "nodes:\n  a: {op: const, value: 1.0e+30, shape: int}\noutputs:\n  density: a\n",
			check: isConfig,
			want:  "outside",
		},
		{
			name:  "bad literal",
			doc:   "nodes:\n  a: {op: add, in: [[1, x], 1]}\noutputs:\n  density: a\n",
			check: isStructure,
			want:  "not a number",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Parse([]byte(tc.doc))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			_, err = doc.Roots()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !tc.check(err) {
				t.Errorf("unexpected error type %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("nodes:\n  a: {op: neg, inputs: [position]}\n"))
	if err == nil {
		t.Error("unknown field accepted")
	}
}

func TestConst_Shapes(t *testing.T) {
	doc, err := Parse([]byte(`
nodes:
  n: {op: const, value: 3, shape: int}
  f: {op: cast, in: [n], shape: float}
  flag: {op: const, value: true}
  pick: {op: select, in: [flag, f, 0]}
outputs:
  density: pick
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	roots, err := doc.Roots()
	if err != nil {
		t.Fatalf("roots: %v", err)
	}
	if got := roots[0].Node.Shape(); got != compiler.Float {
		t.Errorf("shape = %s, want float", got)
	}
}

func TestOps_CoverEveryFamily(t *testing.T) {
	names := strings.Join(Ops(), " ")
	for _, op := range []string{"add", "sin", "less", "swizzle", "fractal", "cellular", "cache", "rotate", "smooth_union", "inject", "const"} {
		if !strings.Contains(" "+names+" ", " "+op+" ") {
			t.Errorf("op %q missing", op)
		}
	}
}

func isStructure(err error) bool {
	var e *compiler.GraphStructureError
	return errors.As(err, &e)
}

func isConfig(err error) bool {
	var e *compiler.ConfigurationError
	return errors.As(err, &e)
}
