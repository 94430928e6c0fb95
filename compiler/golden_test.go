package compiler

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/tools/txtar"
)

var update = flag.Bool("update", false, "rewrite golden files")

// TestGoldenPrograms pins the generated source, dispatch metadata and
// structural hash of small graphs. Run with -update to rewrite them after
// an intended change.
func TestGoldenPrograms(t *testing.T) {
	cases := []struct {
		name  string
		graph GraphFunc
		opts  Options
	}{
		{
			name: "scenario",
			graph: func(p Node) Outputs {
				return Outputs{Density: Add(Mul(Inject("a", Float), 2.0), Y(p))}
			},
			opts: Options{Required: []string{TargetDensity}, Injector: MapInjector{"a": Scalar(1)}},
		},
		{
			name: "solid_mask",
			graph: func(p Node) Outputs {
				y := Y(p)
				return Outputs{Density: y, Extra: []Root{{"solid", Less(y, 0.0)}}}
			},
			opts: Options{Required: []string{TargetDensity}, Workgroup: 128},
		},
	}

	dir := filepath.Join("testdata")

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog, err := CompileFunc(tc.graph, tc.opts)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			meta, err := json.MarshalIndent(prog.Dispatches, "", "  ")
			if err != nil {
				t.Fatalf("marshal dispatches: %v", err)
			}
			got := txtar.Format(&txtar.Archive{
				Comment: []byte("structure " + prog.Hash.String() + "\n"),
				Files: []txtar.File{
					{Name: "source.wgsl", Data: []byte(prog.Source)},
					{Name: "dispatches.json", Data: append(meta, '\n')},
				},
			})

			path := filepath.Join(dir, tc.name+".txtar")
			if *update {
				if err := os.WriteFile(path, got, 0o644); err != nil {
					t.Fatalf("write golden file: %v", err)
				}
				t.Logf("wrote golden file %s", path)
				return
			}
			want, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read golden file: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("program drifted from %s; rerun with -update if intended\ngot:\n%s", path, got)
			}
		})
	}
}
