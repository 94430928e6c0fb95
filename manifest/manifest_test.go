package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/voxgraph/compiler"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "canyon"
version = "0.1.0"

[volume]
size = 64
scale = 0.5
workgroup = 128
required = ["density"]

[seed]
permutation = [7, -3, 11]
modulo = [4, 1, 5]

[parameters]
blob_radius = 8
sky = [0.5, 0.7, 0.9]

[graph]
path = "graphs/canyon.yaml"

[output]
source = "out/canyon.wgsl"

[cache]
path = ".voxgraph/artifacts.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "canyon" {
		t.Errorf("project name = %q, want canyon", m.Project.Name)
	}
	if m.Volume.Size != 64 || m.Volume.Scale != 0.5 || m.Volume.Workgroup != 128 {
		t.Errorf("volume = %+v", m.Volume)
	}
	if m.Seed.Permutation != [3]int32{7, -3, 11} || m.Seed.Modulo != [3]int32{4, 1, 5} {
		t.Errorf("seed = %+v", m.Seed)
	}
	if got := m.GraphPath(); got != filepath.Join(m.Dir, "graphs", "canyon.yaml") {
		t.Errorf("graph path = %q", got)
	}
	if got := m.SourcePath(); got != filepath.Join(m.Dir, "out", "canyon.wgsl") {
		t.Errorf("source path = %q", got)
	}
	if got := m.CachePath(); got != filepath.Join(m.Dir, ".voxgraph", "artifacts.db") {
		t.Errorf("cache path = %q", got)
	}

	opts, err := m.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opts.Workgroup != 128 || len(opts.Required) != 1 {
		t.Errorf("options = %+v", opts)
	}
	if v, ok := opts.Injector.Lookup("blob_radius"); !ok || v != compiler.Scalar(8) {
		t.Errorf("blob_radius = %v, %v", v, ok)
	}
	if v, ok := opts.Injector.Lookup("sky"); !ok || v != compiler.V3(0.5, 0.7, 0.9) {
		t.Errorf("sky = %v, %v", v, ok)
	}

	seg := m.Segment([3]float32{64, 0, 0})
	if seg.Size != 64 || seg.Scale != 0.5 || seg.Seed != m.Seed {
		t.Errorf("segment = %+v", seg)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Volume.Size != 32 || m.Volume.Scale != 1 || m.Volume.Workgroup != compiler.DefaultWorkgroup {
		t.Errorf("volume defaults = %+v", m.Volume)
	}
	if m.Graph.Path != "graph.yaml" {
		t.Errorf("graph default = %q", m.Graph.Path)
	}
	if m.Output.Source != "minimal.wgsl" || m.Output.Metadata != "minimal.cbor" {
		t.Errorf("output defaults = %+v", m.Output)
	}
	if m.CachePath() != "" {
		t.Errorf("cache path = %q, want in-memory", m.CachePath())
	}
	opts, err := m.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opts.Required != nil {
		t.Errorf("required = %v, want the compiler default", opts.Required)
	}
}

func TestLoadManifestEmpty(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "")
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Name != filepath.Base(m.Dir) {
		t.Errorf("project name = %q, want the directory name", m.Project.Name)
	}
}

func TestLoadManifestSchema(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"size not a power of two", "[volume]\nsize = 48\n", "size"},
		{"negative scale", "[volume]\nscale = -1.0\n", "scale"},
		{"short seed", "[seed]\npermutation = [1, 2]\n", "permutation"},
		{"unknown section", "[render]\nfov = 90\n", "render"},
		{"unknown key", "[graph]\nfile = \"g.yaml\"\n", "file"},
		{"bad parameter", "[parameters]\nname = \"text\"\n", "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tc.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadManifestParseError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project\nname = ")
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("err = %v, want a parse error", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[project]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no voxgraph.toml exists")
	}
}

func TestDefault(t *testing.T) {
	dir := t.TempDir()
	m, err := Default(dir)
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	name := filepath.Base(m.Dir)
	if m.SourcePath() != filepath.Join(m.Dir, name+".wgsl") {
		t.Errorf("source path = %q", m.SourcePath())
	}
	if m.CachePath() != "" {
		t.Errorf("cache path = %q, want in-memory", m.CachePath())
	}
	if m.Volume.Size != 32 || m.Server.Addr != "localhost:7411" {
		t.Errorf("volume = %+v, server = %+v", m.Volume, m.Server)
	}
}

func TestValuesRejectsMixedVector(t *testing.T) {
	m := &Manifest{Parameters: map[string]any{"v": []any{int64(1), "x"}}}
	_, err := m.Values()
	var cfg *compiler.ConfigurationError
	if !errors.As(err, &cfg) || cfg.Name != "v" {
		t.Errorf("err = %v, want ConfigurationError for v", err)
	}
}
