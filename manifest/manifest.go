// Package manifest handles voxgraph.toml project configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"

	"github.com/chazu/voxgraph/compiler"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "voxgraph.toml"

//go:embed schema.cue
var schemaSource string

// Manifest represents a voxgraph.toml project configuration.
type Manifest struct {
	Project    Project        `toml:"project"`
	Volume     Volume         `toml:"volume"`
	Seed       compiler.Seed  `toml:"seed"`
	Parameters map[string]any `toml:"parameters"`
	Graph      Graph          `toml:"graph"`
	Output     Output         `toml:"output"`
	Cache      Cache          `toml:"cache"`
	Server     Server         `toml:"server"`

	// Dir is the directory containing the voxgraph.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Volume configures segment resolution and dispatch sizing.
type Volume struct {
	Size      uint32   `toml:"size"`
	Scale     float32  `toml:"scale"`
	Workgroup int      `toml:"workgroup"`
	Required  []string `toml:"required"`
}

// Graph locates the graph document.
type Graph struct {
	Path string `toml:"path"`
}

// Output configures where compiled artifacts are written.
type Output struct {
	Source   string `toml:"source"`
	Metadata string `toml:"metadata"`
}

// Cache configures the artifact database. An empty path keeps artifacts
// in memory.
type Cache struct {
	Path string `toml:"path"`
}

// Server configures the compile service.
type Server struct {
	Addr string `toml:"addr"`
}

// Load parses the voxgraph.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	raw := make(map[string]any)
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if err := m.setDefaults(dir); err != nil {
		return nil, err
	}
	return &m, nil
}

// Default returns the manifest used for a directory without a
// voxgraph.toml file.
func Default(dir string) (*Manifest, error) {
	var m Manifest
	if err := m.setDefaults(dir); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) setDefaults(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.Dir = abs

	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}
	if m.Volume.Size == 0 {
		m.Volume.Size = 32
	}
	if m.Volume.Scale == 0 {
		m.Volume.Scale = 1
	}
	if m.Volume.Workgroup == 0 {
		m.Volume.Workgroup = compiler.DefaultWorkgroup
	}
	if m.Graph.Path == "" {
		m.Graph.Path = "graph.yaml"
	}
	if m.Output.Source == "" {
		m.Output.Source = m.Project.Name + ".wgsl"
	}
	if m.Output.Metadata == "" {
		m.Output.Metadata = m.Project.Name + ".cbor"
	}
	if m.Server.Addr == "" {
		m.Server.Addr = "localhost:7411"
	}
	return nil
}

// FindAndLoad walks up from startDir to find a voxgraph.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// validate checks the raw document against the embedded schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))
	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", cueerrors.Details(err, nil))
	}
	return nil
}

// resolve returns p relative to the manifest directory unless absolute.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// GraphPath returns the absolute graph document path.
func (m *Manifest) GraphPath() string { return m.resolve(m.Graph.Path) }

// SourcePath returns the absolute kernel source output path.
func (m *Manifest) SourcePath() string { return m.resolve(m.Output.Source) }

// MetadataPath returns the absolute artifact output path.
func (m *Manifest) MetadataPath() string { return m.resolve(m.Output.Metadata) }

// CachePath returns the absolute artifact database path, or "" for an
// in-memory cache.
func (m *Manifest) CachePath() string { return m.resolve(m.Cache.Path) }

// Values converts the configured parameters to injector values.
func (m *Manifest) Values() (compiler.MapInjector, error) {
	out := make(compiler.MapInjector, len(m.Parameters))
	for name, raw := range m.Parameters {
		v, err := valueOf(raw)
		if err != nil {
			return nil, &compiler.ConfigurationError{Name: name, Reason: err.Error()}
		}
		out[name] = v
	}
	return out, nil
}

// Options returns compile options for the project.
func (m *Manifest) Options() (compiler.Options, error) {
	values, err := m.Values()
	if err != nil {
		return compiler.Options{}, err
	}
	return compiler.Options{
		Injector:  values,
		Required:  m.Volume.Required,
		Workgroup: m.Volume.Workgroup,
	}, nil
}

// Segment returns the segment at the given offset with the project's size,
// scale and seed.
func (m *Manifest) Segment(offset [3]float32) compiler.Segment {
	return compiler.Segment{
		Offset: offset,
		Scale:  m.Volume.Scale,
		Size:   m.Volume.Size,
		Seed:   m.Seed,
	}
}

// valueOf converts a decoded TOML value. TOML integers decode as int64.
func valueOf(raw any) (compiler.Value, error) {
	switch x := raw.(type) {
	case int64:
		return compiler.Scalar(float32(x)), nil
	case []any:
		fs := make([]float64, len(x))
		for i, e := range x {
			switch f := e.(type) {
			case int64:
				fs[i] = float64(f)
			case float64:
				fs[i] = f
			default:
				return compiler.Value{}, fmt.Errorf("vector component %v is not a number", e)
			}
		}
		return compiler.ValueOf(fs)
	default:
		return compiler.ValueOf(raw)
	}
}
