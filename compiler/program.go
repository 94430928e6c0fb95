package compiler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Program: the result of a compile
// ---------------------------------------------------------------------------

// Well-known output targets.
const (
	TargetDensity    = "density"
	TargetColor      = "color"
	TargetMetallic   = "metallic"
	TargetSmoothness = "smoothness"
)

// TargetShapes fixes the shape of the well-known targets.
var TargetShapes = map[string]Shape{
	TargetDensity:    Float,
	TargetColor:      Vec3,
	TargetMetallic:   Float,
	TargetSmoothness: Float,
}

// DefaultWorkgroup is the compute workgroup size when none is configured.
const DefaultWorkgroup = 64

// MaxWorkgroup is the largest workgroup size a compile accepts. Devices
// may impose a lower limit.
const MaxWorkgroup = 1024

// Options configures a compile.
type Options struct {
	// Injector supplies values for injected parameters.
	Injector Injector
	// Required lists the targets that must be bound. Nil means density
	// and color.
	Required []string
	// Workgroup is the compute workgroup size.
	Workgroup int
}

func (o Options) withDefaults() Options {
	if o.Required == nil {
		o.Required = []string{TargetDensity, TargetColor}
	}
	if o.Workgroup <= 0 {
		o.Workgroup = DefaultWorkgroup
	}
	return o
}

// Root binds a node to an output target.
type Root struct {
	Target string
	Node   Node
}

// Outputs is the fixed output set of a terrain graph. Extra carries
// additional named targets.
type Outputs struct {
	Density    Node
	Color      Node
	Metallic   Node
	Smoothness Node
	Extra      []Root
}

// Roots returns the bound outputs in declaration order.
func (o Outputs) Roots() []Root {
	var roots []Root
	for _, r := range []Root{
		{TargetDensity, o.Density},
		{TargetColor, o.Color},
		{TargetMetallic, o.Metallic},
		{TargetSmoothness, o.Smoothness},
	} {
		if r.Node != nil {
			roots = append(roots, r)
		}
	}
	return append(roots, o.Extra...)
}

// GraphFunc builds a terrain graph from the world position.
type GraphFunc func(position Node) Outputs

// Parameter is one slot of the parameter buffer.
type Parameter struct {
	Slot     int    `cbor:"1,keyasint" json:"slot"`
	Name     string `cbor:"2,keyasint,omitempty" json:"name,omitempty"`
	Shape    Shape  `cbor:"3,keyasint" json:"shape"`
	Value    Value  `cbor:"4,keyasint" json:"value"`
	Injected bool   `cbor:"5,keyasint,omitempty" json:"injected,omitempty"`
}

// Program is a compiled graph: kernel source, dispatch metadata and the
// structural hash.
type Program struct {
	Source     string
	Hash       hash.Sum
	Workgroup  int
	Dispatches []DispatchInfo
	Buffers    []Buffer
	Parameters []Parameter
}

// Compile compiles a graph in a fresh context. It either returns a complete
// program or an error; no partial program is ever returned.
func Compile(roots []Root, opts Options) (*Program, error) {
	c := NewContext(opts)
	if err := c.Parse(roots); err != nil {
		return nil, err
	}
	return c.Program()
}

// CompileFunc builds the graph with f and compiles it.
func CompileFunc(f GraphFunc, opts Options) (*Program, error) {
	return Compile(f(Position()).Roots(), opts)
}

// Program assembles the program from a sorted context. It may only be
// called once.
func (c *Context) Program() (*Program, error) {
	switch c.state {
	case StateSorted:
	case StateEmitted:
		return nil, ErrContextUsed
	default:
		return nil, ErrNotParsed
	}
	e := &Emitter{ctx: c}
	p := &Program{
		Source:     e.Source(),
		Hash:       c.Sum(),
		Workgroup:  c.opts.Workgroup,
		Buffers:    append([]Buffer(nil), c.buffers...),
		Parameters: append([]Parameter(nil), c.params...),
	}
	for _, d := range c.dispatches {
		p.Dispatches = append(p.Dispatches, d.info())
	}
	c.state = StateEmitted
	return p, nil
}

// Schedule groups the dispatches into stages in execution order. Stages
// are separated by a data dependency and need a fence between them.
func (p *Program) Schedule() []Stage {
	var stages []Stage
	for _, d := range p.Dispatches {
		if n := len(stages); n > 0 && stages[n-1].Depth == d.Depth {
			stages[n-1].Dispatches = append(stages[n-1].Dispatches, d)
			continue
		}
		stages = append(stages, Stage{Depth: d.Depth, Dispatches: []DispatchInfo{d}})
	}
	return stages
}

// Dispatch returns the dispatch with the given name.
func (p *Program) Dispatch(name string) (DispatchInfo, bool) {
	for _, d := range p.Dispatches {
		if d.Name == name {
			return d, true
		}
	}
	return DispatchInfo{}, false
}

// Injected returns the injected parameters by name.
func (p *Program) Injected() map[string]Parameter {
	out := make(map[string]Parameter)
	for _, prm := range p.Parameters {
		if prm.Injected {
			out[prm.Name] = prm
		}
	}
	return out
}

// ParameterData returns the parameter buffer contents, one vec4 per slot,
// with injected values overridden from inj. Overriding never requires a
// recompile since values are not part of the source.
func (p *Program) ParameterData(inj Injector) ([]byte, error) {
	slots := len(p.Parameters)
	if slots == 0 {
		slots = 1
	}
	buf := make([]byte, 16*slots)
	for _, prm := range p.Parameters {
		v := prm.Value
		if prm.Injected && inj != nil {
			if bound, ok := inj.Lookup(prm.Name); ok {
				if bound.Shape != prm.Shape {
					return nil, configErr(prm.Name, "bound value is %s, parameter is %s", bound.Shape, prm.Shape)
				}
				v = bound
			}
		}
		for i, f := range v.V {
			binary.LittleEndian.PutUint32(buf[16*prm.Slot+4*i:], math.Float32bits(f))
		}
	}
	return buf, nil
}

func (p *Program) String() string {
	return fmt.Sprintf("program %s (%d dispatches, %d parameters)", p.Hash.Short(), len(p.Dispatches), len(p.Parameters))
}
