package graphdoc

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/voxgraph/compiler"
)

// ---------------------------------------------------------------------------
// Documents: named graph nodes in YAML
// ---------------------------------------------------------------------------

// PositionName is the reserved reference to the world position.
const PositionName = "position"

// Document is a graph description. Nodes refer to each other by name;
// inputs that are not names are literals.
type Document struct {
	Name string `yaml:"name"`
	// Parameters holds default values for injected parameters.
	Parameters map[string]any      `yaml:"parameters,omitempty"`
	Nodes      map[string]NodeSpec `yaml:"nodes"`
	// Outputs maps target names to node names.
	Outputs map[string]string `yaml:"outputs"`
}

// NodeSpec is one named node. Only the attributes its op reads are
// meaningful.
type NodeSpec struct {
	Op        string      `yaml:"op"`
	In        []yaml.Node `yaml:"in,omitempty"`
	Mask      string      `yaml:"mask,omitempty"`
	Kind      string      `yaml:"kind,omitempty"`
	Metric    string      `yaml:"metric,omitempty"`
	Feature   string      `yaml:"feature,omitempty"`
	Octaves   int         `yaml:"octaves,omitempty"`
	Reduction int         `yaml:"reduction,omitempty"`
	Shape     string      `yaml:"shape,omitempty"`
	Name      string      `yaml:"name,omitempty"`
	Value     any         `yaml:"value,omitempty"`
}

// Parse decodes a document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("graphdoc: parse: %w", err)
	}
	return &doc, nil
}

// Load reads and decodes the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphdoc: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Values returns the parameter defaults as injector values.
func (d *Document) Values() (compiler.MapInjector, error) {
	out := make(compiler.MapInjector, len(d.Parameters))
	for name, raw := range d.Parameters {
		v, err := valueOf(raw)
		if err != nil {
			return nil, &compiler.ConfigurationError{Name: name, Reason: err.Error()}
		}
		out[name] = v
	}
	return out, nil
}

// Roots builds the graph and returns its outputs. Well-known targets come
// first in their fixed order, then the rest by name.
func (d *Document) Roots() ([]compiler.Root, error) {
	b := &builder{doc: d, built: make(map[string]compiler.Node), state: make(map[string]visitState)}
	var roots []compiler.Root
	for _, target := range outputOrder(d.Outputs) {
		n, err := b.resolve(d.Outputs[target], nil)
		if err != nil {
			return nil, err
		}
		roots = append(roots, compiler.Root{Target: target, Node: n})
	}
	return roots, nil
}

// Compile builds and compiles the document. Document parameters are used
// where opts.Injector has no binding.
func (d *Document) Compile(opts compiler.Options) (*compiler.Program, error) {
	roots, err := d.Roots()
	if err != nil {
		return nil, err
	}
	values, err := d.Values()
	if err != nil {
		return nil, err
	}
	opts.Injector = layered{opts.Injector, values}
	return compiler.Compile(roots, opts)
}

// layered looks names up in each injector in turn.
type layered []compiler.Injector

func (l layered) Lookup(name string) (compiler.Value, bool) {
	for _, inj := range l {
		if inj == nil {
			continue
		}
		if v, ok := inj.Lookup(name); ok {
			return v, true
		}
	}
	return compiler.Value{}, false
}

var wellKnown = []string{compiler.TargetDensity, compiler.TargetColor, compiler.TargetMetallic, compiler.TargetSmoothness}

func outputOrder(outputs map[string]string) []string {
	var order, rest []string
	for _, t := range wellKnown {
		if _, ok := outputs[t]; ok {
			order = append(order, t)
		}
	}
	for t := range outputs {
		if !slices.Contains(wellKnown, t) {
			rest = append(rest, t)
		}
	}
	slices.Sort(rest)
	return append(order, rest...)
}

// ---------------------------------------------------------------------------
// Reference resolution
// ---------------------------------------------------------------------------

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

type builder struct {
	doc   *Document
	built map[string]compiler.Node
	state map[string]visitState
}

func (b *builder) resolve(name string, path []string) (compiler.Node, error) {
	if name == PositionName {
		return compiler.Position(), nil
	}
	switch b.state[name] {
	case stateVisiting:
		cycle := append(path[slices.Index(path, name):], name)
		return nil, &compiler.GraphStructureError{Reason: "cycle " + strings.Join(cycle, " -> ")}
	case stateDone:
		return b.built[name], nil
	}
	spec, ok := b.doc.Nodes[name]
	if !ok {
		from := "outputs"
		if len(path) > 0 {
			from = fmt.Sprintf("node %q", path[len(path)-1])
		}
		return nil, &compiler.GraphStructureError{Reason: fmt.Sprintf("%s refers to missing node %q", from, name)}
	}

	b.state[name] = stateVisiting
	path = append(path, name)
	op, ok := ops[spec.Op]
	if !ok {
		return nil, &compiler.GraphStructureError{Reason: fmt.Sprintf("node %q: unknown op %q", name, spec.Op)}
	}
	if op.arity >= 0 && len(spec.In) != op.arity {
		return nil, &compiler.GraphStructureError{Reason: fmt.Sprintf("node %q: %s takes %d inputs, got %d", name, spec.Op, op.arity, len(spec.In))}
	}
	ins := make([]any, len(spec.In))
	for i := range spec.In {
		in, err := b.input(&spec.In[i], path)
		if err != nil {
			return nil, err
		}
		ins[i] = in
	}
	n, err := op.build(&spec, ins)
	if err != nil {
		return nil, &compiler.ConfigurationError{Name: name, Reason: err.Error()}
	}
	b.built[name] = n
	b.state[name] = stateDone
	return n, nil
}

// input resolves a string scalar as a reference and anything else as a
// literal.
func (b *builder) input(n *yaml.Node, path []string) (any, error) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str" {
		return b.resolve(n.Value, path)
	}
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, fmt.Errorf("line %d: %w", n.Line, err)
	}
	v, err := valueOf(raw)
	if err != nil {
		return nil, &compiler.GraphStructureError{Reason: fmt.Sprintf("node %q, line %d: %s", path[len(path)-1], n.Line, err)}
	}
	return compiler.Constant(v), nil
}

// valueOf converts a decoded YAML literal.
func valueOf(raw any) (compiler.Value, error) {
	switch x := raw.(type) {
	case int:
		return compiler.Scalar(float32(x)), nil
	case []any:
		fs := make([]float64, len(x))
		for i, e := range x {
			switch f := e.(type) {
			case int:
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
