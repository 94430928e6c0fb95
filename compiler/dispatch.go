package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Dispatches: externally invokable entry points
// ---------------------------------------------------------------------------

// MaxReduction is the largest resolution-reduction exponent a dispatch may
// use. A dispatch with reduction r runs on a grid of size >> r.
const MaxReduction = 8

// MaxWorkgroupsPerDimension is the largest workgroup count a single
// dispatch dimension may carry.
const MaxWorkgroupsPerDimension = 65535

// cachePrefix starts the name of every cache dispatch and buffer. Output
// targets may not use it.
const cachePrefix = "cache_"

// OutputBinding pairs a root node with the external target it writes.
type OutputBinding struct {
	Target string
	Node   Node
	Buffer string
}

// KernelDispatch is one entry point of the generated program.
type KernelDispatch struct {
	Name string
	// Depth orders declaration and execution: deeper dispatches are
	// prerequisites of shallower ones and come first.
	Depth     int
	Dims      Dims
	Reduction int
	Outputs   []OutputBinding

	entry    *Scope
	children []*KernelDispatch
}

// Entry returns the scope the dispatch invokes.
func (d *KernelDispatch) Entry() *Scope { return d.entry }

// Buffer is a storage buffer written by a dispatch.
type Buffer struct {
	Name      string `cbor:"1,keyasint" json:"name"`
	Symbol    string `cbor:"2,keyasint" json:"symbol"`
	Group     int    `cbor:"3,keyasint" json:"group"`
	Binding   int    `cbor:"4,keyasint" json:"binding"`
	Shape     Shape  `cbor:"5,keyasint" json:"shape"`
	Dims      Dims   `cbor:"6,keyasint" json:"dims"`
	Reduction int    `cbor:"7,keyasint" json:"reduction"`
	Dispatch  string `cbor:"8,keyasint" json:"dispatch"`
}

// Elements returns the number of elements for a volume of the given size.
func (b Buffer) Elements(size uint32) uint32 {
	n := reducedSize(size, b.Reduction)
	if b.Dims == Dims2 {
		return n * n
	}
	return n * n * n
}

// ElementSize returns the storage stride of one element in bytes.
func (b Buffer) ElementSize() int {
	switch b.Shape {
	case Vec2:
		return 8
	case Vec3, Rotation:
		return 16
	default:
		return 4
	}
}

func reducedSize(size uint32, r int) uint32 {
	n := size >> uint(r)
	if n == 0 {
		return 1
	}
	return n
}

func (c *Context) newDispatch(name string, dims Dims, depth int, entry *Scope) *KernelDispatch {
	d := &KernelDispatch{Name: name, Depth: depth, Dims: dims, entry: entry}
	entry.dispatch = d
	c.dispatches = append(c.dispatches, d)
	c.hash.Tag(hash.TagDispatch)
	c.hash.Str(name)
	c.hash.Tag(byte(dims))
	return d
}

func (c *Context) addBuffer(name string, s Shape, d *KernelDispatch) string {
	b := Buffer{
		Name:      name,
		Symbol:    "buf_" + name,
		Group:     1,
		Binding:   len(c.buffers),
		Shape:     s,
		Dims:      d.Dims,
		Reduction: d.Reduction,
		Dispatch:  d.Name,
	}
	c.buffers = append(c.buffers, b)
	return b.Symbol
}

// cacheDispatch returns the 2D dispatch that evaluates n's value, creating
// it on first use. Reaching an existing cache from a deeper dispatch pushes
// it, and everything it depends on, further ahead.
func (c *Context) cacheDispatch(n *CacheNode) (*KernelDispatch, error) {
	parent := c.Current().dispatch
	if parent == nil {
		return nil, structureErr(n, "cache used outside a dispatch")
	}
	if d, ok := c.caches[n.ID()]; ok {
		raiseDepth(d, parent.Depth+1)
		parent.children = append(parent.children, d)
		c.hash.Tag(hash.TagBackRef)
		c.hash.Str(d.Name)
		return d, nil
	}

	name := c.unique(strings.TrimSuffix(cachePrefix, "_"))
	s := &Scope{Name: "vg_" + name, position: "position"}
	s.Args = append(s.Args,
		ScopeArgument{Name: "position", Shape: Vec3, Node: thePosition},
		ScopeArgument{Name: "out_value", Shape: n.shape, Output: true},
	)
	c.memo[memoKey{s, thePosition.ID()}] = "position"
	c.scopes = append(c.scopes, s)

	d := c.newDispatch(name, Dims2, parent.Depth+1, s)
	d.Reduction = n.reduction
	c.hash.Uint16(uint16(n.reduction))
	parent.children = append(parent.children, d)
	c.caches[n.ID()] = d

	c.PushScope(s)
	sym, err := c.Emit(n.value)
	if err != nil {
		c.PopScope()
		return nil, err
	}
	c.Line("*out_value = %s;", sym)
	c.PopScope()

	d.Outputs = append(d.Outputs, OutputBinding{
		Target: name,
		Node:   n.value,
		Buffer: c.addBuffer(name, n.shape, d),
	})
	return d, nil
}

func raiseDepth(d *KernelDispatch, depth int) {
	if depth <= d.Depth {
		return
	}
	d.Depth = depth
	for _, child := range d.children {
		raiseDepth(child, depth+1)
	}
}

// ---------------------------------------------------------------------------
// Scheduling metadata
// ---------------------------------------------------------------------------

// DispatchInfo describes an entry point for the execution layer.
type DispatchInfo struct {
	Name      string   `cbor:"1,keyasint" json:"name"`
	Depth     int      `cbor:"2,keyasint" json:"depth"`
	Dims      Dims     `cbor:"3,keyasint" json:"dims"`
	Reduction int      `cbor:"4,keyasint" json:"reduction"`
	Outputs   []string `cbor:"5,keyasint" json:"outputs"`
	Buffers   []string `cbor:"6,keyasint" json:"buffers"`
}

// Invocations returns the number of work items for a volume of the given
// size.
func (d DispatchInfo) Invocations(size uint32) uint64 {
	n := uint64(reducedSize(size, d.Reduction))
	if d.Dims == Dims2 {
		return n * n
	}
	return n * n * n
}

// Workgroups returns the workgroup count for a volume of the given size.
func (d DispatchInfo) Workgroups(size uint32, workgroup int) uint64 {
	w := uint64(workgroup)
	return (d.Invocations(size) + w - 1) / w
}

// Grid returns the workgroup counts (x, y, z) to dispatch for a volume of
// the given size. Counts above MaxWorkgroupsPerDimension spill into y and
// entry points flatten x and y back into one invocation index.
func (d DispatchInfo) Grid(size uint32, workgroup int) [3]uint32 {
	n := d.Workgroups(size, workgroup)
	x := min(n, MaxWorkgroupsPerDimension)
	if x == 0 {
		return [3]uint32{}
	}
	y := min((n+x-1)/x, math.MaxUint32)
	return [3]uint32{uint32(x), uint32(y), 1}
}

// CheckGrid reports whether a volume of the given size can be dispatched:
// the invocation index must fit in a u32 and the grid within
// MaxWorkgroupsPerDimension on each axis.
func (d DispatchInfo) CheckGrid(size uint32, workgroup int) error {
	if n := d.Invocations(size); n > math.MaxUint32 {
		return configErr("size", "%s needs %d invocations for size %d", d.Name, n, size)
	}
	if g := d.Grid(size, workgroup); g[1] > MaxWorkgroupsPerDimension {
		return configErr("size", "%s needs %dx%d workgroups for size %d", d.Name, g[0], g[1], size)
	}
	return nil
}

// Stage is a set of dispatches with no data dependency between them. A
// fence must separate consecutive stages.
type Stage struct {
	Depth      int
	Dispatches []DispatchInfo
}

func (d *KernelDispatch) info() DispatchInfo {
	info := DispatchInfo{Name: d.Name, Depth: d.Depth, Dims: d.Dims, Reduction: d.Reduction}
	for _, o := range d.Outputs {
		info.Outputs = append(info.Outputs, o.Target)
		info.Buffers = append(info.Buffers, o.Buffer)
	}
	return info
}

func (d *KernelDispatch) String() string {
	return fmt.Sprintf("%s(depth=%d, %s, r=%d)", d.Name, d.Depth, d.Dims, d.Reduction)
}
