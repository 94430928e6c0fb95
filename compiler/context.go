package compiler

import (
	"fmt"
	"sort"

	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Context: drives one compile pass
// ---------------------------------------------------------------------------

// State is the lifecycle position of a Context.
type State uint8

const (
	StateCreated State = iota
	StateParsing
	StateParsed
	StateSorted
	StateEmitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateParsing:
		return "parsing"
	case StateParsed:
		return "parsed"
	case StateSorted:
		return "sorted"
	case StateEmitted:
		return "emitted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// MainDispatch is the name of the full-resolution 3D entry point.
const MainDispatch = "voxels"

type memoKey struct {
	scope *Scope
	id    NodeID
}

// Context holds the state of a single compile: the memo table, the scope
// stack, the structural hash, the discovered scopes and the dispatches.
// A Context is one-shot; compiling again requires a new Context.
type Context struct {
	opts  Options
	state State

	memo  map[memoKey]string
	stack []*Scope

	// scopes is in discovery order; the root scope is always index 0.
	scopes []*Scope
	sorted []*Scope
	byKey  map[string]*Scope

	dispatches []*KernelDispatch
	caches     map[NodeID]*KernelDispatch
	buffers    []Buffer

	hash  *hash.Accumulator
	names int

	params      []Parameter
	constSlots  map[NodeID]int
	injectSlots map[string]int

	library map[string]bool
}

// NewContext returns a fresh context in the Created state.
func NewContext(opts Options) *Context {
	opts = opts.withDefaults()
	c := &Context{
		opts:        opts,
		memo:        make(map[memoKey]string),
		byKey:       make(map[string]*Scope),
		caches:      make(map[NodeID]*KernelDispatch),
		hash:        hash.New(),
		constSlots:  make(map[NodeID]int),
		injectSlots: make(map[string]int),
		library:     make(map[string]bool),
	}
	root := &Scope{Name: "vg_" + MainDispatch, position: "position"}
	root.Args = append(root.Args, ScopeArgument{Name: "position", Shape: Vec3, Node: thePosition})
	c.scopes = append(c.scopes, root)
	c.memo[memoKey{root, thePosition.ID()}] = "position"
	return c
}

// State returns the lifecycle state.
func (c *Context) State() State { return c.state }

// Root returns the root scope.
func (c *Context) Root() *Scope { return c.scopes[0] }

// Current returns the scope on top of the stack, or the root scope when
// nothing has been pushed.
func (c *Context) Current() *Scope {
	if len(c.stack) == 0 {
		return c.scopes[0]
	}
	return c.stack[len(c.stack)-1]
}

// Scopes returns the discovered scopes. After Parse they are ordered by
// descending nesting depth, so callees precede their callers.
func (c *Context) Scopes() []*Scope {
	if c.sorted != nil {
		return c.sorted
	}
	return c.scopes
}

// Dispatches returns the dispatches. After Parse they are ordered by
// descending depth.
func (c *Context) Dispatches() []*KernelDispatch { return c.dispatches }

// Sum returns the structural hash folded so far.
func (c *Context) Sum() hash.Sum { return c.hash.Sum() }

// Hash folds a structural choice into the running fingerprint. It must only
// ever be given discrete choices, never runtime values.
func (c *Context) Hash(tag byte, choices ...string) {
	c.hash.Tag(tag)
	for _, s := range choices {
		c.hash.Str(s)
	}
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// Emit returns the symbol holding n's value in the current scope, emitting
// n and its dependencies on first use. This memo lookup is the only
// mechanism that shares work between consumers of a node.
func (c *Context) Emit(n Node) (string, error) {
	if n == nil {
		return "", structureErr(nil, "nil node")
	}
	key := memoKey{c.Current(), n.ID()}
	if sym, ok := c.memo[key]; ok {
		c.hash.Tag(hash.TagBackRef)
		c.hash.Str(sym)
		return sym, nil
	}
	n.structure(c.hash)
	sym, err := n.emit(c)
	if err != nil {
		return "", err
	}
	c.memo[key] = sym
	return sym, nil
}

// Bind declares a new local holding expr in the current scope and returns
// its name. The node is recorded so the declaration carries its type.
func (c *Context) Bind(n Node, expr string) string {
	return c.Local(n.Shape(), expr)
}

// Local declares an immutable local in the current scope.
func (c *Context) Local(s Shape, expr string) string {
	sc := c.Current()
	name := c.unique("v")
	sc.Lines = append(sc.Lines, fmt.Sprintf("let %s: %s = %s;", name, s.WGSL(), expr))
	sc.bound++
	return name
}

// Line appends a raw line to the current scope.
func (c *Context) Line(format string, args ...any) {
	sc := c.Current()
	sc.Lines = append(sc.Lines, fmt.Sprintf(format, args...))
}

// Require includes a library routine, and the routines it depends on, in
// the generated preamble.
func (c *Context) Require(name string) {
	if c.library[name] {
		return
	}
	r, ok := library[name]
	if !ok {
		panic("compiler: unknown library routine " + name)
	}
	c.library[name] = true
	for _, dep := range r.deps {
		c.Require(dep)
	}
}

func (c *Context) unique(prefix string) string {
	c.names++
	return fmt.Sprintf("%s_%d", prefix, c.names)
}

// PushScope makes s the current scope.
func (c *Context) PushScope(s *Scope) {
	c.stack = append(c.stack, s)
}

// PopScope returns to the enclosing scope.
func (c *Context) PopScope() *Scope {
	if len(c.stack) == 0 {
		return nil
	}
	s := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return s
}

func (c *Context) positionSymbol() (string, bool) {
	p := c.Current().position
	return p, p != ""
}

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

func (c *Context) constantSlot(n *ConstantNode) int {
	if slot, ok := c.constSlots[n.ID()]; ok {
		return slot
	}
	slot := len(c.params)
	c.params = append(c.params, Parameter{Slot: slot, Shape: n.value.Shape, Value: n.value})
	c.constSlots[n.ID()] = slot
	return slot
}

func (c *Context) lookupInjected(name string) (Value, bool) {
	if c.opts.Injector == nil {
		return Value{}, false
	}
	return c.opts.Injector.Lookup(name)
}

func (c *Context) injectedSlot(name string, v Value) (int, error) {
	if slot, ok := c.injectSlots[name]; ok {
		if c.params[slot].Shape != v.Shape {
			return 0, configErr(name, "parameter used as both %s and %s", c.params[slot].Shape, v.Shape)
		}
		return slot, nil
	}
	slot := len(c.params)
	c.params = append(c.params, Parameter{Slot: slot, Name: name, Shape: v.Shape, Value: v, Injected: true})
	c.injectSlots[name] = slot
	return slot, nil
}

// ---------------------------------------------------------------------------
// Parse
// ---------------------------------------------------------------------------

// Parse validates the graph, emits each root in order and sorts the
// discovered scopes and dispatches. On error the context is left in the
// Failed state and no source can be produced from it.
func (c *Context) Parse(roots []Root) error {
	if c.state != StateCreated {
		return ErrContextUsed
	}
	c.state = StateParsing
	if err := c.parse(roots); err != nil {
		c.state = StateFailed
		return err
	}
	c.state = StateParsed
	c.sortScopes()
	c.sortDispatches()
	c.state = StateSorted
	return nil
}

func (c *Context) parse(roots []Root) error {
	if c.opts.Workgroup > MaxWorkgroup {
		return configErr("workgroup", "%d is outside 1..%d", c.opts.Workgroup, MaxWorkgroup)
	}
	if err := validate(roots, c.opts.Required); err != nil {
		return err
	}
	root := c.scopes[0]
	c.hash.Tag(hash.TagWorkgroup)
	c.hash.Uint32(uint32(c.opts.Workgroup))
	main := c.newDispatch(MainDispatch, Dims3, 0, root)

	c.PushScope(root)
	for _, r := range roots {
		c.hash.Tag(hash.TagOutput)
		c.hash.Str(r.Target)
		c.hash.Tag(byte(r.Node.Shape()))
		sym, err := c.Emit(r.Node)
		if err != nil {
			return err
		}
		out := "out_" + r.Target
		root.Args = append(root.Args, ScopeArgument{Name: out, Shape: r.Node.Shape(), Output: true})
		root.Lines = append(root.Lines, fmt.Sprintf("*%s = %s;", out, sym))
		main.Outputs = append(main.Outputs, OutputBinding{
			Target: r.Target,
			Node:   r.Node,
			Buffer: c.addBuffer(r.Target, r.Node.Shape(), main),
		})
	}
	c.PopScope()
	if len(c.stack) != 0 {
		return fmt.Errorf("compiler: scope stack not empty after parse (%d open)", len(c.stack))
	}
	return nil
}

func (c *Context) sortScopes() {
	c.sorted = append([]*Scope(nil), c.scopes...)
	sort.SliceStable(c.sorted, func(i, j int) bool {
		return c.sorted[i].Depth > c.sorted[j].Depth
	})
}

func (c *Context) sortDispatches() {
	sort.SliceStable(c.dispatches, func(i, j int) bool {
		return c.dispatches[i].Depth > c.dispatches[j].Depth
	})
}
