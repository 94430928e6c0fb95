package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Scopes: generated functions
// ---------------------------------------------------------------------------

// ScopeArgument is one parameter of a generated function.
type ScopeArgument struct {
	Name   string
	Shape  Shape
	Node   Node // bound node for inputs; nil for outputs
	Output bool
}

// Scope is a generated function: an ordered argument list and a body.
type Scope struct {
	Name  string
	Args  []ScopeArgument
	Lines []string

	// Depth is the nesting depth. Callees are deeper than their callers.
	Depth int

	key      string
	bound    int
	position string
	dispatch *KernelDispatch
}

// Bound returns the number of symbols declared in the scope.
func (s *Scope) Bound() int { return s.bound }

// Signature renders the WGSL function header.
func (s *Scope) Signature() string {
	params := make([]string, len(s.Args))
	for i, a := range s.Args {
		if a.Output {
			params[i] = fmt.Sprintf("%s: ptr<function, %s>", a.Name, a.Shape.WGSL())
		} else {
			params[i] = fmt.Sprintf("%s: %s", a.Name, a.Shape.WGSL())
		}
	}
	return fmt.Sprintf("fn %s(%s)", s.Name, strings.Join(params, ", "))
}

// NestedScope describes an auxiliary function a built-in node extracts so
// that its private loop state is defined once and called, not inlined.
type NestedScope struct {
	// Key identifies the function's structure. Call sites with the same key
	// share one definition.
	Key string
	// Prefix names the function, e.g. "vg_cellular".
	Prefix string
	Inputs []Node
	Output Shape
	// Body writes the function body with Context.Line and returns the
	// expression assigned to the output. args holds one local per input,
	// each initialized from its argument.
	Body func(c *Context, args []string) (string, error)
}

// Nested emits n as a call to the auxiliary function described by ns:
// build the argument list, push the scope, emit the body, pop, then emit
// the call site in the caller and bind n to its result.
func (c *Context) Nested(n Node, ns NestedScope) (string, error) {
	syms := make([]string, len(ns.Inputs))
	for i, in := range ns.Inputs {
		sym, err := c.Emit(in)
		if err != nil {
			return "", err
		}
		syms[i] = sym
	}
	caller := c.Current()

	callee, ok := c.byKey[ns.Key]
	if ok {
		c.hash.Tag(hash.TagScopeCall)
		c.hash.Str(callee.Name)
		if caller.Depth+1 > callee.Depth {
			callee.Depth = caller.Depth + 1
		}
	} else {
		c.hash.Tag(hash.TagScope)
		c.hash.Str(ns.Key)
		var err error
		callee, err = c.defineNested(caller, ns)
		if err != nil {
			return "", err
		}
	}

	tmp := c.unique("t")
	caller.Lines = append(caller.Lines,
		fmt.Sprintf("var %s: %s;", tmp, ns.Output.WGSL()),
		fmt.Sprintf("%s(%s);", callee.Name, strings.Join(append(syms, "&"+tmp), ", ")),
	)
	caller.bound++
	return tmp, nil
}

func (c *Context) defineNested(caller *Scope, ns NestedScope) (*Scope, error) {
	s := &Scope{
		Name:     c.unique(ns.Prefix),
		Depth:    caller.Depth + 1,
		key:      ns.Key,
		dispatch: caller.dispatch,
	}
	args := make([]string, len(ns.Inputs))
	for i, in := range ns.Inputs {
		name := fmt.Sprintf("in_%d", i)
		s.Args = append(s.Args, ScopeArgument{Name: name, Shape: in.Shape(), Node: in})
		c.memo[memoKey{s, in.ID()}] = name
		args[i] = fmt.Sprintf("a%d", i)
	}
	s.Args = append(s.Args, ScopeArgument{Name: "out_value", Shape: ns.Output, Output: true})

	c.PushScope(s)
	for i := range ns.Inputs {
		c.Line("let %s = in_%d;", args[i], i)
	}
	expr, err := ns.Body(c, args)
	if err != nil {
		c.PopScope()
		return nil, err
	}
	c.Line("*out_value = %s;", expr)
	c.PopScope()

	c.scopes = append(c.scopes, s)
	c.byKey[ns.Key] = s
	return s, nil
}
