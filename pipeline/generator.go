package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/chazu/voxgraph/artifact"
	"github.com/chazu/voxgraph/compiler"
)

// ---------------------------------------------------------------------------
// Generator: one graph instance and its compiled program
// ---------------------------------------------------------------------------

var log = commonlog.GetLogger("voxgraph.pipeline")

// ErrNoProgram is returned when a generator is used before its first
// successful rebuild.
var ErrNoProgram = errors.New("generator has no compiled program")

// ErrClosed is returned by a generator after Close.
var ErrClosed = errors.New("generator closed")

// Builder produces the output roots of a graph. It is called on every
// rebuild, so it may read a document that has changed since the last one.
type Builder func() ([]compiler.Root, error)

// Option configures a Generator.
type Option func(*Generator)

// WithOptions sets the compile options. The injector is replaced by the
// generator's own parameter values.
func WithOptions(opts compiler.Options) Option {
	return func(g *Generator) { g.opts = opts }
}

// WithStore records every compiled program in s.
func WithStore(s artifact.Store) Option {
	return func(g *Generator) { g.store = s }
}

// WithSeed sets the initial seed pair.
func WithSeed(seed compiler.Seed) Option {
	return func(g *Generator) { g.seed = seed }
}

// WithValues sets initial injected parameter values.
func WithValues(values compiler.MapInjector) Option {
	return func(g *Generator) {
		for k, v := range values {
			g.values[k] = v
		}
	}
}

// RebuildResult reports the outcome of a rebuild.
type RebuildResult struct {
	Program *compiler.Program
	// Changed is set when the structural hash differs from the previous
	// program, which invalidates the execution state.
	Changed bool
}

// Generator owns one graph instance. Rebuilds are coalesced: a trigger
// arriving while a rebuild is in flight joins it instead of queueing
// another. A failed rebuild leaves the previous program in effect.
type Generator struct {
	id    uuid.UUID
	build Builder
	opts  compiler.Options
	store artifact.Store
	group singleflight.Group
	prog  atomic.Pointer[compiler.Program]

	mu     sync.Mutex
	values compiler.MapInjector
	seed   compiler.Seed
	state  *State
	closed bool
}

// New creates a generator for the graph produced by build.
func New(build Builder, opts ...Option) *Generator {
	g := &Generator{
		id:     uuid.New(),
		build:  build,
		values: make(compiler.MapInjector),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the instance id.
func (g *Generator) ID() uuid.UUID { return g.id }

// Program returns the program in effect, or nil before the first
// successful rebuild.
func (g *Generator) Program() *compiler.Program { return g.prog.Load() }

// Rebuild recompiles the graph. Concurrent calls share one compile, which
// runs to completion even if the caller that started it gives up.
func (g *Generator) Rebuild(ctx context.Context) (RebuildResult, error) {
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(g.id.String(), func() (any, error) {
		return g.rebuild(shared)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return RebuildResult{Program: g.prog.Load()}, res.Err
		}
		return res.Val.(RebuildResult), nil
	case <-ctx.Done():
		return RebuildResult{Program: g.prog.Load()}, ctx.Err()
	}
}

func (g *Generator) rebuild(ctx context.Context) (RebuildResult, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return RebuildResult{}, ErrClosed
	}
	opts := g.opts
	values := make(compiler.MapInjector, len(g.values))
	for k, v := range g.values {
		values[k] = v
	}
	g.mu.Unlock()
	opts.Injector = values

	roots, err := g.build()
	if err != nil {
		log.Warningf("%s: build graph: %s", g.id, err)
		return RebuildResult{}, fmt.Errorf("build graph: %w", err)
	}
	prog, err := compiler.Compile(roots, opts)
	if err != nil {
		log.Warningf("%s: compile: %s", g.id, err)
		return RebuildResult{}, err
	}
	if g.store != nil {
		if err := g.store.Put(artifact.FromProgram(prog)); err != nil {
			log.Errorf("%s: store %s: %s", g.id, prog.Hash.Short(), err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return RebuildResult{}, ErrClosed
	}
	old := g.prog.Load()
	changed := old == nil || old.Hash != prog.Hash
	g.prog.Store(prog)
	if g.state != nil {
		if changed {
			if err := g.state.dispose(ctx); err != nil {
				log.Errorf("%s: release %s: %s", g.id, old.Hash.Short(), err)
			}
			g.state = nil
		} else if err := g.state.refresh(prog, g.values); err != nil {
			return RebuildResult{}, err
		}
	}
	if changed {
		log.Infof("%s: program %s", g.id, prog.Hash.Short())
	} else {
		log.Debugf("%s: program %s unchanged", g.id, prog.Hash.Short())
	}
	return RebuildResult{Program: prog, Changed: changed}, nil
}

// State returns the execution state of the current program, creating it
// on first use.
func (g *Generator) State() (*State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

func (g *Generator) stateLocked() (*State, error) {
	if g.closed {
		return nil, ErrClosed
	}
	prog := g.prog.Load()
	if prog == nil {
		return nil, ErrNoProgram
	}
	if g.state == nil {
		st, err := newState(prog, g.seed, g.values)
		if err != nil {
			return nil, err
		}
		g.state = st
	}
	return g.state, nil
}

// SetParameter binds an injected parameter value. The parameter buffer is
// updated in place; no recompile happens.
func (g *Generator) SetParameter(name string, v compiler.Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prog := g.prog.Load(); prog != nil {
		prm, ok := prog.Injected()[name]
		if !ok {
			return &compiler.ConfigurationError{Name: name, Reason: "program has no such parameter"}
		}
		if prm.Shape != v.Shape {
			return &compiler.ConfigurationError{Name: name, Reason: fmt.Sprintf("bound value is %s, parameter is %s", v.Shape, prm.Shape)}
		}
	}
	g.values[name] = v
	if g.state != nil {
		return g.state.refresh(g.state.Program(), g.values)
	}
	return nil
}

// SetSeed replaces the seed pair. Seeds are uniforms, so the program is
// unaffected.
func (g *Generator) SetSeed(seed compiler.Seed) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seed = seed
	if g.state != nil {
		g.state.setSeed(seed)
	}
}

// Close disposes the execution state. The generator cannot be used
// afterwards.
func (g *Generator) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	if g.state == nil {
		return nil
	}
	err := g.state.dispose(ctx)
	g.state = nil
	return err
}
