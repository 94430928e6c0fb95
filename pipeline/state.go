package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/chazu/voxgraph/compiler"
)

// ErrStateDisposed is returned when a disposed state is used.
var ErrStateDisposed = errors.New("pipeline state disposed")

// State is the execution state bound to one compiled program: the seed
// pair, the parameter buffer and the executors the program was uploaded
// to. It is created on first use, replaced when the structural hash
// changes and disposed by Generator.Close.
type State struct {
	mu       sync.Mutex
	prog     *compiler.Program
	seed     compiler.Seed
	params   []byte
	uploads  []upload
	disposed bool
}

type upload struct {
	exec Executor
	size uint32
}

func newState(prog *compiler.Program, seed compiler.Seed, values compiler.Injector) (*State, error) {
	params, err := prog.ParameterData(values)
	if err != nil {
		return nil, err
	}
	return &State{prog: prog, seed: seed, params: params}, nil
}

// Program returns the program the state belongs to.
func (s *State) Program() *compiler.Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prog
}

// Seed returns the seed pair applied to every run.
func (s *State) Seed() compiler.Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

// Params returns a copy of the parameter buffer contents.
func (s *State) Params() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.params...)
}

// Disposed reports whether the state has been released.
func (s *State) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *State) setSeed(seed compiler.Seed) {
	s.mu.Lock()
	s.seed = seed
	s.mu.Unlock()
}

// refresh rebuilds the parameter buffer. prog must share the state's hash.
func (s *State) refresh(prog *compiler.Program, values compiler.Injector) error {
	params, err := prog.ParameterData(values)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.prog = prog
	s.params = params
	s.mu.Unlock()
	return nil
}

// ensureUploaded uploads the program to exec once per volume size.
func (s *State) ensureUploaded(ctx context.Context, exec Executor, size uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrStateDisposed
	}
	for _, u := range s.uploads {
		if u.exec == exec && u.size == size {
			return nil
		}
	}
	if err := exec.Upload(ctx, s.prog, size); err != nil {
		return err
	}
	s.uploads = append(s.uploads, upload{exec: exec, size: size})
	return nil
}

// dispose releases the program on every executor it was uploaded to.
func (s *State) dispose(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	var errs []error
	released := make(map[Executor]bool)
	for _, u := range s.uploads {
		if released[u.exec] {
			continue
		}
		released[u.exec] = true
		if err := u.exec.Release(ctx, s.prog.Hash); err != nil {
			errs = append(errs, err)
		}
	}
	s.uploads = nil
	return errors.Join(errs...)
}
