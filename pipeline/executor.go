package pipeline

import (
	"context"
	"sync"

	"github.com/chazu/voxgraph/compiler"
	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Executor: the device-side collaborator
// ---------------------------------------------------------------------------

// Executor allocates buffers and runs dispatches on an asynchronous device
// queue. A single executor may serve several programs; they are told apart
// by structural hash. Implementations must be comparable, typically a
// pointer type.
type Executor interface {
	// Upload compiles the program source and allocates its buffers for
	// volumes of the given size.
	Upload(ctx context.Context, prog *compiler.Program, size uint32) error
	// Uniforms writes the segment uniform and the parameter buffer.
	Uniforms(ctx context.Context, h hash.Sum, segment, params []byte) error
	// Dispatch enqueues one entry point over a grid of workgroup counts
	// (x, y, z).
	Dispatch(ctx context.Context, h hash.Sum, d compiler.DispatchInfo, grid [3]uint32) error
	// Fence blocks until all enqueued work has completed.
	Fence(ctx context.Context) error
	// Readback requests a copy of a buffer to host memory.
	Readback(ctx context.Context, h hash.Sum, buf compiler.Buffer) Future
	// Release frees everything allocated for a program.
	Release(ctx context.Context, h hash.Sum) error
}

// Future is the pending result of a transfer.
type Future interface {
	Wait(ctx context.Context) ([]byte, error)
}

// Promise is a Future resolved by its producer.
type Promise struct {
	once sync.Once
	done chan struct{}
	data []byte
	err  error
}

// NewPromise creates an unresolved promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve completes the promise. Only the first call has an effect.
func (p *Promise) Resolve(data []byte, err error) {
	p.once.Do(func() {
		p.data, p.err = data, err
		close(p.done)
	})
}

// Wait implements Future.
func (p *Promise) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return p.data, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
