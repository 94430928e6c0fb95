package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/voxgraph/compiler"
	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Staged execution
// ---------------------------------------------------------------------------

// Result holds the pending readbacks of one segment run, keyed by output
// target.
type Result struct {
	Hash    hash.Sum
	Segment compiler.Segment
	Outputs map[string]Future
}

// Wait resolves every readback.
func (r *Result) Wait(ctx context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte, len(r.Outputs))
	for target, f := range r.Outputs {
		data, err := f.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("readback %s: %w", target, err)
		}
		out[target] = data
	}
	return out, nil
}

// Run executes the current program for one segment. Stages run in
// schedule order with a fence between them and before the readbacks; the
// dispatches of a stage are enqueued concurrently. The segment's seed is replaced by the state's.
func (g *Generator) Run(ctx context.Context, exec Executor, seg compiler.Segment) (*Result, error) {
	st, err := g.State()
	if err != nil {
		return nil, err
	}
	return st.Run(ctx, exec, seg)
}

// Run executes the state's program for one segment.
func (s *State) Run(ctx context.Context, exec Executor, seg compiler.Segment) (*Result, error) {
	if seg.Size == 0 {
		return nil, &compiler.ConfigurationError{Name: "size", Reason: "segment size must be positive"}
	}
	prog := s.Program()
	for _, d := range prog.Dispatches {
		if err := d.CheckGrid(seg.Size, prog.Workgroup); err != nil {
			return nil, err
		}
	}
	if err := s.ensureUploaded(ctx, exec, seg.Size); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	seg.Seed = s.Seed()
	if err := exec.Uniforms(ctx, prog.Hash, seg.Bytes(), s.Params()); err != nil {
		return nil, fmt.Errorf("uniforms: %w", err)
	}

	for i, stage := range prog.Schedule() {
		if i > 0 {
			if err := exec.Fence(ctx); err != nil {
				return nil, fmt.Errorf("fence before stage %d: %w", i, err)
			}
		}
		eg, ectx := errgroup.WithContext(ctx)
		for _, d := range stage.Dispatches {
			eg.Go(func() error {
				return exec.Dispatch(ectx, prog.Hash, d, d.Grid(seg.Size, prog.Workgroup))
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, fmt.Errorf("stage %d (depth %d): %w", i, stage.Depth, err)
		}
	}

	if err := exec.Fence(ctx); err != nil {
		return nil, fmt.Errorf("fence before readback: %w", err)
	}
	res := &Result{Hash: prog.Hash, Segment: seg, Outputs: make(map[string]Future)}
	for _, buf := range prog.Buffers {
		if buf.Dispatch == compiler.MainDispatch {
			res.Outputs[buf.Name] = exec.Readback(ctx, prog.Hash, buf)
		}
	}
	log.Debugf("ran %s on segment %v (%d stages)", prog.Hash.Short(), seg.Offset, len(prog.Schedule()))
	return res, nil
}
