package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/chazu/voxgraph/artifact"
	"github.com/chazu/voxgraph/compiler"
	"github.com/chazu/voxgraph/compiler/hash"
	"github.com/chazu/voxgraph/graphdoc"
)

// CompileService implements the CompileService Connect handler.
type CompileService struct {
	worker *Worker
	store  artifact.Store
}

// NewCompileService creates a CompileService.
func NewCompileService(worker *Worker, store artifact.Store) *CompileService {
	return &CompileService{worker: worker, store: store}
}

// Compile compiles a graph document and records the artifact.
func (s *CompileService) Compile(
	ctx context.Context,
	req *connect.Request[CompileRequest],
) (*connect.Response[CompileResponse], error) {
	if len(req.Msg.Document) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("document is required"))
	}
	id := uuid.NewString()

	doc, err := graphdoc.Parse(req.Msg.Document)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	opts := compiler.Options{
		Injector:  compiler.MapInjector(req.Msg.Parameters),
		Required:  req.Msg.Required,
		Workgroup: req.Msg.Workgroup,
	}

	v, err := s.worker.Do(func() (any, error) {
		return doc.Compile(opts)
	})
	if err != nil {
		log.Infof("%s: compile %q failed: %s", id, doc.Name, err)
		return nil, compileError(err)
	}
	prog := v.(*compiler.Program)

	known, err := s.store.Has(prog.Hash)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	a := artifact.FromProgram(prog)
	if err := s.store.Put(a); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	log.Infof("%s: compiled %q as %s (known=%t)", id, doc.Name, prog.Hash.Short(), known)
	return connect.NewResponse(&CompileResponse{Artifact: a, Known: known}), nil
}

// Fetch returns a stored artifact by hash.
func (s *CompileService) Fetch(
	ctx context.Context,
	req *connect.Request[FetchRequest],
) (*connect.Response[FetchResponse], error) {
	a, err := lookup(s.store, req.Msg.Hash)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&FetchResponse{Artifact: a}), nil
}

// lookup reads an artifact by hex hash, mapping failures onto Connect
// codes.
func lookup(store artifact.Store, hex string) (*artifact.Artifact, error) {
	h, err := hash.ParseSum(hex)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("hash %q: %w", hex, err))
	}
	a, err := store.Get(h)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("artifact %s not found", h.Short()))
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return a, nil
}

// List returns the stored hashes.
func (s *CompileService) List(
	ctx context.Context,
	req *connect.Request[ListRequest],
) (*connect.Response[ListResponse], error) {
	hashes, err := s.store.Hashes()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	out := &ListResponse{Hashes: make([]string, len(hashes))}
	for i, h := range hashes {
		out.Hashes[i] = h.String()
	}
	return connect.NewResponse(out), nil
}

// compileError maps compiler errors onto Connect codes.
func compileError(err error) error {
	var (
		gse *compiler.GraphStructureError
		tse *compiler.TypeShapeError
		cfg *compiler.ConfigurationError
	)
	switch {
	case errors.As(err, &gse), errors.As(err, &tse):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.As(err, &cfg):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, ErrWorkerStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
