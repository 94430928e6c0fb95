package server

import (
	"context"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/voxgraph/artifact"
)

// Procedure paths of the artifact service. Messages are protobuf
// well-known types, so stock gRPC and Connect clients can read the store
// without the CBOR codec.
const (
	ArtifactServiceName  = "voxgraph.v1.ArtifactService"
	GetArtifactProcedure = "/" + ArtifactServiceName + "/GetArtifact"
	GetSourceProcedure   = "/" + ArtifactServiceName + "/GetSource"
	ListHashesProcedure  = "/" + ArtifactServiceName + "/ListHashes"
)

// ArtifactService serves read access to stored artifacts.
type ArtifactService struct {
	store artifact.Store
}

// NewArtifactService creates an ArtifactService over store.
func NewArtifactService(store artifact.Store) *ArtifactService {
	return &ArtifactService{store: store}
}

// GetArtifact returns the canonical CBOR encoding of the artifact whose
// hex hash is the request value.
func (s *ArtifactService) GetArtifact(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.BytesValue], error) {
	a, err := lookup(s.store, req.Msg.GetValue())
	if err != nil {
		return nil, err
	}
	data, err := artifact.Marshal(a)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(wrapperspb.Bytes(data)), nil
}

// GetSource returns the WGSL source of an artifact.
func (s *ArtifactService) GetSource(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	a, err := lookup(s.store, req.Msg.GetValue())
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(wrapperspb.String(a.Source)), nil
}

// ListHashes returns the stored hashes as a list of hex strings.
func (s *ArtifactService) ListHashes(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.ListValue], error) {
	hashes, err := s.store.Hashes()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, len(hashes))}
	for i, h := range hashes {
		out.Values[i] = structpb.NewStringValue(h.String())
	}
	return connect.NewResponse(out), nil
}
