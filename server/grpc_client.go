package server

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/voxgraph/artifact"
	"github.com/chazu/voxgraph/compiler/hash"
)

// ArtifactClient reads artifacts over plain gRPC. Requests are built from
// the service descriptor, so the client needs no generated stubs.
type ArtifactClient struct {
	conn    *grpc.ClientConn
	methods map[string]*desc.MethodDescriptor
}

// DialArtifacts connects to an artifact service at target ("host:port").
// Without options the connection is unencrypted.
func DialArtifacts(target string, opts ...grpc.DialOption) (*ArtifactClient, error) {
	fd, err := ArtifactSchema()
	if err != nil {
		return nil, err
	}
	svc := fd.FindService(ArtifactServiceName)
	if svc == nil {
		return nil, fmt.Errorf("schema lacks %s", ArtifactServiceName)
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	c := &ArtifactClient{conn: conn, methods: make(map[string]*desc.MethodDescriptor)}
	for _, md := range svc.GetMethods() {
		c.methods[md.GetName()] = md
	}
	return c, nil
}

// Close closes the connection.
func (c *ArtifactClient) Close() error {
	return c.conn.Close()
}

// invoke calls a method whose request wraps a single value field and
// returns the response's value field.
func (c *ArtifactClient) invoke(ctx context.Context, method string, value any) (any, error) {
	md, ok := c.methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown method %s", method)
	}
	req := dynamic.NewMessage(md.GetInputType())
	if err := req.TrySetFieldByName("value", value); err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	res := dynamic.NewMessage(md.GetOutputType())
	if err := c.conn.Invoke(ctx, "/"+ArtifactServiceName+"/"+method, req, res); err != nil {
		return nil, err
	}
	return res.TryGetFieldByName("value")
}

// Get fetches and decodes the artifact with hash h.
func (c *ArtifactClient) Get(ctx context.Context, h hash.Sum) (*artifact.Artifact, error) {
	v, err := c.invoke(ctx, "GetArtifact", h.String())
	if err != nil {
		return nil, err
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("GetArtifact returned %T", v)
	}
	return artifact.Unmarshal(data)
}

// Source fetches the WGSL source of the artifact with hash h.
func (c *ArtifactClient) Source(ctx context.Context, h hash.Sum) (string, error) {
	v, err := c.invoke(ctx, "GetSource", h.String())
	if err != nil {
		return "", err
	}
	src, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("GetSource returned %T", v)
	}
	return src, nil
}

// Hashes lists the stored hashes.
func (c *ArtifactClient) Hashes(ctx context.Context) ([]hash.Sum, error) {
	res := &structpb.ListValue{}
	if err := c.conn.Invoke(ctx, ListHashesProcedure, &emptypb.Empty{}, res); err != nil {
		return nil, err
	}
	out := make([]hash.Sum, 0, len(res.GetValues()))
	for _, v := range res.GetValues() {
		h, err := hash.ParseSum(v.GetStringValue())
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
