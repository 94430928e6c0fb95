package server

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/voxgraph/compiler/hash"
)

// newH2CServer starts a server that also accepts unencrypted HTTP/2, and
// returns a CBOR client plus the bare host:port for gRPC.
func newH2CServer(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	s := New()
	ts := httptest.NewUnstartedServer(s.Handler())
	ts.Config.Protocols = Protocols()
	ts.Start()
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return NewClient(ts.Client(), ts.URL), ts
}

func TestArtifactClient_OverGRPC(t *testing.T) {
	c, ts := newH2CServer(t)
	a := compileRidge(t, c, 4).Artifact

	ac, err := DialArtifacts(strings.TrimPrefix(ts.URL, "http://"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ac.Close()
	ctx := context.Background()

	got, err := ac.Get(ctx, a.Hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Hash != a.Hash || got.Source != a.Source {
		t.Errorf("get = %s, want %s", got.Hash.Short(), a.Hash.Short())
	}

	src, err := ac.Source(ctx, a.Hash)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	if src != a.Source {
		t.Error("source differs")
	}

	hashes, err := ac.Hashes(ctx)
	if err != nil {
		t.Fatalf("hashes: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != a.Hash {
		t.Errorf("hashes = %v", hashes)
	}

	var missing hash.Sum
	missing[0] = 0xab
	if _, err := ac.Get(ctx, missing); status.Code(err) != codes.NotFound {
		t.Errorf("unknown hash err = %v, want NotFound", err)
	}
}

func TestArtifactService_ConnectProtoClient(t *testing.T) {
	c, ts := newH2CServer(t)
	a := compileRidge(t, c, 2).Artifact

	client := connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](
		ts.Client(), ts.URL+GetSourceProcedure)
	res, err := client.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String(a.Hash.String())))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.Msg.GetValue() != a.Source {
		t.Error("source differs")
	}

	_, err = client.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String("zz")))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("bad hash err = %v, want invalid argument", err)
	}
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSchema(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"package voxgraph.v1;",
		"google/protobuf/wrappers.proto",
		"service ArtifactService",
		"rpc GetArtifact",
		"rpc GetSource",
		"rpc ListHashes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("schema lacks %q:\n%s", want, out)
		}
	}
}
