package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/voxgraph/artifact"
)

var log = commonlog.GetLogger("voxgraph.server")

// CompileServer serves the compile service over Connect with CBOR
// messages, and the artifact service with protobuf messages. The Connect,
// gRPC and gRPC-Web protocols are all accepted on the same port.
type CompileServer struct {
	worker *Worker
	mux    *http.ServeMux
}

// ServerOption configures a CompileServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	store        artifact.Store
	readMaxBytes int
}

// WithStore sets the artifact store. Without this, artifacts are kept in
// memory.
func WithStore(s artifact.Store) ServerOption {
	return func(c *serverConfig) { c.store = s }
}

// WithReadMaxBytes limits the size of incoming documents.
func WithReadMaxBytes(n int) ServerOption {
	return func(c *serverConfig) { c.readMaxBytes = n }
}

// New creates a CompileServer.
func New(opts ...ServerOption) *CompileServer {
	cfg := &serverConfig{readMaxBytes: 4 << 20}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = artifact.NewMemoryStore()
	}

	s := &CompileServer{
		worker: NewWorker(),
		mux:    http.NewServeMux(),
	}

	svc := NewCompileService(s.worker, cfg.store)
	handlerOpts := []connect.HandlerOption{
		connect.WithCodec(cborCodec{}),
		connect.WithReadMaxBytes(cfg.readMaxBytes),
	}
	s.mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, svc.Compile, handlerOpts...))
	s.mux.Handle(FetchProcedure, connect.NewUnaryHandler(FetchProcedure, svc.Fetch, handlerOpts...))
	s.mux.Handle(ListProcedure, connect.NewUnaryHandler(ListProcedure, svc.List, handlerOpts...))

	artifacts := NewArtifactService(cfg.store)
	protoOpts := connect.WithReadMaxBytes(cfg.readMaxBytes)
	s.mux.Handle(GetArtifactProcedure, connect.NewUnaryHandler(GetArtifactProcedure, artifacts.GetArtifact, protoOpts))
	s.mux.Handle(GetSourceProcedure, connect.NewUnaryHandler(GetSourceProcedure, artifacts.GetSource, protoOpts))
	s.mux.Handle(ListHashesProcedure, connect.NewUnaryHandler(ListHashesProcedure, artifacts.ListHashes, protoOpts))

	return s
}

// Handler returns the HTTP handler serving all procedures.
func (s *CompileServer) Handler() http.Handler { return s.mux }

// Protocols returns the HTTP protocols the server speaks. Unencrypted
// HTTP/2 is enabled for gRPC clients without TLS.
func Protocols() *http.Protocols {
	p := new(http.Protocols)
	p.SetHTTP1(true)
	p.SetUnencryptedHTTP2(true)
	return p
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *CompileServer) ListenAndServe(addr string) error {
	log.Noticef("compile service listening on %s", addr)
	log.Infof("  Connect (CBOR): http://%s%s", addr, CompileProcedure)
	log.Infof("  gRPC (proto):   %s %s", addr, ArtifactServiceName)
	srv := &http.Server{
		Addr:      addr,
		Handler:   s.mux,
		Protocols: Protocols(),
	}
	return srv.ListenAndServe()
}

// Stop shuts down the server.
func (s *CompileServer) Stop() {
	s.worker.Stop()
}
