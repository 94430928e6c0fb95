package server

import (
	"github.com/chazu/voxgraph/artifact"
	"github.com/chazu/voxgraph/compiler"
)

// Procedure paths of the compile service.
const (
	ServiceName      = "voxgraph.v1.CompileService"
	CompileProcedure = "/" + ServiceName + "/Compile"
	FetchProcedure   = "/" + ServiceName + "/Fetch"
	ListProcedure    = "/" + ServiceName + "/List"
)

// CompileRequest asks for a graph document to be compiled.
type CompileRequest struct {
	// Document is a YAML graph document.
	Document   []byte                    `cbor:"1,keyasint"`
	Parameters map[string]compiler.Value `cbor:"2,keyasint,omitempty"`
	Required   []string                  `cbor:"3,keyasint,omitempty"`
	Workgroup  int                       `cbor:"4,keyasint,omitempty"`
}

// CompileResponse returns the compiled artifact.
type CompileResponse struct {
	Artifact *artifact.Artifact `cbor:"1,keyasint"`
	// Known is set when the store already held an artifact with the same
	// structural hash.
	Known bool `cbor:"2,keyasint,omitempty"`
}

// FetchRequest looks an artifact up by structural hash.
type FetchRequest struct {
	Hash string `cbor:"1,keyasint"`
}

// FetchResponse returns a stored artifact.
type FetchResponse struct {
	Artifact *artifact.Artifact `cbor:"1,keyasint"`
}

// ListRequest lists stored artifacts.
type ListRequest struct{}

// ListResponse holds the stored hashes in ascending order.
type ListResponse struct {
	Hashes []string `cbor:"1,keyasint"`
}
