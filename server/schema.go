package server

import (
	"fmt"
	"io"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/builder"
	"github.com/jhump/protoreflect/desc/protoprint"
)

// SchemaFile is the path of the generated artifact service definition.
const SchemaFile = "voxgraph/v1/artifact.proto"

var schema struct {
	once sync.Once
	fd   *desc.FileDescriptor
	err  error
}

// ArtifactSchema returns the descriptor of the artifact service, assembled
// from the registered well-known message types the handlers exchange.
func ArtifactSchema() (*desc.FileDescriptor, error) {
	schema.once.Do(func() {
		schema.fd, schema.err = buildSchema()
	})
	return schema.fd, schema.err
}

func buildSchema() (*desc.FileDescriptor, error) {
	types := make(map[string]*builder.RpcType)
	for key, name := range map[string]string{
		"string": "google.protobuf.StringValue",
		"bytes":  "google.protobuf.BytesValue",
		"empty":  "google.protobuf.Empty",
		"list":   "google.protobuf.ListValue",
	} {
		md, err := desc.LoadMessageDescriptor(name)
		if err != nil {
			return nil, err
		}
		if md == nil {
			return nil, fmt.Errorf("schema: message %s is not linked", name)
		}
		types[key] = builder.RpcTypeImportedMessage(md, false)
	}

	method := func(name, comment string, req, res *builder.RpcType) *builder.MethodBuilder {
		return builder.NewMethod(name, req, res).SetComments(builder.Comments{LeadingComment: " " + comment})
	}
	svc := builder.NewService("ArtifactService").
		SetComments(builder.Comments{LeadingComment: " Read access to compiled voxel graph artifacts."}).
		AddMethod(method("GetArtifact", "Canonical CBOR artifact for a hex structural hash.", types["string"], types["bytes"])).
		AddMethod(method("GetSource", "WGSL source for a hex structural hash.", types["string"], types["string"])).
		AddMethod(method("ListHashes", "Stored hashes in ascending order.", types["empty"], types["list"]))

	return builder.NewFile(SchemaFile).
		SetPackageName("voxgraph.v1").
		SetProto3(true).
		AddService(svc).
		Build()
}

// WriteSchema prints the artifact service definition in .proto syntax.
func WriteSchema(w io.Writer) error {
	fd, err := ArtifactSchema()
	if err != nil {
		return err
	}
	p := protoprint.Printer{Compact: true}
	return p.PrintProtoFile(fd, w)
}
