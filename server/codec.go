package server

import "github.com/chazu/voxgraph/artifact"

// cborCodec carries service messages as canonical CBOR, the same encoding
// artifacts use at rest.
type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(v any) ([]byte, error) { return artifact.Encode(v) }

func (cborCodec) Unmarshal(data []byte, v any) error { return artifact.Decode(data, v) }
