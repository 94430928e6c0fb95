package artifact

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Canonical CBOR keeps encodings deterministic, so equal artifacts encode
// to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Encode serializes any value in canonical CBOR.
func Encode(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// Decode deserializes CBOR data into v.
func Decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// Marshal serializes an artifact to CBOR bytes.
func Marshal(a *Artifact) ([]byte, error) {
	if err := validate(a); err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(a)
}

// Unmarshal deserializes an artifact from CBOR bytes.
func Unmarshal(data []byte) (*Artifact, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("artifact: unmarshal: %w", err)
	}
	if err := validate(&a); err != nil {
		return nil, err
	}
	return &a, nil
}
