package artifact

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/voxgraph/compiler"
	"github.com/chazu/voxgraph/compiler/hash"
)

// ---------------------------------------------------------------------------
// Artifact: a compiled program addressed by its structural hash
// ---------------------------------------------------------------------------

var log = commonlog.GetLogger("voxgraph.artifact")

// ErrNotFound is returned when no artifact is stored under a hash.
var ErrNotFound = errors.New("artifact not found")

// Artifact is the transportable form of a compiled program. Two compiles
// of the same graph structure share a hash and differ only in Parameters,
// so a store keeps the most recently written parameter defaults.
type Artifact struct {
	Hash       hash.Sum                `cbor:"1,keyasint"`
	Source     string                  `cbor:"2,keyasint"`
	Workgroup  int                     `cbor:"3,keyasint"`
	Dispatches []compiler.DispatchInfo `cbor:"4,keyasint"`
	Buffers    []compiler.Buffer       `cbor:"5,keyasint,omitempty"`
	Parameters []compiler.Parameter    `cbor:"6,keyasint,omitempty"`
}

// FromProgram captures a program as an artifact.
func FromProgram(p *compiler.Program) *Artifact {
	return &Artifact{
		Hash:       p.Hash,
		Source:     p.Source,
		Workgroup:  p.Workgroup,
		Dispatches: p.Dispatches,
		Buffers:    p.Buffers,
		Parameters: p.Parameters,
	}
}

// Program rebuilds the program the artifact was captured from.
func (a *Artifact) Program() *compiler.Program {
	return &compiler.Program{
		Source:     a.Source,
		Hash:       a.Hash,
		Workgroup:  a.Workgroup,
		Dispatches: a.Dispatches,
		Buffers:    a.Buffers,
		Parameters: a.Parameters,
	}
}

func (a *Artifact) String() string {
	return fmt.Sprintf("artifact %s (%d bytes of source, %d dispatches)", a.Hash.Short(), len(a.Source), len(a.Dispatches))
}

// Store persists artifacts by hash. Implementations are safe for
// concurrent use.
type Store interface {
	// Put stores a, replacing any artifact with the same hash.
	Put(a *Artifact) error
	// Get returns the artifact for h, or ErrNotFound.
	Get(h hash.Sum) (*Artifact, error)
	// Has reports whether an artifact is stored under h.
	Has(h hash.Sum) (bool, error)
	// Hashes lists the stored hashes in ascending byte order.
	Hashes() ([]hash.Sum, error)
}

func validate(a *Artifact) error {
	if a == nil {
		return errors.New("artifact: nil artifact")
	}
	if a.Hash.IsZero() {
		return errors.New("artifact: zero hash")
	}
	if len(a.Dispatches) == 0 {
		return fmt.Errorf("artifact %s: no dispatches", a.Hash.Short())
	}
	return nil
}
