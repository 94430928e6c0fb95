package compiler

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Coordinate convention
//
// A flat work-item index maps to an N-D coordinate by one divide/modulo
// decomposition with strides size^k:
//
//	index = c0 + c1*size + c2*size*size
//	c_k   = (index / size^k) % size
//
// The Go functions and the generated helpers are both produced from
// IndexFormula, so they cannot drift apart.
// ---------------------------------------------------------------------------

// IndexFormula is the flat-index decomposition for one dimensionality.
type IndexFormula struct {
	Dims Dims
}

var lanes = [...]string{"x", "y", "z"}

// Encode flattens coordinate c on a grid of the given edge size.
func (f IndexFormula) Encode(c []uint32, size uint32) uint32 {
	var index, stride uint32 = 0, 1
	for k := 0; k < int(f.Dims); k++ {
		index += c[k] * stride
		stride *= size
	}
	return index
}

// Decode is the exact inverse of Encode for coordinates within bounds.
func (f IndexFormula) Decode(index, size uint32) []uint32 {
	c := make([]uint32, f.Dims)
	var stride uint32 = 1
	for k := range c {
		c[k] = (index / stride) % size
		stride *= size
	}
	return c
}

// strideExpr renders size^k as a product of the size symbol.
func strideExpr(k int, size string) string {
	if k == 0 {
		return ""
	}
	return " * " + strings.TrimSuffix(strings.Repeat(size+" * ", k), " * ")
}

func (f IndexFormula) vecType() string {
	return fmt.Sprintf("vec%d<u32>", f.Dims)
}

// encodeWGSL renders the encode helper.
func (f IndexFormula) encodeWGSL() string {
	terms := make([]string, f.Dims)
	for k := range terms {
		terms[k] = "c." + lanes[k] + strideExpr(k, "n")
	}
	return fmt.Sprintf("fn vg_encode%d(c: %s, n: u32) -> u32 {\n\treturn %s;\n}\n",
		f.Dims, f.vecType(), strings.Join(terms, " + "))
}

// decodeWGSL renders the decode helper.
func (f IndexFormula) decodeWGSL() string {
	terms := make([]string, f.Dims)
	for k := range terms {
		if k == 0 {
			terms[k] = "i % n"
		} else {
			terms[k] = fmt.Sprintf("(i / (%s)) %% n", strings.TrimPrefix(strideExpr(k, "n"), " * "))
		}
	}
	return fmt.Sprintf("fn vg_decode%d(i: u32, n: u32) -> %s {\n\treturn %s(%s);\n}\n",
		f.Dims, f.vecType(), f.vecType(), strings.Join(terms, ", "))
}

var (
	formula2 = IndexFormula{Dims: Dims2}
	formula3 = IndexFormula{Dims: Dims3}
)

// Encode3 flattens a 3D coordinate.
func Encode3(c [3]uint32, size uint32) uint32 { return formula3.Encode(c[:], size) }

// Decode3 recovers a 3D coordinate from a flat index.
func Decode3(index, size uint32) [3]uint32 {
	c := formula3.Decode(index, size)
	return [3]uint32{c[0], c[1], c[2]}
}

// Encode2 flattens a 2D coordinate.
func Encode2(c [2]uint32, size uint32) uint32 { return formula2.Encode(c[:], size) }

// Decode2 recovers a 2D coordinate from a flat index.
func Decode2(index, size uint32) [2]uint32 {
	c := formula2.Decode(index, size)
	return [2]uint32{c[0], c[1]}
}

// ---------------------------------------------------------------------------
// Segment addressing
// ---------------------------------------------------------------------------

// Seed is the permutation/modulo pair folded into noise sampling. The
// effective per-axis offset is Permutation mod max(Modulo, 1).
type Seed struct {
	Permutation [3]int32 `cbor:"1,keyasint" toml:"permutation" json:"permutation"`
	Modulo      [3]int32 `cbor:"2,keyasint" toml:"modulo" json:"modulo"`
}

// Offset returns the per-axis seed offset as computed by the kernel.
func (s Seed) Offset() [3]int32 {
	var out [3]int32
	for i := range out {
		m := s.Modulo[i]
		if m < 1 {
			m = 1
		}
		out[i] = s.Permutation[i] % m
	}
	return out
}

// Segment locates one invocation of the program in world space.
type Segment struct {
	Offset [3]float32 `cbor:"1,keyasint" json:"offset"`
	Scale  float32    `cbor:"2,keyasint" json:"scale"`
	Size   uint32     `cbor:"3,keyasint" json:"size"`
	Seed   Seed       `cbor:"4,keyasint" json:"seed"`
}

// SegmentSize is the byte size of the segment uniform.
const SegmentSize = 48

// Bytes encodes the segment in the uniform layout declared by the
// generated preamble.
func (s Segment) Bytes() []byte {
	b := make([]byte, SegmentSize)
	le := binary.LittleEndian
	for i, v := range s.Offset {
		le.PutUint32(b[4*i:], math.Float32bits(v))
	}
	le.PutUint32(b[12:], math.Float32bits(s.Scale))
	for i, v := range s.Seed.Permutation {
		le.PutUint32(b[16+4*i:], uint32(v))
	}
	le.PutUint32(b[28:], s.Size)
	for i, v := range s.Seed.Modulo {
		le.PutUint32(b[32+4*i:], uint32(v))
	}
	return b
}

// Position returns the world position of a voxel coordinate at reduction r,
// matching the generated position helpers.
func (s Segment) Position(c [3]uint32, r int) [3]float32 {
	step := s.Scale * float32(uint32(1)<<uint(r))
	return [3]float32{
		s.Offset[0] + float32(c[0])*step,
		s.Offset[1] + float32(c[1])*step,
		s.Offset[2] + float32(c[2])*step,
	}
}

// CacheCell returns the cell of a cache at reduction r that world position
// p samples, matching the generated vg_cache_index. The position is first
// snapped to the nearest full-resolution voxel so cells split on integer
// coordinates.
func (s Segment) CacheCell(p [3]float32, r int) [2]uint32 {
	n := int32(reducedSize(s.Size, r))
	var cell [2]uint32
	for i, axis := range [2]int{0, 2} {
		v := int32(math.RoundToEven(float64((p[axis] - s.Offset[axis]) / s.Scale)))
		v >>= uint(r)
		cell[i] = uint32(min(max(v, 0), n-1))
	}
	return cell
}
