package compiler

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestCoords_RoundTrip3D(t *testing.T) {
	for _, size := range []uint32{1, 2, 5, 8} {
		for z := uint32(0); z < size; z++ {
			for y := uint32(0); y < size; y++ {
				for x := uint32(0); x < size; x++ {
					c := [3]uint32{x, y, z}
					if got := Decode3(Encode3(c, size), size); got != c {
						t.Fatalf("size %d: decode(encode(%v)) = %v", size, c, got)
					}
				}
			}
		}
		for i := uint32(0); i < size*size*size; i++ {
			if got := Encode3(Decode3(i, size), size); got != i {
				t.Fatalf("size %d: encode(decode(%d)) = %d", size, i, got)
			}
		}
	}
}

func TestCoords_RoundTrip2D(t *testing.T) {
	for _, size := range []uint32{1, 3, 16} {
		for y := uint32(0); y < size; y++ {
			for x := uint32(0); x < size; x++ {
				c := [2]uint32{x, y}
				if got := Decode2(Encode2(c, size), size); got != c {
					t.Fatalf("size %d: decode(encode(%v)) = %v", size, c, got)
				}
			}
		}
	}
}

func TestCoords_XIsFastestAxis(t *testing.T) {
	if got := Encode3([3]uint32{1, 0, 0}, 4); got != 1 {
		t.Errorf("x stride = %d, want 1", got)
	}
	if got := Encode3([3]uint32{0, 1, 0}, 4); got != 4 {
		t.Errorf("y stride = %d, want 4", got)
	}
	if got := Encode3([3]uint32{0, 0, 1}, 4); got != 16 {
		t.Errorf("z stride = %d, want 16", got)
	}
}

func TestCoords_GeneratedHelpers(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{formula3.encodeWGSL(), "return c.x + c.y * n + c.z * n * n;"},
		{formula3.decodeWGSL(), "return vec3<u32>(i % n, (i / (n)) % n, (i / (n * n)) % n);"},
		{formula2.encodeWGSL(), "return c.x + c.y * n;"},
		{formula2.decodeWGSL(), "return vec2<u32>(i % n, (i / (n)) % n);"},
	}
	for _, tc := range cases {
		if !strings.Contains(tc.got, tc.want) {
			t.Errorf("helper\n%s\ndoes not contain %q", tc.got, tc.want)
		}
	}
}

func TestSegment_Bytes(t *testing.T) {
	s := Segment{
		Offset: [3]float32{1, 2, 3},
		Scale:  0.5,
		Size:   32,
		Seed:   Seed{Permutation: [3]int32{7, -3, 11}, Modulo: [3]int32{4, 0, 5}},
	}
	b := s.Bytes()
	if len(b) != SegmentSize {
		t.Fatalf("len = %d, want %d", len(b), SegmentSize)
	}
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	i := func(off int) int32 { return int32(binary.LittleEndian.Uint32(b[off:])) }
	if f(0) != 1 || f(4) != 2 || f(8) != 3 || f(12) != 0.5 {
		t.Errorf("offset/scale = %v %v %v %v", f(0), f(4), f(8), f(12))
	}
	if i(16) != 7 || i(20) != -3 || i(24) != 11 {
		t.Errorf("permutation = %d %d %d", i(16), i(20), i(24))
	}
	if binary.LittleEndian.Uint32(b[28:]) != 32 {
		t.Errorf("size = %d", binary.LittleEndian.Uint32(b[28:]))
	}
	if i(32) != 4 || i(36) != 0 || i(40) != 5 {
		t.Errorf("modulo = %d %d %d", i(32), i(36), i(40))
	}
}

func TestSeed_Offset(t *testing.T) {
	s := Seed{Permutation: [3]int32{7, 9, 11}, Modulo: [3]int32{4, 0, 100}}
	if got, want := s.Offset(), [3]int32{3, 0, 11}; got != want {
		t.Errorf("offset = %v, want %v", got, want)
	}
}

func TestDispatchInfo_Workgroups(t *testing.T) {
	main := DispatchInfo{Dims: Dims3}
	if got := main.Invocations(32); got != 32*32*32 {
		t.Errorf("main invocations = %d", got)
	}
	cache := DispatchInfo{Dims: Dims2, Reduction: 2}
	if got := cache.Invocations(32); got != 64 {
		t.Errorf("cache invocations = %d, want 64", got)
	}
	if got := cache.Workgroups(32, 64); got != 1 {
		t.Errorf("cache workgroups = %d, want 1", got)
	}
	if got := cache.Grid(32, 64); got != [3]uint32{1, 1, 1} {
		t.Errorf("cache grid = %v, want [1 1 1]", got)
	}
	tiny := DispatchInfo{Dims: Dims2, Reduction: 8}
	if got := tiny.Invocations(32); got != 1 {
		t.Errorf("fully reduced invocations = %d, want 1", got)
	}
}

func TestDispatchInfo_GridSpillsIntoY(t *testing.T) {
	main := DispatchInfo{Name: MainDispatch, Dims: Dims3}
	cases := []struct {
		size      uint32
		workgroup int
		want      [3]uint32
	}{
		{16, 64, [3]uint32{64, 1, 1}},
		{64, 64, [3]uint32{4096, 1, 1}},
		{256, 64, [3]uint32{65535, 5, 1}},
		{1024, 256, [3]uint32{65535, 65, 1}},
		{1024, 1, [3]uint32{65535, 16385, 1}},
	}
	for _, tc := range cases {
		got := main.Grid(tc.size, tc.workgroup)
		if got != tc.want {
			t.Errorf("grid(%d, %d) = %v, want %v", tc.size, tc.workgroup, got, tc.want)
		}
		if uint64(got[0])*uint64(got[1])*uint64(tc.workgroup) < main.Invocations(tc.size) {
			t.Errorf("grid(%d, %d) = %v covers too few invocations", tc.size, tc.workgroup, got)
		}
		if err := main.CheckGrid(tc.size, tc.workgroup); err != nil {
			t.Errorf("check(%d, %d): %v", tc.size, tc.workgroup, err)
		}
	}

	var cfg *ConfigurationError
	if err := main.CheckGrid(2048, 64); !errors.As(err, &cfg) || cfg.Name != "size" {
		t.Errorf("size 2048 err = %v, want ConfigurationError on size", err)
	}
}

func TestSegment_CacheCellSnapsToVoxels(t *testing.T) {
	seg := Segment{Offset: [3]float32{-3.3, 0, 12.7}, Scale: 0.1, Size: 64}
	for r := 0; r <= 3; r++ {
		for x := uint32(0); x < seg.Size; x++ {
			for _, z := range []uint32{0, x, seg.Size - 1 - x} {
				p := seg.Position([3]uint32{x, 0, z}, 0)
				want := [2]uint32{x >> uint(r), z >> uint(r)}
				if got := seg.CacheCell(p, r); got != want {
					t.Fatalf("r=%d voxel (%d, %d): cell = %v, want %v", r, x, z, got, want)
				}
			}
		}
	}

	// Positions outside the segment clamp to the edge cells.
	if got := seg.CacheCell([3]float32{-100, 0, 100}, 1); got != [2]uint32{0, 31} {
		t.Errorf("outside cell = %v, want [0 31]", got)
	}
}
