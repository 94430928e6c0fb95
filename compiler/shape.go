package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Shapes: the output type tag of every node
// ---------------------------------------------------------------------------

// Shape is the output type of a node. Values are frozen: they are written
// into the structural hash.
type Shape uint8

const (
	ShapeInvalid Shape = 0
	Float        Shape = 1
	Vec2         Shape = 2
	Vec3         Shape = 3
	Int          Shape = 4
	Bool         Shape = 5
	Rotation     Shape = 6 // unit quaternion, xyz + w
)

// String returns the shape name used in error messages and metadata.
func (s Shape) String() string {
	switch s {
	case Float:
		return "float"
	case Vec2:
		return "vec2"
	case Vec3:
		return "vec3"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Rotation:
		return "rotation"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// WGSL returns the WGSL type spelling of the shape.
func (s Shape) WGSL() string {
	switch s {
	case Float:
		return "f32"
	case Vec2:
		return "vec2<f32>"
	case Vec3:
		return "vec3<f32>"
	case Int:
		return "i32"
	case Bool:
		return "bool"
	case Rotation:
		return "vec4<f32>"
	default:
		return "void"
	}
}

// StorageWGSL returns the element type of a storage buffer holding the
// shape. bool is not host-shareable and is stored as u32.
func (s Shape) StorageWGSL() string {
	if s == Bool {
		return "u32"
	}
	return s.WGSL()
}

// Components returns the number of scalar lanes.
func (s Shape) Components() int {
	switch s {
	case Float, Int, Bool:
		return 1
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Rotation:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the defined shapes.
func (s Shape) Valid() bool {
	return s >= Float && s <= Rotation
}

// IsFloatLike reports whether s is a float scalar or float vector that
// takes part in elementwise arithmetic.
func (s Shape) IsFloatLike() bool {
	return s == Float || s == Vec2 || s == Vec3
}

// IsVector reports whether s is Vec2 or Vec3.
func (s Shape) IsVector() bool {
	return s == Vec2 || s == Vec3
}

// vectorShape returns the float shape with n lanes.
func vectorShape(n int) (Shape, bool) {
	switch n {
	case 1:
		return Float, true
	case 2:
		return Vec2, true
	case 3:
		return Vec3, true
	default:
		return ShapeInvalid, false
	}
}

// Dims is the dimensionality of a dispatch or of a spatial input.
type Dims uint8

const (
	Dims2 Dims = 2
	Dims3 Dims = 3
)

func (d Dims) String() string {
	switch d {
	case Dims2:
		return "2d"
	case Dims3:
		return "3d"
	default:
		return fmt.Sprintf("dims(%d)", uint8(d))
	}
}

// spatialDims maps a vector shape to its dimensionality.
func spatialDims(s Shape) (Dims, bool) {
	switch s {
	case Vec2:
		return Dims2, true
	case Vec3:
		return Dims3, true
	default:
		return 0, false
	}
}
