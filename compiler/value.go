package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Runtime values: constants and injected parameters
// ---------------------------------------------------------------------------

// Value is a runtime-bound parameter value. It is uploaded into the
// parameter buffer and never appears in generated source text.
type Value struct {
	Shape Shape      `cbor:"1,keyasint" json:"shape"`
	V     [4]float32 `cbor:"2,keyasint" json:"v"`
}

// Scalar returns a float value.
func Scalar(f float32) Value { return Value{Shape: Float, V: [4]float32{f}} }

// V2 returns a 2-vector value.
func V2(x, y float32) Value { return Value{Shape: Vec2, V: [4]float32{x, y}} }

// V3 returns a 3-vector value.
func V3(x, y, z float32) Value { return Value{Shape: Vec3, V: [4]float32{x, y, z}} }

// IntValue returns an integer value. Integers are stored as floats in the
// parameter buffer and converted in the kernel; use CheckedInt for values
// that may exceed MaxExactInt.
func IntValue(i int32) Value { return Value{Shape: Int, V: [4]float32{float32(i)}} }

// MaxExactInt is the largest magnitude an integer value may have. Beyond
// it the float32 parameter slot no longer holds every integer exactly.
const MaxExactInt = 1 << 24

// CheckedInt returns an integer value, or an error when i is outside
// ±MaxExactInt.
func CheckedInt(i int64) (Value, error) {
	if i > MaxExactInt || i < -MaxExactInt {
		return Value{}, fmt.Errorf("integer %d is outside ±%d", i, MaxExactInt)
	}
	return IntValue(int32(i)), nil
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value {
	v := Value{Shape: Bool}
	if b {
		v.V[0] = 1
	}
	return v
}

// Quat returns a rotation value from quaternion components.
func Quat(x, y, z, w float32) Value { return Value{Shape: Rotation, V: [4]float32{x, y, z, w}} }

// ValueOf converts a Go literal to a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case float32:
		return Scalar(x), nil
	case float64:
		return Scalar(float32(x)), nil
	case int:
		return CheckedInt(int64(x))
	case int32:
		return CheckedInt(int64(x))
	case int64:
		return CheckedInt(x)
	case bool:
		return BoolValue(x), nil
	case [2]float32:
		return V2(x[0], x[1]), nil
	case [3]float32:
		return V3(x[0], x[1], x[2]), nil
	case [4]float32:
		return Quat(x[0], x[1], x[2], x[3]), nil
	case []float64:
		switch len(x) {
		case 1:
			return Scalar(float32(x[0])), nil
		case 2:
			return V2(float32(x[0]), float32(x[1])), nil
		case 3:
			return V3(float32(x[0]), float32(x[1]), float32(x[2])), nil
		case 4:
			return Quat(float32(x[0]), float32(x[1]), float32(x[2]), float32(x[3])), nil
		}
		return Value{}, fmt.Errorf("cannot convert %d-element list to a value", len(x))
	default:
		return Value{}, fmt.Errorf("cannot convert %T to a value", v)
	}
}

func (v Value) String() string {
	switch v.Shape {
	case Float:
		return fmt.Sprintf("%g", v.V[0])
	case Int:
		return fmt.Sprintf("%d", int32(v.V[0]))
	case Bool:
		return fmt.Sprintf("%t", v.V[0] != 0)
	case Vec2:
		return fmt.Sprintf("(%g, %g)", v.V[0], v.V[1])
	case Vec3:
		return fmt.Sprintf("(%g, %g, %g)", v.V[0], v.V[1], v.V[2])
	case Rotation:
		return fmt.Sprintf("quat(%g, %g, %g, %g)", v.V[0], v.V[1], v.V[2], v.V[3])
	default:
		return "invalid"
	}
}

// Injector resolves injected parameter names to values at emit time.
type Injector interface {
	Lookup(name string) (Value, bool)
}

// MapInjector is an Injector backed by a map.
type MapInjector map[string]Value

// Lookup implements Injector.
func (m MapInjector) Lookup(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}
