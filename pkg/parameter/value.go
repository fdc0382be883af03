package parameter

import (
	"fmt"
	"strings"
)

// Kind identifies the shape carried by a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindStringVector
	KindFloatVector
	KindIntVector
	KindClearVector
	KindVector2
	KindVector3
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindStringVector:
		return "string vector"
	case KindFloatVector:
		return "float vector"
	case KindIntVector:
		return "int vector"
	case KindClearVector:
		return "clear vector"
	case KindVector2:
		return "2-vector"
	case KindVector3:
		return "3-vector"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a parameter value together with the shape it was written in.
// The zero Value is a nil scalar.
type Value struct {
	kind    Kind
	scalar  any
	strings []string
	floats  []float64
	ints    []int
	vec     [3]float64
}

// Scalar wraps a bool, integer, float or string.
func Scalar(v any) Value { return Value{kind: KindScalar, scalar: v} }

// StringVector wraps a sequence of strings.
func StringVector(v []string) Value {
	return Value{kind: KindStringVector, strings: append([]string(nil), v...)}
}

// FloatVector wraps a sequence of floats.
func FloatVector(v []float64) Value {
	return Value{kind: KindFloatVector, floats: append([]float64(nil), v...)}
}

// IntVector wraps a sequence of integers.
func IntVector(v []int) Value {
	return Value{kind: KindIntVector, ints: append([]int(nil), v...)}
}

// ClearVector empties a sequence parameter of any element type.
func ClearVector() Value { return Value{kind: KindClearVector} }

// Vector2Value wraps a two-component vector.
func Vector2Value(x, y float64) Value {
	return Value{kind: KindVector2, vec: [3]float64{x, y, 0}}
}

// Vector3Value wraps a three-component vector.
func Vector3Value(x, y, z float64) Value {
	return Value{kind: KindVector3, vec: [3]float64{x, y, z}}
}

func (v Value) Kind() Kind          { return v.kind }
func (v Value) Scalar() any         { return v.scalar }
func (v Value) Strings() []string   { return v.strings }
func (v Value) Floats() []float64   { return v.floats }
func (v Value) Ints() []int         { return v.ints }
func (v Value) Vector2() Vector2    { return Vector2{X: v.vec[0], Y: v.vec[1]} }
func (v Value) Vector3() Vector3    { return Vector3{X: v.vec[0], Y: v.vec[1], Z: v.vec[2]} }
func (v Value) IsClear() bool       { return v.kind == KindClearVector }
func (v Value) IsVectorShape() bool { return v.kind >= KindStringVector && v.kind <= KindClearVector }

// String renders the value for log output.
func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return fmt.Sprint(v.scalar)
	case KindStringVector:
		return "[" + strings.Join(v.strings, " ") + "]"
	case KindFloatVector:
		return fmt.Sprint(v.floats)
	case KindIntVector:
		return fmt.Sprint(v.ints)
	case KindClearVector:
		return "[]"
	case KindVector2:
		return fmt.Sprintf("(%g, %g)", v.vec[0], v.vec[1])
	case KindVector3:
		return fmt.Sprintf("(%g, %g, %g)", v.vec[0], v.vec[1], v.vec[2])
	}
	return ""
}

// FromAny classifies a dynamically typed value.
//
// A Vec of length 2 or 3 becomes a geometric vector. A slice is typed by its
// first element: strings, floats and integers give the matching vector kind,
// an empty slice gives ClearVector, anything else fails with
// ErrUnsupportedType. Every other bool, integer, float or string is a Scalar.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case Vec:
		return fromVec(x)
	case Vector2:
		return Vector2Value(x.X, x.Y), nil
	case Vector3:
		return Vector3Value(x.X, x.Y, x.Z), nil
	case []string:
		if len(x) == 0 {
			return ClearVector(), nil
		}
		return StringVector(x), nil
	case []float64:
		if len(x) == 0 {
			return ClearVector(), nil
		}
		return FloatVector(x), nil
	case []int:
		if len(x) == 0 {
			return ClearVector(), nil
		}
		return IntVector(x), nil
	case []any:
		return fromSlice(x)
	case bool, string, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return Scalar(x), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func fromVec(v Vec) (Value, error) {
	switch len(v) {
	case 2:
		return Vector2Value(v[0], v[1]), nil
	case 3:
		return Vector3Value(v[0], v[1], v[2]), nil
	default:
		return Value{}, fmt.Errorf("%w: vector of %d components", ErrUnsupportedType, len(v))
	}
}

func fromSlice(xs []any) (Value, error) {
	if len(xs) == 0 {
		return ClearVector(), nil
	}

	switch xs[0].(type) {
	case string:
		out := make([]string, len(xs))
		for i, e := range xs {
			s, ok := e.(string)
			if !ok {
				return Value{}, fmt.Errorf("%w: element %d of string vector is %T", ErrUnsupportedType, i, e)
			}
			out[i] = s
		}
		return StringVector(out), nil
	case float32, float64:
		out := make([]float64, len(xs))
		for i, e := range xs {
			f, ok := toFloat(e)
			if !ok {
				return Value{}, fmt.Errorf("%w: element %d of float vector is %T", ErrUnsupportedType, i, e)
			}
			out[i] = f
		}
		return FloatVector(out), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		out := make([]int, len(xs))
		for i, e := range xs {
			n, ok := toInt(e)
			if !ok {
				return Value{}, fmt.Errorf("%w: element %d of int vector is %T", ErrUnsupportedType, i, e)
			}
			out[i] = n
		}
		return IntVector(out), nil
	default:
		return Value{}, fmt.Errorf("%w: vector of %T", ErrUnsupportedType, xs[0])
	}
}

// Apply writes v into the named parameter of s using the setter that matches
// its kind.
func Apply(s Setter, name string, v Value) error {
	switch v.kind {
	case KindScalar:
		return s.SetParam(name, v.scalar)
	case KindStringVector:
		return s.SetStringVector(name, v.strings)
	case KindFloatVector:
		return s.SetFloatVector(name, v.floats)
	case KindIntVector:
		return s.SetIntVector(name, v.ints)
	case KindClearVector:
		return s.ClearVector(name)
	case KindVector2:
		return s.SetVector2(name, v.vec[0], v.vec[1])
	case KindVector3:
		return s.SetVector3(name, v.vec[0], v.vec[1], v.vec[2])
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, v.kind)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if n, ok := toInt(v); ok {
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint:
		return int(x), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return int(x), true
	}
	return 0, false
}
