package parameter

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse converts text typed at a prompt into a Value for a parameter of the
// given type. Sequence elements and vector components are separated by
// whitespace; an empty sequence clears the parameter.
func Parse(typ Type, text string) (Value, error) {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)

	switch typ {
	case TypeBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a bool", ErrTypeMismatch, text)
		}
		return Scalar(b), nil
	case TypeInt:
		n, err := strconv.Atoi(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not an int", ErrTypeMismatch, text)
		}
		return Scalar(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a float", ErrTypeMismatch, text)
		}
		return Scalar(f), nil
	case TypeString:
		return Scalar(text), nil
	case TypeStringVector, TypeStringList:
		if len(fields) == 0 {
			return ClearVector(), nil
		}
		return StringVector(fields), nil
	case TypeIntVector:
		if len(fields) == 0 {
			return ClearVector(), nil
		}
		out := make([]int, len(fields))
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return Value{}, fmt.Errorf("%w: element %d %q is not an int", ErrTypeMismatch, i, f)
			}
			out[i] = n
		}
		return IntVector(out), nil
	case TypeFloatVector, TypeVector2, TypeVector3:
		out := make([]float64, len(fields))
		for i, f := range fields {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: element %d %q is not a float", ErrTypeMismatch, i, f)
			}
			out[i] = x
		}
		switch typ {
		case TypeVector2:
			if len(out) != 2 {
				return Value{}, fmt.Errorf("%w: 2-vector needs 2 components, got %d", ErrTypeMismatch, len(out))
			}
			return Vector2Value(out[0], out[1]), nil
		case TypeVector3:
			if len(out) != 3 {
				return Value{}, fmt.Errorf("%w: 3-vector needs 3 components, got %d", ErrTypeMismatch, len(out))
			}
			return Vector3Value(out[0], out[1], out[2]), nil
		}
		if len(out) == 0 {
			return ClearVector(), nil
		}
		return FloatVector(out), nil
	default:
		return Value{}, fmt.Errorf("%w: cannot parse %s parameters", ErrUnsupportedType, typ)
	}
}
