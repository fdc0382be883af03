package parameter

import (
	"errors"
	"fmt"
)

// Type is the type tag reported by a parameter descriptor.
type Type string

const (
	TypeBool         Type = "bool"
	TypeInt          Type = "int"
	TypeFloat        Type = "float"
	TypeString       Type = "string"
	TypeIntVector    Type = "vector of int"
	TypeFloatVector  Type = "vector of float"
	TypeStringVector Type = "vector of string"
	TypeStringList   Type = "list of string"
	TypeVector2      Type = "2-vector"
	TypeVector3      Type = "3-vector"
	TypeMap          Type = "map"
)

// IsVector returns true for the sequence types that accept ClearVector.
func (t Type) IsVector() bool {
	switch t {
	case TypeIntVector, TypeFloatVector, TypeStringVector, TypeStringList:
		return true
	}
	return false
}

// Validate checks that the tag is one of the known parameter types.
func (t Type) Validate() error {
	switch t {
	case TypeBool, TypeInt, TypeFloat, TypeString,
		TypeIntVector, TypeFloatVector, TypeStringVector, TypeStringList,
		TypeVector2, TypeVector3, TypeMap:
		return nil
	default:
		return fmt.Errorf("invalid parameter type: %s", t)
	}
}

// Vector2 is a two-component geometric vector.
type Vector2 struct {
	X, Y float64
}

// Vector3 is a three-component geometric vector.
type Vector3 struct {
	X, Y, Z float64
}

// Vec is a dynamically sized vector literal as produced by scripts and
// pipeline files. FromAny maps it onto Vector2 or Vector3 by its length.
type Vec []float64

// NewVec builds a Vec from its components.
func NewVec(components ...float64) Vec {
	return Vec(components)
}

var (
	// ErrNotFound is returned when a parameter name is not declared.
	ErrNotFound = errors.New("parameter not found")

	// ErrTypeMismatch is returned when a value cannot be stored in the parameter's type.
	ErrTypeMismatch = errors.New("parameter type mismatch")

	// ErrUnsupportedType is returned when a dynamic value has no parameter shape.
	ErrUnsupportedType = errors.New("unsupported parameter value type")

	// ErrDuplicate is returned when a parameter name is declared twice.
	ErrDuplicate = errors.New("parameter already defined")
)
