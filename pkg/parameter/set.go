package parameter

import (
	"fmt"
	"io"
	"strings"
)

// Setter is the typed write interface shared by modules, parameter sets and
// map insertions.
type Setter interface {
	SetParam(name string, v any) error
	SetStringVector(name string, v []string) error
	SetFloatVector(name string, v []float64) error
	SetIntVector(name string, v []int) error
	ClearVector(name string) error
	SetVector2(name string, x, y float64) error
	SetVector3(name string, x, y, z float64) error
}

// Set is an ordered collection of declared parameters.
// A Set is not safe for concurrent use.
type Set struct {
	params []*Param
	maps   map[string]*MapParam
	index  map[string]*Param
	err    error
}

// NewSet creates an empty parameter set.
func NewSet() *Set {
	return &Set{
		maps:  make(map[string]*MapParam),
		index: make(map[string]*Param),
	}
}

func (s *Set) declare(p *Param) *Param {
	if s.index == nil {
		s.index = make(map[string]*Param)
		s.maps = make(map[string]*MapParam)
	}
	if _, exists := s.index[p.name]; exists {
		if s.err == nil {
			s.err = fmt.Errorf("%w: %s", ErrDuplicate, p.name)
		}
		return p
	}
	s.params = append(s.params, p)
	s.index[p.name] = p
	return p
}

// Bool declares a boolean parameter bound to target.
func (s *Set) Bool(target *bool, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeBool, target, opts))
}

// Int declares an integer parameter bound to target.
func (s *Set) Int(target *int, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeInt, target, opts))
}

// Float declares a float parameter bound to target.
func (s *Set) Float(target *float64, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeFloat, target, opts))
}

// String declares a string parameter bound to target.
func (s *Set) String(target *string, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeString, target, opts))
}

// IntVector declares a "vector of int" parameter.
func (s *Set) IntVector(target *[]int, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeIntVector, target, opts))
}

// FloatVector declares a "vector of float" parameter.
func (s *Set) FloatVector(target *[]float64, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeFloatVector, target, opts))
}

// StringVector declares a "vector of string" parameter.
func (s *Set) StringVector(target *[]string, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeStringVector, target, opts))
}

// StringList declares a "list of string" parameter.
func (s *Set) StringList(target *[]string, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeStringList, target, opts))
}

// Vector2 declares a "2-vector" parameter.
func (s *Set) Vector2(target *Vector2, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeVector2, target, opts))
}

// Vector3 declares a "3-vector" parameter.
func (s *Set) Vector3(target *Vector3, name string, opts ...Option) *Param {
	return s.declare(newParam(name, TypeVector3, target, opts))
}

// Map declares a map parameter. Columns are added on the returned MapParam.
func (s *Set) Map(name, keyName, defaultKey string, opts ...Option) *MapParam {
	m := newMapParam(name, keyName, defaultKey, opts)
	s.declare(m.Param)
	if s.maps == nil {
		s.maps = make(map[string]*MapParam)
	}
	if _, exists := s.maps[name]; !exists {
		s.maps[name] = m
	}
	return m
}

// Err returns the first declaration error, if any.
func (s *Set) Err() error {
	return s.err
}

// Len returns the number of declared parameters.
func (s *Set) Len() int {
	return len(s.params)
}

// Descriptors returns the parameters in declaration order. Map parameters are
// returned as MapDescriptor.
func (s *Set) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(s.params))
	for _, p := range s.params {
		out = append(out, s.describe(p))
	}
	return out
}

// Lookup returns the descriptor of the named parameter.
func (s *Set) Lookup(name string) (Descriptor, bool) {
	p, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.describe(p), true
}

// Value returns the current value of the named parameter.
func (s *Set) Value(name string) (Value, error) {
	p, err := s.get(name)
	if err != nil {
		return Value{}, err
	}
	return p.Value(), nil
}

// MapParam returns the named map parameter.
func (s *Set) MapParam(name string) (*MapParam, error) {
	m, ok := s.maps[name]
	if !ok {
		if _, declared := s.index[name]; declared {
			return nil, fmt.Errorf("%w: %q is not a map parameter", ErrTypeMismatch, name)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return m, nil
}

func (s *Set) describe(p *Param) Descriptor {
	if m, ok := s.maps[p.name]; ok && m.Param == p {
		return m
	}
	return p
}

func (s *Set) get(name string) (*Param, error) {
	p, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// SetParam writes a scalar. Integers are widened for float parameters.
func (s *Set) SetParam(name string, v any) error {
	p, err := s.get(name)
	if err != nil {
		return err
	}
	return p.setScalar(v)
}

func (s *Set) SetStringVector(name string, v []string) error {
	p, err := s.get(name)
	if err != nil {
		return err
	}
	return p.setStrings(v)
}

func (s *Set) SetFloatVector(name string, v []float64) error {
	p, err := s.get(name)
	if err != nil {
		return err
	}
	return p.setFloats(v)
}

func (s *Set) SetIntVector(name string, v []int) error {
	p, err := s.get(name)
	if err != nil {
		return err
	}
	return p.setInts(v)
}

// ClearVector empties a sequence parameter.
func (s *Set) ClearVector(name string) error {
	p, err := s.get(name)
	if err != nil {
		return err
	}
	return p.clear()
}

func (s *Set) SetVector2(name string, x, y float64) error {
	p, err := s.get(name)
	if err != nil {
		return err
	}
	return p.setVector2(x, y)
}

func (s *Set) SetVector3(name string, x, y, z float64) error {
	p, err := s.get(name)
	if err != nil {
		return err
	}
	return p.setVector3(x, y, z)
}

// InsertMap adds one entry to the named map parameter.
func (s *Set) InsertMap(name, key string, fill func(Setter) error) error {
	m, err := s.MapParam(name)
	if err != nil {
		return err
	}
	return m.Insert(key, fill)
}

// Print writes one line per parameter in declaration order.
func (s *Set) Print(w io.Writer) error {
	for _, p := range s.params {
		if m, ok := s.maps[p.name]; ok && m.Param == p {
			if err := m.print(w); err != nil {
				return err
			}
			continue
		}
		if err := printLine(w, "", p.name, p.ValueString(), p.unitName); err != nil {
			return err
		}
	}
	return nil
}

func printLine(w io.Writer, indent, name, value, unit string) error {
	line := indent + name + ": " + value
	if unit != "" {
		line += " " + unit
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(line, " "))
	return err
}
