package parameter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MapParam is a keyed table parameter. Columns are declared with the same
// vocabulary as a Set and start every insertion at their declared default.
type MapParam struct {
	*Param
	keyName    string
	defaultKey string
	columns    *Set
	defaults   []any
	keys       []string
	rows       map[string]Row
}

func newMapParam(name, keyName, defaultKey string, opts []Option) *MapParam {
	p := &Param{name: name, typ: TypeMap, unit: 1.0}
	for _, opt := range opts {
		opt(p)
	}
	return &MapParam{
		Param:      p,
		keyName:    keyName,
		defaultKey: defaultKey,
		columns:    NewSet(),
		rows:       make(map[string]Row),
	}
}

func (m *MapParam) MapKeyName() string { return m.keyName }
func (m *MapParam) DefaultKey() string { return m.defaultKey }
func (m *MapParam) NumMapValues() int  { return m.columns.Len() }

// MapValue describes the i-th column.
func (m *MapParam) MapValue(i int) Descriptor {
	if i < 0 || i >= len(m.columns.params) {
		return nil
	}
	return m.columns.params[i]
}

// ValueString lists the inserted keys.
func (m *MapParam) ValueString() string {
	return strings.Join(m.keys, " ")
}

// DefaultString is the default key.
func (m *MapParam) DefaultString() string {
	if m.hasDefault {
		return m.defaultString
	}
	return m.defaultKey
}

func (m *MapParam) column(p *Param) *Param {
	before := m.columns.Len()
	m.columns.declare(p)
	if m.columns.Len() > before {
		m.defaults = append(m.defaults, p.snapshot())
	}
	return p
}

// Bool declares a boolean column.
func (m *MapParam) Bool(name string, def bool, opts ...Option) *Param {
	v := def
	return m.column(newParam(name, TypeBool, &v, opts))
}

// Int declares an integer column.
func (m *MapParam) Int(name string, def int, opts ...Option) *Param {
	v := def
	return m.column(newParam(name, TypeInt, &v, opts))
}

// Float declares a float column. def is given in display units.
func (m *MapParam) Float(name string, def float64, opts ...Option) *Param {
	v := def
	p := newParam(name, TypeFloat, &v, opts)
	v = def * p.unit
	if !p.hasDefault {
		p.defaultString = p.ValueString()
	}
	return m.column(p)
}

// String declares a string column.
func (m *MapParam) String(name string, def string, opts ...Option) *Param {
	v := def
	return m.column(newParam(name, TypeString, &v, opts))
}

// StringVector declares a "vector of string" column.
func (m *MapParam) StringVector(name string, def []string, opts ...Option) *Param {
	v := append([]string(nil), def...)
	return m.column(newParam(name, TypeStringVector, &v, opts))
}

// FloatVector declares a "vector of float" column.
func (m *MapParam) FloatVector(name string, def []float64, opts ...Option) *Param {
	v := append([]float64(nil), def...)
	return m.column(newParam(name, TypeFloatVector, &v, opts))
}

// IntVector declares a "vector of int" column.
func (m *MapParam) IntVector(name string, def []int, opts ...Option) *Param {
	v := append([]int(nil), def...)
	return m.column(newParam(name, TypeIntVector, &v, opts))
}

// Insert stores one entry. Columns are reset to their defaults, fill writes
// the supplied values and the resulting row replaces any previous row with
// the same key. A failing fill leaves the map unchanged.
func (m *MapParam) Insert(key string, fill func(Setter) error) error {
	if err := m.columns.Err(); err != nil {
		return err
	}
	for i, p := range m.columns.params {
		p.restore(m.defaults[i])
	}
	if fill != nil {
		if err := fill(m.columns); err != nil {
			return fmt.Errorf("map %s[%s]: %w", m.name, key, err)
		}
	}

	row := Row{values: make(map[string]any, len(m.columns.params))}
	for _, p := range m.columns.params {
		row.values[p.name] = p.snapshot()
	}
	if _, exists := m.rows[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.rows[key] = row
	return nil
}

// Keys returns the inserted keys in insertion order.
func (m *MapParam) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Row returns the entry stored under key.
func (m *MapParam) Row(key string) (Row, bool) {
	r, ok := m.rows[key]
	return r, ok
}

// Len returns the number of entries.
func (m *MapParam) Len() int {
	return len(m.keys)
}

func (m *MapParam) print(w io.Writer) error {
	if err := printLine(w, "", m.name, "("+strconv.Itoa(len(m.keys))+" entries)", ""); err != nil {
		return err
	}
	for _, key := range m.keys {
		if err := printLine(w, "  ", m.keyName, key, ""); err != nil {
			return err
		}
		row := m.rows[key]
		for i, p := range m.columns.params {
			p.restore(row.values[p.name])
			err := printLine(w, "    ", p.name, p.ValueString(), p.unitName)
			p.restore(m.defaults[i])
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Row is one map entry. Stored values are in internal units.
type Row struct {
	values map[string]any
}

// Get returns the raw stored value of a column.
func (r Row) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

func (r Row) Bool(name string) bool {
	b, _ := r.values[name].(bool)
	return b
}

func (r Row) Int(name string) int {
	n, _ := r.values[name].(int)
	return n
}

func (r Row) Float(name string) float64 {
	f, _ := r.values[name].(float64)
	return f
}

func (r Row) String(name string) string {
	s, _ := r.values[name].(string)
	return s
}

func (r Row) Strings(name string) []string {
	s, _ := r.values[name].([]string)
	return s
}

func (r Row) Floats(name string) []float64 {
	f, _ := r.values[name].([]float64)
	return f
}

func (r Row) Ints(name string) []int {
	n, _ := r.values[name].([]int)
	return n
}
