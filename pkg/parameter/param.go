package parameter

import (
	"fmt"
	"strconv"
	"strings"
)

// Descriptor is the read-only view of a declared parameter.
type Descriptor interface {
	Name() string
	TypeName() string
	UnitName() string
	ValueString() string
	DefaultString() string
	DefaultStrings() []string
	Description() string
}

// MapDescriptor is the descriptor of a map parameter. MapValue(i) describes
// the i-th column of a map entry.
type MapDescriptor interface {
	Descriptor
	MapKeyName() string
	DefaultKey() string
	NumMapValues() int
	MapValue(i int) Descriptor
}

// Option customizes a parameter at declaration time.
type Option func(*Param)

// WithUnit attaches a unit. Values written to the parameter are multiplied by
// scale and displayed divided by it.
func WithUnit(scale float64, name string) Option {
	return func(p *Param) {
		if scale != 0 {
			p.unit = scale
		}
		p.unitName = name
	}
}

// WithDescription sets the human readable description.
func WithDescription(description string) Option {
	return func(p *Param) { p.description = description }
}

// WithDefaultString overrides the default string reported by the descriptor.
// For string vectors the elements are the whitespace separated fields of s.
func WithDefaultString(s string) Option {
	return func(p *Param) {
		p.defaultString = s
		p.defaultStrings = strings.Fields(s)
		p.hasDefault = true
	}
}

// Param is a single declared parameter bound to a Go variable.
type Param struct {
	name           string
	typ            Type
	unit           float64
	unitName       string
	description    string
	defaultString  string
	defaultStrings []string
	hasDefault     bool
	target         any
}

func newParam(name string, typ Type, target any, opts []Option) *Param {
	p := &Param{name: name, typ: typ, unit: 1.0, target: target}
	for _, opt := range opts {
		opt(p)
	}
	if !p.hasDefault {
		p.defaultString = p.ValueString()
		if t, ok := target.(*[]string); ok {
			p.defaultStrings = append([]string{}, *t...)
		}
	}
	return p
}

func (p *Param) Name() string          { return p.name }
func (p *Param) Type() Type            { return p.typ }
func (p *Param) TypeName() string      { return string(p.typ) }
func (p *Param) UnitName() string      { return p.unitName }
func (p *Param) Unit() float64         { return p.unit }
func (p *Param) Description() string   { return p.description }
func (p *Param) DefaultString() string { return p.defaultString }

// DefaultStrings returns the default elements of a string vector. Unlike
// DefaultString it keeps elements that contain spaces or are empty.
func (p *Param) DefaultStrings() []string {
	return append([]string(nil), p.defaultStrings...)
}

// SetDescription replaces the description after declaration.
func (p *Param) SetDescription(description string) { p.description = description }

// ValueString renders the current value in display units.
func (p *Param) ValueString() string {
	switch t := p.target.(type) {
	case *bool:
		return strconv.FormatBool(*t)
	case *int:
		return strconv.Itoa(*t)
	case *float64:
		return FormatFloat(*t / p.unit)
	case *string:
		return *t
	case *[]int:
		parts := make([]string, len(*t))
		for i, n := range *t {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, " ")
	case *[]float64:
		parts := make([]string, len(*t))
		for i, f := range *t {
			parts[i] = FormatFloat(f / p.unit)
		}
		return strings.Join(parts, " ")
	case *[]string:
		return strings.Join(*t, " ")
	case *Vector2:
		return FormatFloat(t.X/p.unit) + " " + FormatFloat(t.Y/p.unit)
	case *Vector3:
		return FormatFloat(t.X/p.unit) + " " + FormatFloat(t.Y/p.unit) + " " + FormatFloat(t.Z/p.unit)
	}
	return ""
}

// Value returns the current value in display units as a Value, so that
// Apply(set, name, p.Value()) is a no-op.
func (p *Param) Value() Value {
	switch t := p.target.(type) {
	case *bool:
		return Scalar(*t)
	case *int:
		return Scalar(*t)
	case *float64:
		return Scalar(*t / p.unit)
	case *string:
		return Scalar(*t)
	case *[]int:
		return IntVector(*t)
	case *[]float64:
		out := make([]float64, len(*t))
		for i, f := range *t {
			out[i] = f / p.unit
		}
		return FloatVector(out)
	case *[]string:
		return StringVector(*t)
	case *Vector2:
		return Vector2Value(t.X/p.unit, t.Y/p.unit)
	case *Vector3:
		return Vector3Value(t.X/p.unit, t.Y/p.unit, t.Z/p.unit)
	}
	return Value{}
}

func (p *Param) mismatch(what string) error {
	return fmt.Errorf("%w: cannot set %s on %s parameter %q", ErrTypeMismatch, what, p.typ, p.name)
}

func (p *Param) setScalar(v any) error {
	switch t := p.target.(type) {
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return p.mismatch(fmt.Sprintf("%T", v))
		}
		*t = b
	case *int:
		n, ok := toInt(v)
		if !ok {
			return p.mismatch(fmt.Sprintf("%T", v))
		}
		*t = n
	case *float64:
		f, ok := toFloat(v)
		if !ok {
			return p.mismatch(fmt.Sprintf("%T", v))
		}
		*t = f * p.unit
	case *string:
		s, ok := v.(string)
		if !ok {
			return p.mismatch(fmt.Sprintf("%T", v))
		}
		*t = s
	default:
		return p.mismatch(fmt.Sprintf("scalar %T", v))
	}
	return nil
}

func (p *Param) setStrings(v []string) error {
	t, ok := p.target.(*[]string)
	if !ok {
		return p.mismatch("string vector")
	}
	*t = append([]string(nil), v...)
	return nil
}

func (p *Param) setFloats(v []float64) error {
	t, ok := p.target.(*[]float64)
	if !ok {
		return p.mismatch("float vector")
	}
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = f * p.unit
	}
	*t = out
	return nil
}

func (p *Param) setInts(v []int) error {
	switch t := p.target.(type) {
	case *[]int:
		*t = append([]int(nil), v...)
		return nil
	case *[]float64:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n) * p.unit
		}
		*t = out
		return nil
	}
	return p.mismatch("int vector")
}

func (p *Param) clear() error {
	switch t := p.target.(type) {
	case *[]int:
		*t = []int{}
	case *[]float64:
		*t = []float64{}
	case *[]string:
		*t = []string{}
	default:
		return p.mismatch("clear")
	}
	return nil
}

func (p *Param) setVector2(x, y float64) error {
	t, ok := p.target.(*Vector2)
	if !ok {
		return p.mismatch("2-vector")
	}
	*t = Vector2{X: x * p.unit, Y: y * p.unit}
	return nil
}

func (p *Param) setVector3(x, y, z float64) error {
	t, ok := p.target.(*Vector3)
	if !ok {
		return p.mismatch("3-vector")
	}
	*t = Vector3{X: x * p.unit, Y: y * p.unit, Z: z * p.unit}
	return nil
}

// snapshot copies the current stored value, used by map rows.
func (p *Param) snapshot() any {
	switch t := p.target.(type) {
	case *bool:
		return *t
	case *int:
		return *t
	case *float64:
		return *t
	case *string:
		return *t
	case *[]int:
		return append([]int(nil), *t...)
	case *[]float64:
		return append([]float64(nil), *t...)
	case *[]string:
		return append([]string(nil), *t...)
	case *Vector2:
		return *t
	case *Vector3:
		return *t
	}
	return nil
}

// restore writes a value previously produced by snapshot.
func (p *Param) restore(v any) {
	switch t := p.target.(type) {
	case *bool:
		*t = v.(bool)
	case *int:
		*t = v.(int)
	case *float64:
		*t = v.(float64)
	case *string:
		*t = v.(string)
	case *[]int:
		*t = append([]int(nil), v.([]int)...)
	case *[]float64:
		*t = append([]float64(nil), v.([]float64)...)
	case *[]string:
		*t = append([]string(nil), v.([]string)...)
	case *Vector2:
		*t = v.(Vector2)
	case *Vector3:
		*t = v.(Vector3)
	}
}

// FormatFloat renders f in the shortest form that parses back to f.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
