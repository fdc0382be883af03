package engine

import (
	"fmt"
	"io"

	"github.com/openfroyo/anlchain/pkg/parameter"
)

// DefineFunc declares the parameters of a module.
type DefineFunc func(s *parameter.Set)

// BasicModule implements Module with no-op hooks. Concrete modules embed it
// and override the hooks they need:
//
//	type Counter struct {
//	    engine.BasicModule
//	    limit int
//	}
//
//	func NewCounter() *Counter {
//	    m := &Counter{}
//	    m.BasicModule = engine.NewBasicModule("Counter", "1.0", func(s *parameter.Set) {
//	        s.Int(&m.limit, "limit")
//	    })
//	    return m
//	}
type BasicModule struct {
	name        string
	version     string
	id          string
	description string
	off         bool
	define      DefineFunc
	params      *parameter.Set
}

// NewBasicModule creates the embeddable base of a module class.
func NewBasicModule(name, version string, define DefineFunc) BasicModule {
	return BasicModule{name: name, version: version, define: define}
}

func (m *BasicModule) ModuleName() string    { return m.name }
func (m *BasicModule) ModuleVersion() string { return m.version }

// ModuleID returns the identity, defaulting to the class name.
func (m *BasicModule) ModuleID() string {
	if m.id == "" {
		return m.name
	}
	return m.id
}

func (m *BasicModule) SetModuleID(id string) { m.id = id }

func (m *BasicModule) ModuleDescription() string { return m.description }

func (m *BasicModule) SetModuleDescription(description string) { m.description = description }

func (m *BasicModule) IsOn() bool    { return !m.off }
func (m *BasicModule) SetOn(on bool) { m.off = !on }

// Define runs the declaration function once.
func (m *BasicModule) Define() error {
	if m.params != nil {
		return m.params.Err()
	}
	m.params = parameter.NewSet()
	if m.define != nil {
		m.define(m.params)
	}
	if err := m.params.Err(); err != nil {
		return fmt.Errorf("module %s: %w", m.ModuleID(), err)
	}
	return nil
}

// ParameterSet returns the declared parameters, defining them if needed.
func (m *BasicModule) ParameterSet() *parameter.Set {
	if m.params == nil {
		_ = m.Define()
	}
	return m.params
}

func (m *BasicModule) Parameters() []parameter.Descriptor {
	return m.ParameterSet().Descriptors()
}

func (m *BasicModule) SetParam(name string, v any) error {
	return m.ParameterSet().SetParam(name, v)
}

func (m *BasicModule) SetStringVector(name string, v []string) error {
	return m.ParameterSet().SetStringVector(name, v)
}

func (m *BasicModule) SetFloatVector(name string, v []float64) error {
	return m.ParameterSet().SetFloatVector(name, v)
}

func (m *BasicModule) SetIntVector(name string, v []int) error {
	return m.ParameterSet().SetIntVector(name, v)
}

func (m *BasicModule) ClearVector(name string) error {
	return m.ParameterSet().ClearVector(name)
}

func (m *BasicModule) SetVector2(name string, x, y float64) error {
	return m.ParameterSet().SetVector2(name, x, y)
}

func (m *BasicModule) SetVector3(name string, x, y, z float64) error {
	return m.ParameterSet().SetVector3(name, x, y, z)
}

func (m *BasicModule) InsertMap(name, key string, fill func(parameter.Setter) error) error {
	return m.ParameterSet().InsertMap(name, key, fill)
}

func (m *BasicModule) PrintParameters(w io.Writer) error {
	return m.ParameterSet().Print(w)
}

// Communicate prompts for every parameter in declaration order. An empty
// answer keeps the current value; map parameters are skipped.
func (m *BasicModule) Communicate(in LineReader, out io.Writer) Status {
	set := m.ParameterSet()
	for _, d := range set.Descriptors() {
		if _, isMap := d.(parameter.MapDescriptor); isMap {
			continue
		}
		for {
			fmt.Fprintf(out, "%s [%s]: ", d.Name(), d.ValueString())
			line, ok := in.ReadLine()
			if !ok {
				return StatusQuitError
			}
			if line == "" {
				break
			}
			v, err := parameter.Parse(parameter.Type(d.TypeName()), line)
			if err == nil {
				err = parameter.Apply(set, d.Name(), v)
			}
			if err == nil {
				break
			}
			fmt.Fprintf(out, "%v\n", err)
		}
	}
	return StatusOK
}

func (m *BasicModule) Startup() Status    { return StatusOK }
func (m *BasicModule) Prepare() Status    { return StatusOK }
func (m *BasicModule) Initialize() Status { return StatusOK }
func (m *BasicModule) BeginRun() Status   { return StatusOK }
func (m *BasicModule) Analyze() Status    { return StatusOK }
func (m *BasicModule) EndRun() Status     { return StatusOK }
func (m *BasicModule) Exit() Status       { return StatusOK }
