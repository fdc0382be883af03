package chain

import (
	"github.com/openfroyo/anlchain/pkg/engine"
)

// Param is one named parameter value. Value may be any shape accepted by
// parameter.FromAny.
type Param struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Value any    `json:"value" yaml:"value"`
}

// P is shorthand for a Param literal.
func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// Params is an ordered list of parameter values. Order is preserved when the
// values are committed.
type Params []Param

// MapEntry is one pending insertion into a map parameter.
type MapEntry struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Key    string `json:"key" yaml:"key" validate:"required"`
	Values Params `json:"values" yaml:"values"`
}

// Initializer describes a module to be chained later together with the
// parameter values and setup function it should receive.
type Initializer struct {
	// Class is resolved through the chain namespaces when Module and Factory
	// are both nil.
	Class string `json:"class" yaml:"class"`

	// ID overrides the default identity.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Factory creates the instance directly, bypassing class resolution.
	Factory Factory `json:"-" yaml:"-"`

	// Module is a ready instance.
	Module engine.Module `json:"-" yaml:"-"`

	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Params      Params     `json:"params,omitempty" yaml:"params,omitempty"`
	Maps        []MapEntry `json:"maps,omitempty" yaml:"maps,omitempty"`
	Setup       SetupFunc  `json:"-" yaml:"-"`
}

// NewInitializer creates an initializer for a class with an optional identity.
func NewInitializer(class string, id ...string) *Initializer {
	init := &Initializer{Class: class}
	if len(id) > 0 {
		init.ID = id[0]
	}
	return init
}

// With appends parameter values and replaces the setup function.
func (i *Initializer) With(params Params, setup SetupFunc) *Initializer {
	i.Params = append(i.Params, params...)
	if setup != nil {
		i.Setup = setup
	}
	return i
}

// WithID sets the identity.
func (i *Initializer) WithID(id string) *Initializer {
	i.ID = id
	return i
}

// WithMap appends one map insertion.
func (i *Initializer) WithMap(name, key string, values Params) *Initializer {
	i.Maps = append(i.Maps, MapEntry{Name: name, Key: key, Values: values})
	return i
}

func (i *Initializer) instantiate(r *Resolver) (engine.Module, error) {
	var m engine.Module
	switch {
	case i.Module != nil:
		m = i.Module
	case i.Factory != nil:
		m = i.Factory()
	default:
		factory, err := r.Resolve(i.Class)
		if err != nil {
			return nil, err
		}
		m = factory()
	}
	if i.ID != "" {
		m.SetModuleID(i.ID)
	}
	if i.Description != "" {
		m.SetModuleDescription(i.Description)
	}
	return m, nil
}
