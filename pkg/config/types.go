package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/engine"
)

// Pipeline is a declarative pipeline definition read from a CUE or YAML file.
type Pipeline struct {
	// Name is the application name.
	Name string `json:"name" yaml:"name" validate:"required"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// NumLoop is the event count; -1 runs until a module quits and 0 leaves
	// the choice to the caller.
	NumLoop int `json:"num_loop,omitempty" yaml:"num_loop,omitempty" validate:"gte=-1"`

	// DisplayFrequency of 0 picks one from NumLoop.
	DisplayFrequency int `json:"display_frequency,omitempty" yaml:"display_frequency,omitempty" validate:"gte=0"`

	ThreadMode *bool `json:"thread_mode,omitempty" yaml:"thread_mode,omitempty"`

	// Namespaces are searched in order when resolving module classes.
	Namespaces []string `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`

	Modules []ModuleConfig `json:"modules" yaml:"modules" validate:"required,min=1,dive"`
}

// ModuleConfig is one module of a pipeline definition.
type ModuleConfig struct {
	Class       string      `json:"class" yaml:"class" validate:"required"`
	ID          string      `json:"id,omitempty" yaml:"id,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	On          *bool       `json:"on,omitempty" yaml:"on,omitempty"`
	Params      ParamList   `json:"params,omitempty" yaml:"params,omitempty" validate:"dive"`
	Maps        []MapConfig `json:"maps,omitempty" yaml:"maps,omitempty" validate:"dive"`
}

// MapConfig is one entry inserted into a map parameter.
type MapConfig struct {
	Name   string    `json:"name" yaml:"name" validate:"required"`
	Key    string    `json:"key" yaml:"key" validate:"required"`
	Values ParamList `json:"values,omitempty" yaml:"values,omitempty" validate:"dive"`
}

// ParamList keeps parameter values in the order they appear in the file.
// A 2- or 3-vector is written as {vec: [x, y, z]}.
type ParamList chain.Params

// ParsedConfig is the result of parsing a pipeline definition.
type ParsedConfig struct {
	Pipeline    *Pipeline         `json:"pipeline,omitempty"`
	SourceFiles []string          `json:"source_files"`
	ParsedAt    time.Time         `json:"parsed_at"`
	Errors      []ValidationError `json:"errors,omitempty"`
}

// HasErrors reports whether parsing produced any error-severity entry.
func (pc *ParsedConfig) HasErrors() bool {
	for _, e := range pc.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err joins the error-severity entries into one error, or returns nil.
func (pc *ParsedConfig) Err() error {
	var msgs []string
	for _, e := range pc.Errors {
		if e.Severity == SeverityError {
			msgs = append(msgs, e.Error())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid pipeline definition: %s", strings.Join(msgs, "; "))
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the path to the offending value (e.g., "pipeline.modules[0].class").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

func (e ValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Initializers converts the module list into chain initializers. A module
// switched off is turned off by its setup function once parameters are
// committed.
func (p *Pipeline) Initializers() []*chain.Initializer {
	inits := make([]*chain.Initializer, 0, len(p.Modules))
	for _, m := range p.Modules {
		init := chain.NewInitializer(m.Class, m.ID)
		init.Description = m.Description
		init.Params = chain.Params(m.Params)
		for _, entry := range m.Maps {
			init.WithMap(entry.Name, entry.Key, chain.Params(entry.Values))
		}
		if m.On != nil && !*m.On {
			init.Setup = func(mod engine.Module) error {
				mod.SetOn(false)
				return nil
			}
		}
		inits = append(inits, init)
	}
	return inits
}

// App builds an application whose setup adds the named namespaces and chains
// every module. Namespace names are looked up in available.
func (p *Pipeline) App(available map[string]*chain.Namespace, opts ...chain.Option) (*chain.App, error) {
	namespaces := make([]*chain.Namespace, 0, len(p.Namespaces))
	for _, name := range p.Namespaces {
		ns, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("pipeline %s: unknown namespace %q", p.Name, name)
		}
		namespaces = append(namespaces, ns)
	}
	if p.ThreadMode != nil {
		opts = append(opts, chain.WithThreadMode(*p.ThreadMode))
	}

	app := chain.NewApp(p.Name, func(app *chain.App) error {
		for _, ns := range namespaces {
			app.AddNamespace(ns)
		}
		return app.ChainWithParameters(p.Initializers()...)
	}, opts...)
	return app, nil
}
