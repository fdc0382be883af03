package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/openfroyo/anlchain/pkg/parameter"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in pipeline
// schema.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	if err := sr.RegisterSchema("pipeline", builtinPipelineSchema); err != nil {
		panic(err)
	}
	return sr
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Definition returns a definition such as "#Pipeline" from a named schema.
func (sr *SchemaRegistry) Definition(schemaName, def string) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}
	v := schema.LookupPath(cue.ParsePath(def))
	if !v.Exists() {
		return cue.Value{}, fmt.Errorf("schema %s has no definition %s", schemaName, def)
	}
	return v, nil
}

// ValidateAgainstSchema validates Go data against a definition of a schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName, def string, data any) error {
	schema, err := sr.Definition(schemaName, def)
	if err != nil {
		return err
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidatePipeline validates a decoded pipeline against #Pipeline.
func (sr *SchemaRegistry) ValidatePipeline(ctx context.Context, p *Pipeline) error {
	return sr.ValidateAgainstSchema(ctx, "pipeline", "#Pipeline", pipelineData(p))
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// pipelineData converts a pipeline into plain maps and slices with the field
// names the schema uses.
func pipelineData(p *Pipeline) map[string]any {
	modules := make([]any, 0, len(p.Modules))
	for _, m := range p.Modules {
		mod := map[string]any{"class": m.Class}
		if m.ID != "" {
			mod["id"] = m.ID
		}
		if m.Description != "" {
			mod["description"] = m.Description
		}
		if m.On != nil {
			mod["on"] = *m.On
		}
		if len(m.Params) > 0 {
			mod["params"] = paramData(m.Params)
		}
		if len(m.Maps) > 0 {
			maps := make([]any, 0, len(m.Maps))
			for _, entry := range m.Maps {
				maps = append(maps, map[string]any{
					"name":   entry.Name,
					"key":    entry.Key,
					"values": paramData(entry.Values),
				})
			}
			mod["maps"] = maps
		}
		modules = append(modules, mod)
	}

	data := map[string]any{"name": p.Name, "modules": modules}
	if p.Description != "" {
		data["description"] = p.Description
	}
	if p.NumLoop != 0 {
		data["num_loop"] = p.NumLoop
	}
	if p.DisplayFrequency != 0 {
		data["display_frequency"] = p.DisplayFrequency
	}
	if p.ThreadMode != nil {
		data["thread_mode"] = *p.ThreadMode
	}
	if len(p.Namespaces) > 0 {
		data["namespaces"] = p.Namespaces
	}
	return data
}

func paramData(l ParamList) map[string]any {
	out := make(map[string]any, len(l))
	for _, p := range l {
		if vec, ok := p.Value.(parameter.Vec); ok {
			out[p.Name] = map[string]any{"vec": []float64(vec)}
			continue
		}
		out[p.Name] = p.Value
	}
	return out
}

// Built-in schema definitions

const builtinPipelineSchema = `
// Pipeline is an analysis chain definition.
#Pipeline: {
	// Name is the application name
	name: string & =~"^[A-Za-z_][A-Za-z0-9_]*$"

	description?: string

	// NumLoop is the event count, -1 for unbounded
	num_loop?: int & >=-1

	display_frequency?: int & >=0

	thread_mode?: bool

	// Namespaces are searched in order for module classes
	namespaces?: [...string]

	modules: [...#Module]
}

#Module: {
	class: string & =~"^[A-Za-z_][A-Za-z0-9_.]*$"

	// ID defaults to the class name
	id?: string & !=""

	description?: string

	on?: bool

	params?: {[string]: #Value}

	maps?: [...#MapEntry]
}

#MapEntry: {
	name:    string & !=""
	key:     string & !=""
	values?: {[string]: #Value}
}

#Scalar: bool | int | float | string

#Vec: {
	vec: [number, number] | [number, number, number]
}

#Value: #Scalar | [...#Scalar] | #Vec
`
