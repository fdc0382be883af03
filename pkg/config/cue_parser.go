package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/anlchain/pkg/chain"
)

// CUEParser parses and validates CUE pipeline definitions. The pipeline is
// the top-level "pipeline" field and must satisfy #Pipeline.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	registry := NewSchemaRegistry()
	return &CUEParser{
		ctx:            registry.ctx,
		schemaRegistry: registry,
		validator:      validator.New(),
	}
}

// Parse parses CUE configuration from the given files or package directories.
// Definitions spread over several sources are unified. Problems in the
// definition are reported in ParsedConfig.Errors; the error return is for
// sources that cannot be read at all.
func (cp *CUEParser) Parse(ctx context.Context, sources []string) (*ParsedConfig, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var val cue.Value
		var errs []ValidationError
		if info.IsDir() {
			var files []string
			val, files, errs = cp.loadDirectory(source)
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs = cp.loadFile(source)
			sourceFiles = append(sourceFiles, source)
		}
		parseErrors = append(parseErrors, errs...)
		if val.Exists() {
			if cueValue.Exists() {
				cueValue = cueValue.Unify(val)
			} else {
				cueValue = val
			}
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	if err := cueValue.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractConfig(cueValue, sourceFiles)
}

// ParseInline parses inline CUE content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedConfig, error) {
	val := cp.ctx.CompileString(content, cue.Filename("inline.cue"))
	if err := val.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractConfig(val, []string{"inline"})
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: SeverityError,
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: SeverityError,
		}}
	}

	val := cp.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}

	return val, nil
}

// extractConfig validates the "pipeline" field against #Pipeline and decodes
// it in declaration order.
func (cp *CUEParser) extractConfig(val cue.Value, sourceFiles []string) (*ParsedConfig, error) {
	parsedConfig := &ParsedConfig{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	pipelineVal := val.LookupPath(cue.ParsePath("pipeline"))
	if !pipelineVal.Exists() {
		parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
			Path:     "pipeline",
			Message:  "no pipeline defined",
			Severity: SeverityError,
		})
		return parsedConfig, nil
	}

	schema, err := cp.schemaRegistry.Definition("pipeline", "#Pipeline")
	if err != nil {
		return nil, err
	}
	// The registry shares the parser's context; values from different
	// contexts cannot be unified.
	checked := schema.Unify(pipelineVal)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		parsedConfig.Errors = append(parsedConfig.Errors, cp.convertCUEErrors(err)...)
		return parsedConfig, nil
	}

	pipeline, errs := cp.decodePipeline(checked)
	parsedConfig.Errors = append(parsedConfig.Errors, errs...)
	if len(errs) > 0 {
		return parsedConfig, nil
	}

	if err := cp.validator.Struct(pipeline); err != nil {
		parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
			Path:     "pipeline",
			Message:  fmt.Sprintf("validation failed: %v", err),
			Severity: SeverityError,
		})
		return parsedConfig, nil
	}
	parsedConfig.Pipeline = pipeline
	return parsedConfig, nil
}

func (cp *CUEParser) decodePipeline(val cue.Value) (*Pipeline, []ValidationError) {
	var errs []ValidationError
	fail := func(path string, err error) {
		errs = append(errs, ValidationError{Path: path, Message: err.Error(), Severity: SeverityError})
	}

	p := &Pipeline{}
	lookupString(val, "name", &p.Name)
	lookupString(val, "description", &p.Description)
	lookupInt(val, "num_loop", &p.NumLoop)
	lookupInt(val, "display_frequency", &p.DisplayFrequency)
	if v := val.LookupPath(cue.ParsePath("thread_mode")); v.Exists() {
		on, err := v.Bool()
		if err != nil {
			fail("pipeline.thread_mode", err)
		} else {
			p.ThreadMode = &on
		}
	}
	if v := val.LookupPath(cue.ParsePath("namespaces")); v.Exists() {
		if err := v.Decode(&p.Namespaces); err != nil {
			fail("pipeline.namespaces", err)
		}
	}

	list, err := val.LookupPath(cue.ParsePath("modules")).List()
	if err != nil {
		fail("pipeline.modules", err)
		return p, errs
	}
	for i := 0; list.Next(); i++ {
		path := fmt.Sprintf("pipeline.modules[%d]", i)
		m, err := decodeModule(list.Value())
		if err != nil {
			fail(path, err)
			continue
		}
		p.Modules = append(p.Modules, m)
	}
	return p, errs
}

func decodeModule(val cue.Value) (ModuleConfig, error) {
	var m ModuleConfig
	lookupString(val, "class", &m.Class)
	lookupString(val, "id", &m.ID)
	lookupString(val, "description", &m.Description)
	if v := val.LookupPath(cue.ParsePath("on")); v.Exists() {
		on, err := v.Bool()
		if err != nil {
			return m, err
		}
		m.On = &on
	}

	params, err := decodeParams(val.LookupPath(cue.ParsePath("params")))
	if err != nil {
		return m, fmt.Errorf("params: %w", err)
	}
	m.Params = params

	if v := val.LookupPath(cue.ParsePath("maps")); v.Exists() {
		list, err := v.List()
		if err != nil {
			return m, err
		}
		for list.Next() {
			var entry MapConfig
			lookupString(list.Value(), "name", &entry.Name)
			lookupString(list.Value(), "key", &entry.Key)
			values, err := decodeParams(list.Value().LookupPath(cue.ParsePath("values")))
			if err != nil {
				return m, fmt.Errorf("map %s: %w", entry.Name, err)
			}
			entry.Values = values
			m.Maps = append(m.Maps, entry)
		}
	}
	return m, nil
}

// decodeParams walks a struct of parameter values in declaration order.
func decodeParams(val cue.Value) (ParamList, error) {
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.Fields()
	if err != nil {
		return nil, err
	}
	var out ParamList
	for iter.Next() {
		name := iter.Selector().Unquoted()
		v, err := cueParamValue(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		out = append(out, chain.P(name, v))
	}
	return out, nil
}

func cueParamValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		n, err := v.Int64()
		return int(n), err
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		list, err := v.List()
		if err != nil {
			return nil, err
		}
		var items []any
		for list.Next() {
			item, err := cueParamValue(list.Value())
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if items == nil {
			items = []any{}
		}
		return normalizeList(items), nil
	case cue.StructKind:
		var vec struct {
			Vec []float64 `json:"vec"`
		}
		if err := v.Decode(&vec); err != nil {
			return nil, err
		}
		return vectorValue(vec.Vec)
	default:
		return nil, fmt.Errorf("unsupported value of kind %s", v.Kind())
	}
}

func lookupString(val cue.Value, path string, dst *string) {
	if v := val.LookupPath(cue.ParsePath(path)); v.Exists() {
		if s, err := v.String(); err == nil {
			*dst = s
		}
	}
}

func lookupInt(val cue.Value, path string, dst *int) {
	if v := val.LookupPath(cue.ParsePath(path)); v.Exists() {
		if n, err := v.Int64(); err == nil {
			*dst = int(n)
		}
	}
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     pathOf(e),
			Message:  errors.Details(e, nil),
			Severity: SeverityError,
		})
	}

	return validationErrors
}

func pathOf(e errors.Error) string {
	var path string
	for i, sel := range e.Path() {
		if i > 0 {
			path += "."
		}
		path += sel
	}
	return path
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}
