package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML pipeline definition. The document holds the same
// fields as the CUE "pipeline" value at its top level.
func ParseYAML(ctx context.Context, data []byte, source string) (*ParsedConfig, error) {
	pc := &ParsedConfig{
		SourceFiles: []string{source},
		ParsedAt:    time.Now(),
	}

	var p Pipeline
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		pc.Errors = append(pc.Errors, ValidationError{
			File:     source,
			Message:  err.Error(),
			Severity: SeverityError,
		})
		return pc, nil
	}

	if err := validator.New().Struct(&p); err != nil {
		pc.Errors = append(pc.Errors, ValidationError{
			File:     source,
			Path:     "pipeline",
			Message:  fmt.Sprintf("validation failed: %v", err),
			Severity: SeverityError,
		})
		return pc, nil
	}

	if err := NewSchemaRegistry().ValidatePipeline(ctx, &p); err != nil {
		pc.Errors = append(pc.Errors, ValidationError{
			File:     source,
			Path:     "pipeline",
			Message:  err.Error(),
			Severity: SeverityError,
		})
		return pc, nil
	}

	pc.Pipeline = &p
	return pc, nil
}

// EncodeYAML renders the pipeline as a YAML definition.
func (p *Pipeline) EncodeYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsPipelineDefinition reports whether path names a declarative pipeline
// (CUE or YAML) rather than a script.
func IsPipelineDefinition(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue", ".yaml", ".yml":
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// LoadPipeline reads a pipeline definition from a .cue file, a .yaml file or
// a directory holding a CUE package. Definition problems are returned as an
// error joining every validation message.
func LoadPipeline(ctx context.Context, path string) (*Pipeline, error) {
	var (
		pc  *ParsedConfig
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read pipeline %s: %w", path, readErr)
		}
		pc, err = ParseYAML(ctx, data, path)
	default:
		pc, err = NewCUEParser().Parse(ctx, []string{path})
	}
	if err != nil {
		return nil, err
	}
	if err := pc.Err(); err != nil {
		return nil, err
	}
	return pc.Pipeline, nil
}
