package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/openfroyo/anlchain/pkg/parameter"
)

func checkDemoPipeline(t *testing.T, p *Pipeline) {
	t.Helper()

	if p.Name != "Demo" || p.NumLoop != 10 {
		t.Errorf("unexpected header name=%q num_loop=%d", p.Name, p.NumLoop)
	}
	if !reflect.DeepEqual(p.Namespaces, []string{"demo"}) {
		t.Errorf("namespaces = %v", p.Namespaces)
	}
	if len(p.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(p.Modules))
	}

	first := p.Modules[0]
	var names []string
	for _, param := range first.Params {
		names = append(names, param.Name)
	}
	if want := []string{"gain", "count", "tags", "levels", "offset"}; !reflect.DeepEqual(names, want) {
		t.Errorf("parameter order = %v, want %v", names, want)
	}

	tests := []struct {
		name string
		want any
	}{
		{"gain", 2.5},
		{"count", 7},
		{"tags", []any{"a", "b"}},
		{"levels", []any{1.0, 2.5}},
		{"offset", parameter.NewVec(1, 2, 3)},
	}
	for i, tt := range tests {
		got := first.Params[i].Value
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s = %#v, want %#v", tt.name, got, tt.want)
		}
	}

	second := p.Modules[1]
	if second.ID != "second" || second.On == nil || *second.On {
		t.Errorf("unexpected second module %+v", second)
	}
	if len(second.Maps) != 1 || second.Maps[0].Key != "p1" {
		t.Fatalf("unexpected maps %+v", second.Maps)
	}
	if v := second.Maps[0].Values[0]; v.Name != "threshold" || v.Value != 4.0 {
		t.Errorf("unexpected map value %+v", v)
	}
}

func TestCUEParser_ParseInline(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantErr   string
		checkFunc func(*testing.T, *ParsedConfig)
	}{
		{
			name:    "valid pipeline",
			content: validCUE,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				checkDemoPipeline(t, pc.Pipeline)
			},
		},
		{
			name: "invalid CUE syntax",
			content: `
pipeline: {
	name: "Demo"
	invalid syntax here
}
`,
			wantErr: "inline.cue",
		},
		{
			name:    "no pipeline",
			content: `other: 1`,
			wantErr: "no pipeline defined",
		},
		{
			name: "missing class",
			content: `
pipeline: {
	name: "Demo"
	modules: [{id: "x"}]
}
`,
			wantErr: "class",
		},
		{
			name: "vector with four components",
			content: `
pipeline: {
	name: "Demo"
	modules: [{class: "Counter", params: {offset: {vec: [1, 2, 3, 4]}}}]
}
`,
			wantErr: "offset",
		},
		{
			name: "empty module list",
			content: `
pipeline: {
	name: "Demo"
	modules: []
}
`,
			wantErr: "Modules",
		},
		{
			name: "unknown field",
			content: `
pipeline: {
	name: "Demo"
	loops: 3
	modules: [{class: "Counter"}]
}
`,
			wantErr: "loops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := parser.ParseInline(ctx, tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantErr != "" {
				if !pc.HasErrors() {
					t.Fatal("expected validation errors")
				}
				if !strings.Contains(pc.Err().Error(), tt.wantErr) {
					t.Errorf("error %q does not mention %q", pc.Err(), tt.wantErr)
				}
				if pc.Pipeline != nil {
					t.Error("pipeline must be nil when invalid")
				}
				return
			}

			if pc.HasErrors() {
				t.Fatalf("unexpected validation errors: %v", pc.Errors)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, pc)
			}
		})
	}
}

func TestCUEParser_ParseFiles(t *testing.T) {
	parser := NewCUEParser()
	tmpDir := t.TempDir()

	header := filepath.Join(tmpDir, "header.cue")
	body := filepath.Join(tmpDir, "modules.cue")
	if err := os.WriteFile(header, []byte(`pipeline: name: "Split"`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(body, []byte(`pipeline: modules: [{class: "Counter", params: {count: 3}}]`), 0644); err != nil {
		t.Fatal(err)
	}

	pc, err := parser.Parse(context.Background(), []string{header, body})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc.HasErrors() {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}
	if pc.Pipeline.Name != "Split" || len(pc.Pipeline.Modules) != 1 {
		t.Errorf("sources not unified: %+v", pc.Pipeline)
	}
	if len(pc.SourceFiles) != 2 {
		t.Errorf("source files = %v", pc.SourceFiles)
	}

	if _, err := parser.Parse(context.Background(), []string{filepath.Join(tmpDir, "missing.cue")}); err == nil {
		t.Error("expected error for missing source")
	}
	if _, err := parser.Parse(context.Background(), nil); err == nil {
		t.Error("expected error for no sources")
	}
}

func TestCUEParser_ErrorLocation(t *testing.T) {
	parser := NewCUEParser()
	pc, err := parser.ParseInline(context.Background(), "pipeline: {\n\tname: 3\n\tmodules: [{class: \"Counter\"}]\n}\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Errors) == 0 {
		t.Fatal("expected a validation error")
	}
	var located bool
	for _, e := range pc.Errors {
		if e.Line > 0 && e.Severity == SeverityError {
			located = true
		}
	}
	if !located {
		t.Errorf("no error carries a position: %+v", pc.Errors)
	}
}
