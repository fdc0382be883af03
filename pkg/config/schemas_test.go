package config

import (
	"context"
	"reflect"
	"testing"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	registry := NewSchemaRegistry()

	if err := registry.RegisterSchema("limits", `#Limits: {max: int & <=10}`); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := registry.GetSchema("limits"); !ok {
		t.Error("schema not found after registration")
	}
	if err := registry.RegisterSchema("broken", `#Bad: {`); err == nil {
		t.Error("expected error for invalid schema")
	}

	if got, want := registry.ListSchemas(), []string{"limits", "pipeline"}; !reflect.DeepEqual(got, want) {
		t.Errorf("schemas = %v, want %v", got, want)
	}

	ctx := context.Background()
	if err := registry.ValidateAgainstSchema(ctx, "limits", "#Limits", map[string]any{"max": 3}); err != nil {
		t.Errorf("valid data rejected: %v", err)
	}
	if err := registry.ValidateAgainstSchema(ctx, "limits", "#Limits", map[string]any{"max": 30}); err == nil {
		t.Error("out of bound value accepted")
	}
	if _, err := registry.Definition("limits", "#Missing"); err == nil {
		t.Error("expected error for unknown definition")
	}
	if _, err := registry.Definition("nope", "#Limits"); err == nil {
		t.Error("expected error for unknown schema")
	}
}

func TestSchemaRegistry_ValidatePipeline(t *testing.T) {
	registry := NewSchemaRegistry()
	off := false

	valid := &Pipeline{
		Name:    "Demo",
		NumLoop: -1,
		Modules: []ModuleConfig{{
			Class: "Counter",
			On:    &off,
			Params: ParamList{
				chain.P("gain", 2.5),
				chain.P("tags", []any{"a", "b"}),
				chain.P("offset", parameter.NewVec(1, 2)),
			},
			Maps: []MapConfig{{Name: "pixels", Key: "p1", Values: ParamList{chain.P("threshold", 4.0)}}},
		}},
	}

	tests := []struct {
		name    string
		mutate  func(p *Pipeline)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *Pipeline) {}},
		{name: "bad name", mutate: func(p *Pipeline) { p.Name = "has space" }, wantErr: true},
		{name: "loop below -1", mutate: func(p *Pipeline) { p.NumLoop = -2 }, wantErr: true},
		{name: "bad class", mutate: func(p *Pipeline) { p.Modules[0].Class = "1Counter" }, wantErr: true},
		{
			name: "nested list",
			mutate: func(p *Pipeline) {
				p.Modules[0].Params = ParamList{chain.P("grid", []any{[]any{1, 2}})}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := *valid
			p.Modules = append([]ModuleConfig(nil), valid.Modules...)
			tt.mutate(&p)
			err := registry.ValidatePipeline(context.Background(), &p)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePipeline() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
