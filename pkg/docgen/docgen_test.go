package docgen

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

type sensor struct {
	engine.BasicModule

	gain   float64
	count  int
	name   string
	active bool
	tags   []string
	files  []string
	levels []float64
	ids    []int
	origin parameter.Vector2
	center parameter.Vector3
}

func newSensor(id string) *sensor {
	m := &sensor{
		gain:   2,
		count:  4,
		name:   "front",
		active: true,
		tags:   []string{"a", "b"},
		levels: []float64{1, 2.5},
		ids:    []int{3, 4},
		origin: parameter.Vector2{X: 1, Y: 2},
		center: parameter.Vector3{X: 10, Y: 0, Z: -5},
	}
	m.BasicModule = engine.NewBasicModule("Sensor", "2.0", func(s *parameter.Set) {
		s.Float(&m.gain, "gain", parameter.WithUnit(1.0, "keV"), parameter.WithDescription("energy gain"))
		s.Int(&m.count, "count")
		s.String(&m.name, "name")
		s.Bool(&m.active, "active")
		s.StringVector(&m.tags, "tags")
		s.StringList(&m.files, "files", parameter.WithDefaultString("x.root y.root"))
		s.FloatVector(&m.levels, "levels")
		s.IntVector(&m.ids, "ids")
		s.Vector2(&m.origin, "origin")
		s.Vector3(&m.center, "center", parameter.WithUnit(10.0, "cm"))
		pixels := s.Map("pixels", "pixel_name", "pixel0")
		pixels.Float("threshold", 1.5, parameter.WithUnit(1.0, "keV"))
		pixels.String("material", "Si")
		pixels.Bool("masked", false)
	})
	m.SetModuleID(id)
	m.SetModuleDescription("reads the sensor")
	return m
}

type bare struct {
	engine.BasicModule
}

func newBare() *bare {
	return &bare{BasicModule: engine.NewBasicModule("Bare", "0.1", nil)}
}

func TestGenerateDocument(t *testing.T) {
	modules := []engine.Module{newSensor("Sensor"), newBare(), newSensor("rear")}

	var buf bytes.Buffer
	if err := GenerateDocument(&buf, modules, "detectors"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("missing declaration:\n%s", out)
	}

	var doc Document
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Category != "detectors" {
		t.Errorf("category = %q", doc.Category)
	}
	if len(doc.Modules) != 3 {
		t.Fatalf("expected 3 modules, got %d", len(doc.Modules))
	}

	s := doc.Modules[0]
	if s.Name != "Sensor" || s.Version != "2.0" || s.Text != "reads the sensor" {
		t.Errorf("unexpected module header %+v", s)
	}
	// 10 plain parameters, the map entry, its key and 3 columns.
	if got := len(s.Parameters.Params); got != 15 {
		t.Fatalf("expected 15 param entries, got %d", got)
	}
	if len(doc.Modules[1].Parameters.Params) != 0 {
		t.Error("module without parameters must have no entries")
	}
	if doc.Modules[2].Name != "Sensor" {
		t.Error("module name must be the class name")
	}

	byName := map[string]ParamDocument{}
	for _, p := range s.Parameters.Params {
		byName[p.MapType+"/"+p.Name] = p
	}
	tests := []struct {
		key      string
		typ      string
		unit     string
		defValue string
	}{
		{"/gain", "float", "keV", "2"},
		{"/tags", "vector of string", "", "a b"},
		{"/files", "list of string", "", "x.root y.root"},
		{"/center", "3-vector", "cm", "1 0 -0.5"},
		{"map/pixels", "map", "", ""},
		{"key/pixel_name", "string", "", "pixel0"},
		{"value/threshold", "float", "keV", "1.5"},
		{"value/material", "string", "", "Si"},
	}
	for _, tt := range tests {
		p, ok := byName[tt.key]
		if !ok {
			t.Errorf("missing entry %s", tt.key)
			continue
		}
		if p.Type != tt.typ || p.Unit != tt.unit || p.DefaultValue != tt.defValue {
			t.Errorf("%s: got type=%q unit=%q default=%q", tt.key, p.Type, p.Unit, p.DefaultValue)
		}
	}
	if byName["/gain"].Description != "energy gain" {
		t.Error("description missing")
	}

	params := s.Parameters.Params
	if params[10].MapType != MapTypeMap || params[11].MapType != MapTypeKey || params[12].MapType != MapTypeValue {
		t.Error("map entries must be the map, the key, then the columns")
	}
}

func TestGenerateScript(t *testing.T) {
	modules := []engine.Module{newSensor("Sensor"), newBare(), newSensor("rear")}

	var buf bytes.Buffer
	opts := ScriptOptions{Package: "detlib", Namespace: "Det", AppName: "Calibrate"}
	if err := GenerateScript(&buf, modules, opts); err != nil {
		t.Fatalf("generate: %v", err)
	}
	out := buf.String()
	lines := strings.Split(out, "\n")

	if lines[0] != Shebang {
		t.Errorf("first line = %q", lines[0])
	}
	for _, want := range []string{
		`load("anlchain", "app", "vec")`,
		`load("detlib", "Det")`,
		"num_loop = 100000",
		"display_frequency = 1000",
		"def Calibrate(anl):",
		"    anl.add_namespace(Det)",
		"anl = app(Calibrate)",
		"anl.run(num_loop, display_frequency)",
	} {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("missing line %q", want)
		}
	}

	var chains []string
	for _, l := range lines {
		if strings.HasPrefix(l, "    anl.chain(") {
			chains = append(chains, strings.TrimSpace(l))
		}
	}
	want := []string{`anl.chain("Sensor")`, `anl.chain("Bare")`, `anl.chain("Sensor", "rear")`}
	if strings.Join(chains, ";") != strings.Join(want, ";") {
		t.Errorf("unexpected chain statements %v", chains)
	}
	if got := strings.Count(out, "anl.with_parameters("); got != 3 {
		t.Errorf("expected 3 with_parameters calls, got %d", got)
	}
	if !strings.Contains(out, "    anl.with_parameters({})\n") {
		t.Error("module without parameters must get an empty call")
	}
	if got := strings.Count(out, `anl.insert_map("pixels", "pixel0", {`); got != 2 {
		t.Errorf("expected 2 insert_map calls, got %d", got)
	}
	if strings.Contains(out, `"pixels": `) {
		t.Error("map parameters must not appear in with_parameters")
	}
	if strings.Index(out, `"gain": `) > strings.Index(out, `"count": `) {
		t.Error("parameters must follow declaration order")
	}
}

func TestLiteral(t *testing.T) {
	m := newSensor("Sensor")
	if err := m.Define(); err != nil {
		t.Fatalf("define: %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"gain", "2.0"},
		{"count", "4"},
		{"name", `"front"`},
		{"active", "True"},
		{"tags", `["a", "b"]`},
		{"files", `["x.root", "y.root"]`},
		{"levels", "[1.0, 2.5]"},
		{"ids", "[3, 4]"},
		{"origin", "vec(1.0, 2.0)"},
		{"center", "vec(1.0, 0.0, -0.5)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := m.ParameterSet().Lookup(tt.name)
			if !ok {
				t.Fatalf("parameter %s not declared", tt.name)
			}
			got, err := Literal(d)
			if err != nil {
				t.Fatalf("literal: %v", err)
			}
			if got != tt.want {
				t.Errorf("Literal(%s) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

type gate struct {
	engine.BasicModule

	names []string
}

func newGate() *gate {
	m := &gate{names: []string{"north gate", "", "east"}}
	m.BasicModule = engine.NewBasicModule("Gate", "1.0", func(s *parameter.Set) {
		s.StringVector(&m.names, "names")
		channels := s.Map("channels", "channel", "ch0", parameter.WithDefaultString("corner"))
		channels.Int("gain", 1)
	})
	m.SetModuleID("Gate")
	return m
}

func TestLiteralKeepsStringElements(t *testing.T) {
	m := newGate()
	if err := m.Define(); err != nil {
		t.Fatalf("define: %v", err)
	}
	d, ok := m.ParameterSet().Lookup("names")
	if !ok {
		t.Fatal("parameter names not declared")
	}
	got, err := Literal(d)
	if err != nil {
		t.Fatalf("literal: %v", err)
	}
	if want := `["north gate", "", "east"]`; got != want {
		t.Errorf("Literal(names) = %s, want %s", got, want)
	}
}

func TestMapDefaultKeyMatchesDocument(t *testing.T) {
	var script bytes.Buffer
	if err := GenerateScript(&script, []engine.Module{newGate()}, ScriptOptions{Package: "gates", Namespace: "Gates", AppName: "Run"}); err != nil {
		t.Fatalf("generate script: %v", err)
	}
	if !strings.Contains(script.String(), `anl.insert_map("channels", "corner", {`) {
		t.Errorf("insert_map must use the reported default key:\n%s", script.String())
	}

	var buf bytes.Buffer
	if err := GenerateDocument(&buf, []engine.Module{newGate()}, "gates"); err != nil {
		t.Fatalf("generate document: %v", err)
	}
	var doc Document
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, p := range doc.Modules[0].Parameters.Params {
		if p.MapType == MapTypeKey && p.DefaultValue != "corner" {
			t.Errorf("document key default = %q, want corner", p.DefaultValue)
		}
	}
}

func TestFloatLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3", "3.0"},
		{"0.25", "0.25"},
		{"-7", "-7.0"},
		{"1e+21", "1e+21"},
		{"+Inf", `float("inf")`},
	}

	for _, tt := range tests {
		got, err := floatLiteral(tt.in)
		if err != nil {
			t.Fatalf("floatLiteral(%s): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("floatLiteral(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if _, err := floatLiteral("abc"); err == nil {
		t.Error("expected an error for a non-number")
	}
}
