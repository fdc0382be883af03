package script

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/docgen"
	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

type counter struct {
	engine.BasicModule

	gain   float64
	count  int
	label  string
	tags   []string
	levels []float64
	offset parameter.Vector3
	pixels *parameter.MapParam

	events int
}

func (m *counter) Analyze() engine.Status {
	m.events++
	return engine.StatusOK
}

// demoNamespace returns a namespace with a Counter class and the slice the
// created instances are appended to.
func demoNamespace() (*chain.Namespace, *[]*counter) {
	var created []*counter
	ns := chain.NewNamespace("Demo")
	ns.MustRegister("Counter", func() engine.Module {
		m := &counter{gain: 1, count: 1, label: "none", tags: []string{"x", "north gate", ""}}
		m.BasicModule = engine.NewBasicModule("Counter", "1.0", func(s *parameter.Set) {
			s.Float(&m.gain, "gain", parameter.WithUnit(1.0, "keV"))
			s.Int(&m.count, "count")
			s.String(&m.label, "label")
			s.StringVector(&m.tags, "tags")
			s.FloatVector(&m.levels, "levels")
			s.Vector3(&m.offset, "offset", parameter.WithUnit(10.0, "mm"))
			m.pixels = s.Map("pixels", "pixel", "pixel0")
			m.pixels.Float("threshold", 1.5)
			m.pixels.String("material", "Si")
		})
		created = append(created, m)
		return m
	})
	return ns, &created
}

func newTestRuntime(mode Mode) (*Runtime, *[]*counter, *bytes.Buffer) {
	ns, created := demoNamespace()
	var out bytes.Buffer
	rt := NewRuntime(
		WithOutput(&out),
		WithMode(mode),
		WithPackage("demo", ns),
		WithChainOptions(chain.WithThreadMode(false)),
	)
	return rt, created, &out
}

const pipeline = `
load("anlchain", "app", "vec")
load("demo", "Demo")

def Setup(anl):
    anl.add_namespace(Demo)
    anl.chain("Counter")
    anl.with_parameters({
        "gain": 2.5,
        "count": 7,
        "tags": ["a", "b", "c"],
        "offset": vec(1, 2, 3),
    })
    anl.insert_map("pixels", "p1", {"threshold": 4.0})
    anl.chain(Demo.Counter, "second")
    anl.text("the second counter")

anl = app(Setup)
anl.run(5)
`

func TestExecRun(t *testing.T) {
	rt, created, out := newTestRuntime(ModeRun)

	result, err := rt.Exec(context.Background(), "pipeline.star", pipeline)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if len(result.Apps) != 1 || result.Apps[0].Name() != "Setup" {
		t.Fatalf("unexpected apps %v", result.Apps)
	}
	if len(result.Invocations) != 1 {
		t.Fatalf("expected one invocation, got %d", len(result.Invocations))
	}
	inv := result.Invocations[0]
	if inv.Kind != InvokeRun || inv.NumLoop != 5 || inv.Err != nil {
		t.Errorf("unexpected invocation %+v", inv)
	}
	if result.Apps[0].State() != chain.StateDone {
		t.Errorf("state = %s", result.Apps[0].State())
	}

	if len(*created) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(*created))
	}
	first, second := (*created)[0], (*created)[1]
	if first.gain != 2.5 || first.count != 7 {
		t.Errorf("scalars not committed: gain=%v count=%v", first.gain, first.count)
	}
	if strings.Join(first.tags, ",") != "a,b,c" {
		t.Errorf("tags = %v", first.tags)
	}
	if first.offset != (parameter.Vector3{X: 10, Y: 20, Z: 30}) {
		t.Errorf("offset = %+v", first.offset)
	}
	if row, ok := first.pixels.Row("p1"); !ok || row.Float("threshold") != 4.0 || row.String("material") != "Si" {
		t.Errorf("map entry not inserted: %+v", row)
	}
	if second.ModuleID() != "second" || second.ModuleDescription() != "the second counter" {
		t.Errorf("second module = %s %q", second.ModuleID(), second.ModuleDescription())
	}
	if first.events != 5 || second.events != 5 {
		t.Errorf("events = %d, %d", first.events, second.events)
	}
	if !strings.Contains(out.String(), "Analysis Begin") {
		t.Error("engine output not routed to the runtime output")
	}
}

func TestExecBuild(t *testing.T) {
	rt, created, _ := newTestRuntime(ModeBuild)

	result, err := rt.Exec(context.Background(), "pipeline.star", pipeline)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	app := result.Apps[0]
	if app.Len() != 0 || len(*created) != 0 {
		t.Fatal("build mode must not assemble the chain")
	}
	if len(result.Invocations) != 1 || result.Invocations[0].Kind != InvokeRun {
		t.Fatalf("run call not recorded: %+v", result.Invocations)
	}

	if err := app.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	snaps, err := app.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	tests := []struct {
		name string
		want string
	}{
		{"gain", "2.5"},
		{"count", "7"},
		{"tags", "a b c"},
		{"offset", "1 2 3"},
		{"pixels", "p1"},
	}
	for _, tt := range tests {
		p, ok := snaps[0].Parameter(tt.name)
		if !ok {
			t.Errorf("missing parameter %s", tt.name)
			continue
		}
		if p.Value != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, p.Value, tt.want)
		}
	}
	if (*created)[0].events != 0 {
		t.Error("check must not run the event loop")
	}
}

func TestSetupFunction(t *testing.T) {
	rt, created, _ := newTestRuntime(ModeRun)
	src := `
load("anlchain", "app")
load("demo", "Demo")

def double(m):
    m.set("count", m.get("count") * 2)
    m.set("label", m.id + "-" + m.name)

def Setup(anl):
    anl.add_namespace(Demo)
    anl.chain("Counter", "c1")
    anl.with_parameters({"count": 4}, setup=double)

anl = app(Setup)
anl.thread_mode = False
anl.run(1)
`
	if _, err := rt.Exec(context.Background(), "setup.star", src); err != nil {
		t.Fatalf("exec: %v", err)
	}
	m := (*created)[0]
	if m.count != 8 {
		t.Errorf("count = %d, want 8", m.count)
	}
	if m.label != "c1-Counter" {
		t.Errorf("label = %q", m.label)
	}
}

func TestSetupSlots(t *testing.T) {
	rt, created, _ := newTestRuntime(ModeRun)
	src := `
load("anlchain", "app")
load("demo", "Demo")

def Setup(anl):
    anl.add_namespace(Demo)
    anl.chain_with_parameters(counters)

anl = app(Setup)
counters = anl.setup_module("counters", cls="Counter", array=True)
counters.add("front")
anl.with_parameters({"count": 3})
counters.add("rear").with_parameters({"count": 9})
anl.run(1)
`
	if _, err := rt.Exec(context.Background(), "slots.star", src); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if len(*created) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(*created))
	}
	got := fmt.Sprintf("%s=%d %s=%d",
		(*created)[0].ModuleID(), (*created)[0].count,
		(*created)[1].ModuleID(), (*created)[1].count)
	if got != "front=3 rear=9" {
		t.Errorf("modules = %s", got)
	}
}

func TestGeneratedScriptRoundTrip(t *testing.T) {
	ns, _ := demoNamespace()
	factory, _ := ns.Lookup("Counter")
	m := factory()
	if err := m.Define(); err != nil {
		t.Fatalf("define: %v", err)
	}
	for name, v := range map[string]any{
		"gain":   3.25,
		"count":  11,
		"label":  `say "hi"`,
		"levels": []float64{0.5, 2},
		"offset": parameter.NewVec(-1, 0.5, 4),
	} {
		value, err := parameter.FromAny(v)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := parameter.Apply(m, name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	want := map[string]string{}
	for _, d := range m.Parameters() {
		want[d.Name()] = d.ValueString()
	}

	var buf bytes.Buffer
	opts := docgen.ScriptOptions{Package: "demo", Namespace: "Demo", AppName: "Calibrate"}
	if err := docgen.GenerateScript(&buf, []engine.Module{m}, opts); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !strings.Contains(buf.String(), `"tags": ["x", "north gate", ""],`) {
		t.Errorf("string vector elements must be quoted one by one:\n%s", buf.String())
	}

	rt, _, _ := newTestRuntime(ModeBuild)
	result, err := rt.Exec(context.Background(), "generated.star", buf.String())
	if err != nil {
		t.Fatalf("exec generated script: %v\n%s", err, buf.String())
	}
	inv := result.Invocations[0]
	if inv.NumLoop != 100000 || inv.DisplayFrequency != 1000 {
		t.Errorf("loop settings = %d, %d", inv.NumLoop, inv.DisplayFrequency)
	}
	if err := inv.App.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	snaps, err := inv.App.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, p := range snaps[0].Parameters {
		if p.Name == "pixels" {
			if p.Value != "pixel0" {
				t.Errorf("pixels = %q, want the default key", p.Value)
			}
			continue
		}
		if p.Value != want[p.Name] {
			t.Errorf("%s = %q, want %q", p.Name, p.Value, want[p.Name])
		}
	}
}

func TestPrintAllParam(t *testing.T) {
	rt, _, out := newTestRuntime(ModeRun)
	src := `
load("anlchain", "app")
load("demo", "Demo")

def Setup(anl):
    anl.add_namespace(Demo)
    anl.chain("Counter")

anl = app(Setup)
anl.print_all_param()
size = anl.size
`
	result, err := rt.Exec(context.Background(), "print.star", src)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !strings.Contains(out.String(), "--- Counter ---") {
		t.Errorf("missing module header:\n%s", out.String())
	}
	if result.Globals["size"].String() != "0" {
		t.Error("chain must be cleared after printing")
	}
}

func TestMakeDoc(t *testing.T) {
	rt, _, _ := newTestRuntime(ModeRun)
	path := filepath.Join(t.TempDir(), "modules.xml")
	src := fmt.Sprintf(`
load("anlchain", "app")
load("demo", "Demo")

def Setup(anl):
    anl.add_namespace(Demo)
    anl.chain("Counter")

app(Setup).make_doc(%q, "demo")
`, path)
	if _, err := rt.Exec(context.Background(), "doc.star", src); err != nil {
		t.Fatalf("exec: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "<category>demo</category>") {
		t.Errorf("unexpected document:\n%s", data)
	}
}

func TestExecErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown load",
			src:  `load("nope", "X")`,
			want: "unknown module",
		},
		{
			name: "bad vec",
			src:  "load(\"anlchain\", \"vec\")\nv = vec(\"a\", 1)",
			want: "want number",
		},
		{
			name: "bad loop count",
			src:  "load(\"anlchain\", \"app\")\ndef S(anl):\n    pass\napp(S).run(\"some\")",
			want: "num_loop",
		},
		{
			name: "unknown class",
			src:  "load(\"anlchain\", \"app\")\ndef S(anl):\n    anl.chain(\"Missing\")\napp(S).run(1)",
			want: "Missing",
		},
		{
			name: "parameter without module",
			src:  "load(\"anlchain\", \"app\")\ndef S(anl):\n    anl.set_parameter(\"x\", 1)\napp(S).run(1)",
			want: "no current module",
		},
		{
			name: "read-only field",
			src:  "load(\"anlchain\", \"app\")\ndef S(anl):\n    pass\na = app(S)\na.size = 3",
			want: "no writable field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, _, _ := newTestRuntime(ModeRun)
			_, err := rt.Exec(context.Background(), "bad.star", tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestExecCancelled(t *testing.T) {
	rt, _, _ := newTestRuntime(ModeRun)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := `
def spin():
    n = 0
    for i in range(100000000):
        n += 1
    return n

spin()
`
	_, err := rt.Exec(ctx, "spin.star", src)
	if err == nil || !strings.Contains(err.Error(), "cancel") {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestVecValue(t *testing.T) {
	rt, _, _ := newTestRuntime(ModeRun)
	src := `
load("anlchain", "vec")
v = vec(1, 2.5, -3)
n = len(v)
y = v[1]
`
	result, err := rt.Exec(context.Background(), "vec.star", src)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if got := result.Globals["v"].String(); got != "vec(1.0, 2.5, -3.0)" {
		t.Errorf("v = %s", got)
	}
	if result.Globals["n"].String() != "3" || result.Globals["y"].String() != "2.5" {
		t.Errorf("n = %s, y = %s", result.Globals["n"], result.Globals["y"])
	}
}
