package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/config"
	"github.com/openfroyo/anlchain/pkg/script"
	"github.com/openfroyo/anlchain/pkg/stores"
	"github.com/openfroyo/anlchain/pkg/telemetry"
)

const (
	examplePipeline = "../../../examples/pipelines/calibrate.yaml"
	exampleScript   = "../../../examples/pipelines/calibrate.star"
	examplePolicies = "../../../examples/policies"
)

// testSession opens a session with history disabled.
func testSession(t *testing.T, opts sessionOptions) *session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anlchain.yaml")
	if err := os.WriteFile(path, []byte("history_db: \"\"\nlog_level: error\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	s, err := newSession(context.Background(), opts)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestLoopCounts(t *testing.T) {
	s := &session{settings: &config.Settings{NumLoop: 100, DisplayFrequency: 10}}
	def := &pipeline{definition: &config.Pipeline{NumLoop: 50, DisplayFrequency: 5}}
	scripted := &pipeline{}

	tests := []struct {
		name  string
		p     *pipeline
		n, d  int
		nSet  bool
		dSet  bool
		wantN int
		wantD int
	}{
		{name: "settings", p: scripted, wantN: 100, wantD: 10},
		{name: "definition", p: def, wantN: 50, wantD: 5},
		{name: "flags", p: def, n: 7, d: 1, nSet: true, dSet: true, wantN: 7, wantD: 1},
		{name: "flag zero display", p: def, d: 0, dSet: true, wantN: 50, wantD: 0},
		{name: "run until quit", p: scripted, n: -1, nSet: true, wantN: -1, wantD: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, d := s.loopCounts(tt.p, tt.n, tt.d, tt.nSet, tt.dSet)
			if n != tt.wantN || d != tt.wantD {
				t.Errorf("loopCounts = %d, %d; want %d, %d", n, d, tt.wantN, tt.wantD)
			}
		})
	}
}

func TestPipelineApp(t *testing.T) {
	noop := func(*chain.App) error { return nil }
	a := chain.NewApp("A", noop)
	b := chain.NewApp("B", noop)

	tests := []struct {
		name    string
		apps    []*chain.App
		pick    string
		want    string
		wantErr string
	}{
		{name: "only app", apps: []*chain.App{a}, want: "A"},
		{name: "named", apps: []*chain.App{a, b}, pick: "B", want: "B"},
		{name: "ambiguous", apps: []*chain.App{a, b}, wantErr: "A, B"},
		{name: "unknown", apps: []*chain.App{a}, pick: "C", wantErr: "no app named C"},
		{name: "none", wantErr: "defines no app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &pipeline{path: "p.star", apps: tt.apps}
			app, err := p.app(tt.pick)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if app.Name() != tt.want {
				t.Errorf("app = %s, want %s", app.Name(), tt.want)
			}
		})
	}
}

func TestScriptOptions(t *testing.T) {
	s := &session{settings: config.DefaultSettings()}

	opts := scriptOptions(s, "", "", "")
	if opts.Package != "mypackage" || opts.Namespace != "MyPackage" || opts.AppName != "MyApp" {
		t.Errorf("defaults not taken from settings: %+v", opts)
	}

	opts = scriptOptions(s, "sample", "", "Calibrate")
	if opts.Package != "sample" || opts.Namespace != "MyPackage" || opts.AppName != "Calibrate" {
		t.Errorf("flags not applied: %+v", opts)
	}
}

func TestStoreEvents(t *testing.T) {
	ctx := context.Background()
	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	record := storeEvents(store, zerolog.Nop())
	record(telemetry.Event{
		Type:      "phase.finished",
		RunID:     "run-1",
		Phase:     "Prepare()",
		Level:     "info",
		Message:   "Prepare() finished",
		Data:      map[string]any{"status": "OK"},
		Timestamp: time.Now().UTC(),
	})
	record(telemetry.Event{Type: "run.started", Level: "info", Message: "detached", Timestamp: time.Now().UTC()})

	runID := "run-1"
	events, err := store.GetEvents(ctx, &runID, nil, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event of run-1, got %d", len(events))
	}
	ev := events[0]
	if ev.Phase == nil || *ev.Phase != "Prepare()" {
		t.Errorf("phase = %v", ev.Phase)
	}
	if ev.Details == nil || !strings.Contains(*ev.Details, `"status":"OK"`) {
		t.Errorf("details = %v", ev.Details)
	}

	all, err := store.GetEvents(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 events, got %d", len(all))
	}
}

func TestLoadExamples(t *testing.T) {
	s := testSession(t, sessionOptions{})
	ctx := context.Background()

	def, err := s.load(ctx, examplePipeline, script.ModeBuild)
	if err != nil {
		t.Fatalf("load definition: %v", err)
	}
	if def.definition == nil || len(def.apps) != 1 || def.apps[0].Name() != "Calibrate" {
		t.Fatalf("unexpected definition: %+v", def)
	}

	scripted, err := s.load(ctx, exampleScript, script.ModeBuild)
	if err != nil {
		t.Fatalf("load script: %v", err)
	}
	if len(scripted.apps) != 2 {
		t.Fatalf("expected 2 apps, got %d", len(scripted.apps))
	}
	if len(scripted.invocations) != 1 || scripted.invocations[0].NumLoop != 10000 {
		t.Errorf("unexpected invocations: %+v", scripted.invocations)
	}
	if _, err := scripted.app(""); err == nil {
		t.Error("expected an ambiguous app error")
	}
}

func TestRunLint(t *testing.T) {
	s := testSession(t, sessionOptions{policyDir: examplePolicies})
	ctx := context.Background()

	if err := runLint(ctx, s, examplePipeline, ""); err != nil {
		t.Errorf("example pipeline rejected: %v", err)
	}
	if err := runLint(ctx, s, exampleScript, "Survey"); err != nil {
		t.Errorf("example script rejected: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	content := `name: Bad
namespaces: [Sample]
modules:
  - class: Generator
  - class: Histogram
    params:
      min: 10.0
      max: 10.0
`
	if err := os.WriteFile(bad, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	err := runLint(ctx, s, bad, "")
	if err == nil || !strings.Contains(err.Error(), "violation") {
		t.Errorf("expected a policy violation, got %v", err)
	}
}

func TestWriteDocAndScript(t *testing.T) {
	s := testSession(t, sessionOptions{})
	ctx := context.Background()
	dir := t.TempDir()

	doc := filepath.Join(dir, "calibrate.xml")
	if err := writeDoc(ctx, s, examplePipeline, "", doc, "calibration"); err != nil {
		t.Fatalf("writeDoc: %v", err)
	}
	data, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<category>calibration</category>", "<name>Histogram</name>", "<name>EnergyCut</name>"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("document does not mention %s", want)
		}
	}

	out := filepath.Join(dir, "calibrate.star")
	if err := writeScript(ctx, s, examplePipeline, "", out, scriptOptions(s, "sample", "Sample", "Regenerated")); err != nil {
		t.Fatalf("writeScript: %v", err)
	}

	// The generated script loads back into the same chain.
	p, err := s.load(ctx, out, script.ModeBuild)
	if err != nil {
		t.Fatalf("generated script does not load: %v", err)
	}
	app, err := p.app("Regenerated")
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Setup(); err != nil {
		t.Fatal(err)
	}
	mods, err := app.Check(ctx)
	if err != nil && !errors.Is(err, chain.ErrGateRejected) {
		t.Fatal(err)
	}
	if len(mods) != 4 || mods[3].ID != "PeakHistogram" {
		t.Errorf("unexpected modules: %+v", mods)
	}
	if bins, ok := mods[3].Parameter("bins"); !ok || bins.Value != "40" {
		t.Errorf("bins = %+v", bins)
	}
}
