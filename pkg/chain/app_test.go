package chain

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

func newTestApp(setup AppSetupFunc) *App {
	var out bytes.Buffer
	return NewApp("TestApp", setup,
		WithOutput(&out),
		WithLogger(zerolog.Nop()),
		WithEngineFactory(func() engine.Engine { return newFakeEngine() }),
	)
}

func TestApp_RunTwiceClearsTheChain(t *testing.T) {
	calls := 0
	app := newTestApp(func(a *App) error {
		calls++
		a.AddNamespace(testNamespace())
		if _, err := a.Chain("Detector"); err != nil {
			return err
		}
		return a.WithParameters(Params{P("count", calls)}, nil)
	})

	for i := 1; i <= 2; i++ {
		if err := app.Run(context.Background(), 5, 1); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if app.Len() != 1 {
			t.Fatalf("run %d: expected 1 module, got %d", i, app.Len())
		}
		if got := app.Get("Detector").Module().(*detector).count; got != i {
			t.Errorf("run %d: expected count %d, got %d", i, i, got)
		}
	}
	if calls != 2 {
		t.Errorf("expected setup to run twice, ran %d times", calls)
	}
}

func TestApp_SetupErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	app := newTestApp(func(*App) error { return boom })
	if err := app.Run(context.Background(), 1, 1); !errors.Is(err, boom) {
		t.Fatalf("expected setup error, got %v", err)
	}
}

func TestApp_FailedRunIsNotCleared(t *testing.T) {
	app := newTestApp(func(a *App) error {
		_, err := a.Push(detectorWithID("A"))
		return err
	})
	app.AnalysisChain.newEngine = func() engine.Engine {
		e := newFakeEngine()
		e.statuses["Prepare"] = engine.StatusQuitError
		return e
	}

	if err := app.Run(context.Background(), 1, 1); !IsEngineStatus(err) {
		t.Fatalf("expected engine status error, got %v", err)
	}
	if err := app.Run(context.Background(), 1, 1); !IsDuplicateIdentity(err) {
		t.Fatalf("expected the leftover chain to reject the module again, got %v", err)
	}
}

func TestSetupSlot_SingleAndArray(t *testing.T) {
	app := newTestApp(nil)
	app.AddNamespace(testNamespace())

	reader := DefineSetupModule(app, "reader", SetupModuleOptions{Class: "Detector"})
	analyzers := DefineSetupModule(app, "analyzer", SetupModuleOptions{Array: true})
	if DefineSetupModule(app, "reader", SetupModuleOptions{}) != reader {
		t.Fatal("redefining a slot must return the existing one")
	}

	reader.Set("", "first")
	reader.Set("", "input")
	if err := app.WithParameters(Params{P("label", "in")}, nil); err != nil {
		t.Fatalf("with parameters on initializer: %v", err)
	}

	analyzers.Add("Detector", "ana1")
	if err := app.SetParameter("count", 4); err != nil {
		t.Fatalf("set parameter on initializer: %v", err)
	}
	analyzers.Add("Detector", "ana2")
	if err := app.InsertMap("pixels", "k", Params{P("threshold", 1.0)}); err != nil {
		t.Fatalf("insert map on initializer: %v", err)
	}
	if err := app.Text("second analyzer"); err != nil {
		t.Fatalf("text on initializer: %v", err)
	}

	if app.Len() != 0 {
		t.Fatal("slots must not chain modules by themselves")
	}
	if reader.Module().ID != "input" || reader.Module().Class != "Detector" {
		t.Errorf("unexpected reader %+v", reader.Module())
	}
	if len(analyzers.Modules()) != 2 || !analyzers.IsArray() {
		t.Fatalf("expected two analyzers, got %d", len(analyzers.Modules()))
	}

	inits := append(reader.Modules(), analyzers.Modules()...)
	if err := app.ChainWithParameters(inits...); err != nil {
		t.Fatalf("chain with parameters: %v", err)
	}
	if err := app.AnalysisChain.Run(context.Background(), 1, 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := ids(app.AnalysisChain); got != "input,ana1,ana2" {
		t.Errorf("unexpected order %s", got)
	}
	if app.Get("input").Module().(*detector).label != "in" {
		t.Error("reader parameters not committed")
	}
	if app.Get("ana1").Module().(*detector).count != 4 {
		t.Error("ana1 parameters not committed")
	}
	ana2 := app.Get("ana2").Module()
	if _, ok := ana2.(*detector).pixels.Row("k"); !ok {
		t.Error("ana2 map entry not committed")
	}
	if ana2.ModuleDescription() != "second analyzer" {
		t.Errorf("unexpected description %q", ana2.ModuleDescription())
	}

	app.Clear()
	if len(analyzers.Modules()) != 0 || reader.Module() != nil {
		t.Error("clear must empty the slots")
	}
}

func TestSetupSlot_SetValueIsStoredOnInitializer(t *testing.T) {
	app := newTestApp(nil)
	app.AddNamespace(testNamespace())

	slot := DefineSetupModule(app, "reader", SetupModuleOptions{Class: "Detector"})
	slot.Set("", "input")
	if err := app.SetValue("count", parameter.Scalar(9)); err != nil {
		t.Fatalf("set value on initializer: %v", err)
	}
	if n := len(slot.Module().Params); n != 1 {
		t.Fatalf("expected one stored parameter, got %d", n)
	}

	if err := app.ChainWithParameters(slot.Modules()...); err != nil {
		t.Fatalf("chain with parameters: %v", err)
	}
	if err := app.AnalysisChain.Run(context.Background(), 1, 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := app.Get("input").Module().(*detector).count; got != 9 {
		t.Errorf("expected count 9, got %d", got)
	}
}
