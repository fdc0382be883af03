package chain

import (
	"bytes"
	"context"

	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// detector is a module with one parameter of every shape.
type detector struct {
	engine.BasicModule

	gain     float64
	count    int
	label    string
	enabled  bool
	tags     []string
	weights  []float64
	channels []int
	offset   parameter.Vector2
	position parameter.Vector3
	pixels   *parameter.MapParam

	prepared int
}

func newDetector() engine.Module {
	m := &detector{
		gain:     1.0,
		count:    3,
		label:    "det",
		tags:     []string{"x", "y"},
		weights:  []float64{0.5, 1.5},
		channels: []int{1, 2},
	}
	m.BasicModule = engine.NewBasicModule("Detector", "1.2", func(s *parameter.Set) {
		s.Float(&m.gain, "gain", parameter.WithUnit(1.0, "keV"), parameter.WithDescription("energy gain"))
		s.Int(&m.count, "count")
		s.String(&m.label, "label")
		s.Bool(&m.enabled, "enabled")
		s.StringVector(&m.tags, "tags")
		s.FloatVector(&m.weights, "weights")
		s.IntVector(&m.channels, "channels")
		s.Vector2(&m.offset, "offset")
		s.Vector3(&m.position, "position", parameter.WithUnit(10.0, "mm"))
		m.pixels = s.Map("pixels", "pixel", "p0")
		m.pixels.Float("threshold", 2.0)
		m.pixels.String("kind", "si")
	})
	return m
}

func (m *detector) Prepare() engine.Status {
	m.prepared++
	return engine.StatusOK
}

// fakeEngine records the phases it is asked to run and returns the
// configured status for each of them.
type fakeEngine struct {
	modules          []engine.Module
	statuses         map[string]engine.Status
	calls            []string
	numEvents        int
	threadMode       bool
	displayFrequency int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{statuses: make(map[string]engine.Status)}
}

func (e *fakeEngine) status(phase string) engine.Status {
	e.calls = append(e.calls, phase)
	return e.statuses[phase]
}

func (e *fakeEngine) SetModules(modules []engine.Module) error {
	e.modules = modules
	return nil
}

func (e *fakeEngine) Startup() engine.Status {
	for _, m := range e.modules {
		if err := m.Define(); err != nil {
			return engine.StatusQuitError
		}
	}
	return e.status("Startup")
}

func (e *fakeEngine) Prepare() engine.Status    { return e.status("Prepare") }
func (e *fakeEngine) Initialize() engine.Status { return e.status("Initialize") }
func (e *fakeEngine) Exit() engine.Status       { return e.status("Exit") }

func (e *fakeEngine) Analyze(_ context.Context, numEvents int, threadMode bool) engine.Status {
	e.numEvents = numEvents
	e.threadMode = threadMode
	return e.status("Analyze")
}

func (e *fakeEngine) SetDisplayFrequency(n int) { e.displayFrequency = n }

func (e *fakeEngine) InteractiveCommunication(context.Context) engine.Status {
	return e.status("InteractiveCommunication")
}

func (e *fakeEngine) InteractiveAnalysis(context.Context) engine.Status {
	return e.status("InteractiveAnalysis")
}

func (e *fakeEngine) Summary() engine.Summary {
	return engine.Summary{Events: e.numEvents}
}

// newTestChain returns a chain whose engines are fakes; the last engine
// created is returned through the pointer.
func newTestChain(opts ...Option) (*AnalysisChain, **fakeEngine, *bytes.Buffer) {
	var last *fakeEngine
	var out bytes.Buffer
	opts = append([]Option{
		WithOutput(&out),
		WithLogger(zerolog.Nop()),
		WithEngineFactory(func() engine.Engine {
			last = newFakeEngine()
			return last
		}),
	}, opts...)
	return New(opts...), &last, &out
}

// testNamespace provides the Detector class.
func testNamespace() *Namespace {
	ns := NewNamespace("Test")
	ns.MustRegister("Detector", newDetector)
	return ns
}

func detectorWithID(id string) engine.Module {
	m := newDetector()
	m.SetModuleID(id)
	return m
}

// recorder is an Observer keeping the phase names it was told about.
type recorder struct {
	started  int
	phases   []string
	finished []error
}

func (r *recorder) RunStarted(ctx context.Context, _ *Run) context.Context {
	r.started++
	return ctx
}

func (r *recorder) PhaseStarted(ctx context.Context, _ *Run, _ string) context.Context {
	return ctx
}

func (r *recorder) PhaseFinished(_ context.Context, _ *Run, phase PhaseRecord) {
	r.phases = append(r.phases, phase.Name+"="+phase.Status.String())
}

func (r *recorder) RunFinished(_ context.Context, _ *Run, err error) {
	r.finished = append(r.finished, err)
}
