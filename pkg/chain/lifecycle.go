package chain

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/openfroyo/anlchain/pkg/engine"
)

// State is the lifecycle state of a chain.
type State int

const (
	StateNotStarted State = iota
	StateStarted
	StateParametersCommitted
	StateRunning
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarted:
		return "started"
	case StateParametersCommitted:
		return "parameters_committed"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// LoopAll runs the event loop until a module quits.
const LoopAll = -1

// ProposedDisplayFrequency returns the progress interval used when none is
// given: 10000 for an unbounded loop, 1 below 100 events, otherwise
// 10^floor(log10(n) - 1.5).
func ProposedDisplayFrequency(numLoop int) int {
	if numLoop < 0 {
		return 10000
	}
	if numLoop < 100 {
		return 1
	}
	exp := int(math.Floor(math.Log10(float64(numLoop)) - 1.5))
	freq := 1
	for i := 0; i < exp; i++ {
		freq *= 10
	}
	return freq
}

// Startup creates a new engine, hands it the modules in order and runs its
// Startup phase. Queued parameter operations are then committed in issue
// order; operations issued afterwards apply immediately.
func (c *AnalysisChain) Startup(ctx context.Context) (engine.Engine, error) {
	eng, err := c.startup(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := c.commit(nil); err != nil {
		return nil, err
	}
	return eng, nil
}

func (c *AnalysisChain) startup(ctx context.Context, run *Run) (engine.Engine, error) {
	c.engine = nil
	eng := c.newEngine()
	if err := eng.SetModules(c.registry.Modules()); err != nil {
		return nil, fmt.Errorf("failed to hand modules to engine: %w", err)
	}
	if err := c.phase(ctx, run, "Startup()", eng.Startup); err != nil {
		return nil, err
	}
	c.engine = eng
	c.state = StateStarted
	return eng, nil
}

// commit flushes the queued parameter operations in the order they were
// issued. It stops at the first failure.
func (c *AnalysisChain) commit(run *Run) error {
	queued := c.queue.Len()
	if err := c.queue.Flush(c.execute); err != nil {
		return err
	}
	c.state = StateParametersCommitted
	if run != nil {
		run.Committed = queued
	}
	c.logger.Debug().Int("commands", queued).Msg("Parameters committed")
	return nil
}

// Run executes the whole lifecycle: startup, parameter commit, Prepare,
// Initialize, the event loop and Exit. numLoop LoopAll runs until a module
// quits; a displayFrequency of zero or less picks one automatically. The
// first phase that does not return OK aborts the run.
func (c *AnalysisChain) Run(ctx context.Context, numLoop, displayFrequency int) error {
	if displayFrequency <= 0 {
		displayFrequency = ProposedDisplayFrequency(numLoop)
	}

	run := c.newRun(RunModeBatch, numLoop, displayFrequency)
	ctx = c.runStarted(ctx, run)
	logger := c.logger.With().Str("run_id", run.ID.String()).Logger()
	logger.Info().Int("modules", c.Len()).Int("num_loop", numLoop).Msg("Starting analysis")

	err := c.run(ctx, run)
	c.runFinished(ctx, run, err)
	if err != nil {
		logger.Error().Err(err).Msg("ANL exception")
		return err
	}
	logger.Info().Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).Msg("Analysis done")
	return nil
}

func (c *AnalysisChain) run(ctx context.Context, run *Run) error {
	eng, err := c.startup(ctx, run)
	if err != nil {
		return err
	}
	if err := c.commit(run); err != nil {
		return err
	}
	if err := c.checkGate(ctx, run); err != nil {
		return err
	}

	if err := c.phase(ctx, run, "Prepare()", eng.Prepare); err != nil {
		return err
	}
	if err := c.phase(ctx, run, "Initialize()", eng.Initialize); err != nil {
		return err
	}

	eng.SetDisplayFrequency(run.DisplayFrequency)
	c.state = StateRunning
	analyze := func() engine.Status { return eng.Analyze(ctx, run.NumLoop, c.threadMode) }
	if err := c.phase(ctx, run, "Analyze()", analyze); err != nil {
		return err
	}
	if err := c.phase(ctx, run, "Exit()", eng.Exit); err != nil {
		return err
	}
	c.state = StateDone
	return nil
}

func (c *AnalysisChain) checkGate(ctx context.Context, run *Run) error {
	modules, err := c.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to snapshot chain: %w", err)
	}
	run.Modules = modules
	if c.gate == nil {
		return nil
	}
	if err := c.gate(ctx, modules); err != nil {
		e := newError(KindGateRejected, "run rejected by gate")
		e.Err = err
		return e
	}
	return nil
}

// Check validates an assembled chain without starting an engine: it defines
// every module, commits the queued parameter operations and applies the
// gate. Module Startup hooks are not called.
func (c *AnalysisChain) Check(ctx context.Context) ([]ModuleSnapshot, error) {
	for _, h := range c.registry.handles {
		if err := h.module.Define(); err != nil {
			return nil, fmt.Errorf("failed to define %s: %w", h.id, err)
		}
	}
	if err := c.commit(nil); err != nil {
		return nil, err
	}
	run := &Run{}
	err := c.checkGate(ctx, run)
	return run.Modules, err
}

// RunInteractive starts the engine, commits parameters, prepares every
// configured module and hands control to the engine's interactive session.
// Failures are logged, not returned.
func (c *AnalysisChain) RunInteractive(ctx context.Context) {
	run := c.newRun(RunModeInteractive, LoopAll, 0)
	ctx = c.runStarted(ctx, run)

	err := c.runInteractive(ctx, run)
	c.runFinished(ctx, run, err)
	if err != nil {
		c.logger.Error().Err(err).Str("run_id", run.ID.String()).Msg("ANL exception")
	}
}

func (c *AnalysisChain) runInteractive(ctx context.Context, run *Run) error {
	eng, err := c.startup(ctx, run)
	if err != nil {
		return err
	}
	if err := c.commit(run); err != nil {
		return err
	}
	if err := c.checkGate(ctx, run); err != nil {
		return err
	}

	for _, h := range c.configured {
		if err := c.phase(ctx, run, h.id+"::Prepare()", h.module.Prepare); err != nil {
			return err
		}
	}

	c.state = StateRunning
	communicate := func() engine.Status { return eng.InteractiveCommunication(ctx) }
	if err := c.phase(ctx, run, "InteractiveCommunication()", communicate); err != nil {
		return err
	}
	analyze := func() engine.Status { return eng.InteractiveAnalysis(ctx) }
	if err := c.phase(ctx, run, "InteractiveAnalysis()", analyze); err != nil {
		return err
	}
	if err := c.phase(ctx, run, "Exit()", eng.Exit); err != nil {
		return err
	}
	c.state = StateDone
	return nil
}

// PrintAllParameters starts the engine, which commits the queued
// assignments, and writes every module's parameters in chain order.
func (c *AnalysisChain) PrintAllParameters(ctx context.Context, w io.Writer) error {
	if _, err := c.Startup(ctx); err != nil {
		return err
	}
	for _, h := range c.registry.handles {
		fmt.Fprintf(w, "--- %s ---\n", h.id)
		if err := h.module.PrintParameters(w); err != nil {
			return fmt.Errorf("failed to print parameters of %s: %w", h.id, err)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// phase runs fn, records its outcome on run and notifies observers. A status
// other than OK becomes an ErrEngineStatus naming the phase.
func (c *AnalysisChain) phase(ctx context.Context, run *Run, name string, fn func() engine.Status) error {
	if run != nil {
		for _, o := range c.observers {
			ctx = o.PhaseStarted(ctx, run, name)
		}
	}

	start := time.Now()
	status := fn()
	rec := PhaseRecord{Name: name, Status: status, StartedAt: start, Duration: time.Since(start)}

	if run != nil {
		run.Phases = append(run.Phases, rec)
		for _, o := range c.observers {
			o.PhaseFinished(ctx, run, rec)
		}
	}
	c.logger.Debug().Str("phase", name).Str("status", status.String()).Dur("duration", rec.Duration).Msg("Phase finished")

	if !status.IsOK() {
		return engineStatusError(name, status)
	}
	return nil
}
