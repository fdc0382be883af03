package chain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// RunMode tells how a run was driven.
type RunMode string

const (
	RunModeBatch       RunMode = "batch"
	RunModeInteractive RunMode = "interactive"
)

// PhaseRecord is the outcome of one lifecycle phase.
type PhaseRecord struct {
	Name      string        `json:"name"`
	Status    engine.Status `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Run describes one execution of a chain.
type Run struct {
	ID               uuid.UUID        `json:"id"`
	Mode             RunMode          `json:"mode"`
	NumLoop          int              `json:"num_loop"`
	DisplayFrequency int              `json:"display_frequency"`
	ThreadMode       bool             `json:"thread_mode"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
	Committed        int              `json:"committed"`
	Modules          []ModuleSnapshot `json:"modules,omitempty"`
	Phases           []PhaseRecord    `json:"phases,omitempty"`
	Summary          *engine.Summary  `json:"summary,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// Succeeded reports whether the run finished without error.
func (r *Run) Succeeded() bool {
	return !r.FinishedAt.IsZero() && r.Error == ""
}

// Observer is notified about runs and their phases. PhaseStarted and
// RunStarted may return a derived context that is passed to the matching
// finish call.
type Observer interface {
	RunStarted(ctx context.Context, run *Run) context.Context
	PhaseStarted(ctx context.Context, run *Run, phase string) context.Context
	PhaseFinished(ctx context.Context, run *Run, phase PhaseRecord)
	RunFinished(ctx context.Context, run *Run, err error)
}

// Gate inspects the configured chain after parameters are committed and
// before Prepare. A non-nil error aborts the run.
type Gate func(ctx context.Context, modules []ModuleSnapshot) error

// ParameterSnapshot is the committed state of one parameter.
type ParameterSnapshot struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Unit    string `json:"unit,omitempty"`
	Value   string `json:"value"`
	Default string `json:"default"`
}

// ModuleSnapshot is the state of one module at a point in time.
type ModuleSnapshot struct {
	Index       int                 `json:"index"`
	ID          string              `json:"id"`
	Class       string              `json:"class"`
	Version     string              `json:"version"`
	Description string              `json:"description,omitempty"`
	On          bool                `json:"on"`
	Parameters  []ParameterSnapshot `json:"parameters"`
}

// Parameter returns the snapshot of a named parameter.
func (m ModuleSnapshot) Parameter(name string) (ParameterSnapshot, bool) {
	for _, p := range m.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSnapshot{}, false
}

// Snapshot captures every module in order. Parameter definitions are
// materialized if needed.
func (c *AnalysisChain) Snapshot() ([]ModuleSnapshot, error) {
	out := make([]ModuleSnapshot, 0, c.registry.Len())
	for i, h := range c.registry.handles {
		snap, err := snapshotModule(i, h)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func snapshotModule(index int, h *Handle) (ModuleSnapshot, error) {
	m := h.module
	if err := m.Define(); err != nil {
		return ModuleSnapshot{}, err
	}
	snap := ModuleSnapshot{
		Index:       index,
		ID:          h.id,
		Class:       m.ModuleName(),
		Version:     m.ModuleVersion(),
		Description: m.ModuleDescription(),
		On:          m.IsOn(),
	}
	for _, d := range m.Parameters() {
		snap.Parameters = append(snap.Parameters, snapshotParameter(d))
	}
	return snap, nil
}

func snapshotParameter(d parameter.Descriptor) ParameterSnapshot {
	return ParameterSnapshot{
		Name:    d.Name(),
		Type:    d.TypeName(),
		Unit:    d.UnitName(),
		Value:   d.ValueString(),
		Default: d.DefaultString(),
	}
}

func (c *AnalysisChain) newRun(mode RunMode, numLoop, displayFrequency int) *Run {
	return &Run{
		ID:               uuid.New(),
		Mode:             mode,
		NumLoop:          numLoop,
		DisplayFrequency: displayFrequency,
		ThreadMode:       c.threadMode,
		StartedAt:        time.Now(),
	}
}

func (c *AnalysisChain) runStarted(ctx context.Context, run *Run) context.Context {
	for _, o := range c.observers {
		ctx = o.RunStarted(ctx, run)
	}
	return ctx
}

func (c *AnalysisChain) runFinished(ctx context.Context, run *Run, err error) {
	run.FinishedAt = time.Now()
	if err != nil {
		run.Error = err.Error()
	}
	if r, ok := c.engine.(engine.Reporter); ok {
		summary := r.Summary()
		run.Summary = &summary
	}
	for _, o := range c.observers {
		o.RunFinished(ctx, run, err)
	}
}
