package stores

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/chain"
)

// Recorder is a chain.Observer that saves every finished run to a Store.
// Save failures are logged; they never fail the run.
type Recorder struct {
	store    Store
	pipeline string
	logger   zerolog.Logger
}

var _ chain.Observer = (*Recorder)(nil)

// NewRecorder returns a Recorder tagging runs with the pipeline name.
func NewRecorder(store Store, pipeline string, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		pipeline: pipeline,
		logger:   logger.With().Str("component", "history").Logger(),
	}
}

func (r *Recorder) RunStarted(ctx context.Context, _ *chain.Run) context.Context { return ctx }

func (r *Recorder) PhaseStarted(ctx context.Context, _ *chain.Run, _ string) context.Context {
	return ctx
}

func (r *Recorder) PhaseFinished(context.Context, *chain.Run, chain.PhaseRecord) {}

// RunFinished saves the run. The save outlives a cancelled run context.
func (r *Recorder) RunFinished(ctx context.Context, run *chain.Run, err error) {
	rec := FromChainRun(run, r.pipeline, err)
	if serr := r.store.SaveRun(context.WithoutCancel(ctx), rec); serr != nil {
		r.logger.Error().Err(serr).Str("run_id", rec.ID).Msg("Failed to record run")
		return
	}
	r.logger.Debug().Str("run_id", rec.ID).Str("status", string(rec.Status)).Msg("Run recorded")
}

// FromChainRun converts a finished chain run into its stored form.
func FromChainRun(run *chain.Run, pipeline string, err error) *Run {
	rec := &Run{
		ID:               run.ID.String(),
		Pipeline:         pipeline,
		Mode:             string(run.Mode),
		Status:           RunStatusCompleted,
		NumLoop:          run.NumLoop,
		DisplayFrequency: run.DisplayFrequency,
		ThreadMode:       run.ThreadMode,
		Committed:        run.Committed,
		StartedAt:        run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		rec.FinishedAt = &finished
	}
	switch {
	case err == nil:
	case errors.Is(err, chain.ErrGateRejected):
		rec.Status = RunStatusRejected
	default:
		rec.Status = RunStatusFailed
	}
	if run.Error != "" {
		msg := run.Error
		rec.Error = &msg
	}

	for _, p := range run.Phases {
		rec.Phases = append(rec.Phases, Phase{
			Name:      p.Name,
			Status:    p.Status.String(),
			StartedAt: p.StartedAt,
			Duration:  p.Duration,
		})
	}

	counters := map[string]int{}
	if run.Summary != nil {
		rec.Events = run.Summary.Events
		for i, c := range run.Summary.Modules {
			counters[c.ModuleID] = i
		}
	}
	for _, m := range run.Modules {
		mod := Module{
			Index:       m.Index,
			ID:          m.ID,
			Class:       m.Class,
			Version:     m.Version,
			Description: m.Description,
			On:          m.On,
		}
		if i, ok := counters[m.ID]; ok {
			c := run.Summary.Modules[i]
			mod.Entry, mod.OK, mod.Skip, mod.Error, mod.Quit = c.Entry, c.OK, c.Skip, c.Error, c.Quit
		}
		for _, p := range m.Parameters {
			mod.Parameters = append(mod.Parameters, Parameter{
				Name:    p.Name,
				Type:    p.Type,
				Unit:    p.Unit,
				Value:   p.Value,
				Default: p.Default,
			})
		}
		rec.Modules = append(rec.Modules, mod)
	}
	return rec
}
