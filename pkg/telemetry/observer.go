package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/anlchain/pkg/chain"
)

// Observer reports chain runs to the telemetry backends: a span per run and
// per phase, phase and run metrics, and events for failures.
type Observer struct {
	tel    *Telemetry
	logger *Logger
}

var _ chain.Observer = (*Observer)(nil)

// Observer returns a chain.Observer backed by t.
func (t *Telemetry) Observer() *Observer {
	return &Observer{tel: t, logger: t.Logger.NewComponentLogger("telemetry")}
}

type runSpanKey struct{}

// RunStarted opens the run span and counts the run.
func (o *Observer) RunStarted(ctx context.Context, run *chain.Run) context.Context {
	ctx, span := o.tel.Tracer.StartRunSpan(ctx, run.ID.String(), string(run.Mode))
	ctx = context.WithValue(ctx, runSpanKey{}, span)

	o.tel.Metrics.RecordRunStarted(string(run.Mode))
	o.publish(Event{
		Type:    EventTypeRunStarted,
		RunID:   run.ID.String(),
		Message: fmt.Sprintf("Run %s started", run.ID),
		Level:   EventLevelInfo,
		Data:    map[string]any{"mode": string(run.Mode), "num_loop": run.NumLoop},
	})
	return o.logger.WithRunID(run.ID.String()).WithContext(ctx)
}

// PhaseStarted opens a child span of the run span.
func (o *Observer) PhaseStarted(ctx context.Context, _ *chain.Run, phase string) context.Context {
	ctx, _ = o.tel.Tracer.StartPhaseSpan(ctx, phase)
	return ctx
}

// PhaseFinished closes the phase span and records the phase outcome.
func (o *Observer) PhaseFinished(ctx context.Context, run *chain.Run, phase chain.PhaseRecord) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(AttrStatus.String(phase.Status.String()))
	if phase.Status.IsOK() {
		RecordSuccess(span)
	} else {
		RecordError(span, fmt.Errorf("%s returned %s", phase.Name, phase.Status))
		o.publish(Event{
			Type:    EventTypePhaseFailed,
			RunID:   run.ID.String(),
			Phase:   phase.Name,
			Message: fmt.Sprintf("%s returned %s", phase.Name, phase.Status),
			Level:   EventLevelError,
		})
	}
	span.End()

	o.tel.Metrics.RecordPhase(phase.Name, phase.Status, phase.Duration)
	FromContext(ctx).WithPhase(phase.Name).zlog.Debug().
		Str("status", phase.Status.String()).
		Dur("duration", phase.Duration).
		Msg("Phase recorded")
}

// RunFinished closes the run span and records the summary.
func (o *Observer) RunFinished(ctx context.Context, run *chain.Run, err error) {
	span := o.runSpan(ctx)
	span.SetAttributes(
		AttrCommitted.Int(run.Committed),
		AttrChainModules.Int(len(run.Modules)),
	)

	o.tel.Metrics.SetChain(len(run.Modules), run.Committed)
	if run.Summary != nil {
		o.tel.Metrics.RecordSummary(*run.Summary)
		span.SetAttributes(AttrEvents.Int(run.Summary.Events))
	}
	if run.Committed > 0 {
		o.publish(Event{
			Type:    EventTypeParamsApplied,
			RunID:   run.ID.String(),
			Message: fmt.Sprintf("%d parameter commands committed", run.Committed),
			Level:   EventLevelInfo,
		})
	}

	status := "ok"
	duration := run.FinishedAt.Sub(run.StartedAt)
	switch {
	case err == nil:
		RecordSuccess(span)
		o.publish(Event{
			Type:    EventTypeRunCompleted,
			RunID:   run.ID.String(),
			Message: fmt.Sprintf("Run %s completed", run.ID),
			Level:   EventLevelInfo,
			Data:    map[string]any{"duration": duration.Seconds()},
		})
	case errors.Is(err, chain.ErrGateRejected):
		status = "rejected"
		RecordError(span, err)
		o.tel.Metrics.RecordGateRejection()
		o.publish(Event{
			Type:    EventTypeGateRejected,
			RunID:   run.ID.String(),
			Message: err.Error(),
			Level:   EventLevelWarning,
		})
	default:
		status = "failed"
		RecordError(span, err)
		o.publish(Event{
			Type:    EventTypeRunFailed,
			RunID:   run.ID.String(),
			Message: err.Error(),
			Level:   EventLevelError,
		})
	}
	span.End()
	o.tel.Metrics.RecordRunCompleted(status, duration)
}

func (o *Observer) runSpan(ctx context.Context) trace.Span {
	if span, ok := ctx.Value(runSpanKey{}).(trace.Span); ok {
		return span
	}
	return trace.SpanFromContext(ctx)
}

func (o *Observer) publish(e Event) {
	if err := o.tel.Events.Publish(e); err != nil {
		o.logger.WithError(err).Warn("Event dropped")
	}
}
