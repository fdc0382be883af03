package chain

import (
	"context"
	"fmt"
)

// AppSetupFunc assembles the chain of an application.
type AppSetupFunc func(app *App) error

// App is a named chain whose modules are assembled by a setup function each
// time it runs.
type App struct {
	*AnalysisChain

	name  string
	setup AppSetupFunc
	slots map[string]*SetupSlot
}

// NewApp creates an application.
func NewApp(name string, setup AppSetupFunc, opts ...Option) *App {
	return &App{
		AnalysisChain: New(opts...),
		name:          name,
		setup:         setup,
		slots:         make(map[string]*SetupSlot),
	}
}

// Name returns the application name.
func (a *App) Name() string { return a.name }

// Setup runs the setup function once against the chain.
func (a *App) Setup() error {
	if a.setup == nil {
		return nil
	}
	if err := a.setup(a); err != nil {
		return fmt.Errorf("setup of %s failed: %w", a.name, err)
	}
	return nil
}

// Clear empties the chain and every setup slot.
func (a *App) Clear() {
	a.AnalysisChain.Clear()
	for _, s := range a.slots {
		s.Reset()
	}
}

// Run assembles the chain and runs it. A chain left over from a completed
// run is cleared first.
func (a *App) Run(ctx context.Context, numLoop, displayFrequency int) error {
	if a.State() == StateDone {
		a.Clear()
	}
	if err := a.Setup(); err != nil {
		return err
	}
	return a.AnalysisChain.Run(ctx, numLoop, displayFrequency)
}

// RunInteractive assembles the chain and starts an interactive session.
func (a *App) RunInteractive(ctx context.Context) {
	if a.State() == StateDone {
		a.Clear()
	}
	if err := a.Setup(); err != nil {
		a.logger.Error().Err(err).Msg("ANL exception")
		return
	}
	a.AnalysisChain.RunInteractive(ctx)
}
