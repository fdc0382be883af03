// Package sample provides small module classes for demonstrations and
// tests: a Gaussian event Generator, a per-channel Calibration, an
// EnergyCut and a Histogram.
//
// Modules created from one namespace share a single event record, so a
// namespace serves one running chain at a time:
//
//	ns := sample.NewNamespace(logger)
//	app.AddNamespace(ns)
//	app.Chain("Generator")
//	app.Chain("Calibration")
//	app.Chain("EnergyCut")
//	app.Chain("Histogram")
package sample

import (
	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/engine"
)

// NamespaceName is the name of the namespace created by NewNamespace.
const NamespaceName = "Sample"

// Event is the record passed along the chain.
type Event struct {
	Number   int
	Channel  string
	Energy   float64
	Position [3]float64
}

// NewNamespace returns a namespace holding the sample classes.
func NewNamespace(logger zerolog.Logger) *chain.Namespace {
	ev := &Event{}
	logger = logger.With().Str("component", "sample").Logger()

	ns := chain.NewNamespace(NamespaceName)
	ns.MustRegister("Generator", func() engine.Module { return NewGenerator(ev) })
	ns.MustRegister("Calibration", func() engine.Module { return NewCalibration(ev, logger) })
	ns.MustRegister("EnergyCut", func() engine.Module { return NewEnergyCut(ev, logger) })
	ns.MustRegister("Histogram", func() engine.Module { return NewHistogram(ev, logger) })
	return ns
}
