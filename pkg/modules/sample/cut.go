package sample

import (
	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// EnergyCut skips events outside [low, high).
type EnergyCut struct {
	engine.BasicModule

	event  *Event
	logger zerolog.Logger
	low    float64
	high   float64

	passed int
}

func NewEnergyCut(ev *Event, logger zerolog.Logger) *EnergyCut {
	m := &EnergyCut{event: ev, logger: logger, high: 1000}
	m.BasicModule = engine.NewBasicModule("EnergyCut", "1.0", func(s *parameter.Set) {
		s.Float(&m.low, "low", parameter.WithUnit(1.0, "keV"))
		s.Float(&m.high, "high", parameter.WithUnit(1.0, "keV"))
	})
	return m
}

func (m *EnergyCut) Prepare() engine.Status {
	if m.low >= m.high {
		m.logger.Error().
			Str("module", m.ModuleID()).
			Float64("low", m.low).
			Float64("high", m.high).
			Msg("Empty energy window")
		return engine.StatusQuitError
	}
	return engine.StatusOK
}

func (m *EnergyCut) BeginRun() engine.Status {
	m.passed = 0
	return engine.StatusOK
}

func (m *EnergyCut) Analyze() engine.Status {
	if m.event.Energy < m.low || m.event.Energy >= m.high {
		return engine.StatusSkip
	}
	m.passed++
	return engine.StatusOK
}

// Passed returns the number of events inside the window in the last run.
func (m *EnergyCut) Passed() int { return m.passed }
