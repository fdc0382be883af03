package sample

import (
	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// Calibration applies a linear gain and offset per channel.
type Calibration struct {
	engine.BasicModule

	event    *Event
	logger   zerolog.Logger
	strict   bool
	channels *parameter.MapParam
}

func NewCalibration(ev *Event, logger zerolog.Logger) *Calibration {
	m := &Calibration{event: ev, logger: logger}
	m.BasicModule = engine.NewBasicModule("Calibration", "1.0", func(s *parameter.Set) {
		s.Bool(&m.strict, "strict", parameter.WithDescription("reject events of uncalibrated channels"))
		m.channels = s.Map("channels", "channel", "ch0")
		m.channels.Float("gain", 1.0)
		m.channels.Float("offset", 0.0, parameter.WithUnit(1.0, "keV"))
	})
	return m
}

func (m *Calibration) Prepare() engine.Status {
	if m.channels.Len() == 0 {
		m.logger.Warn().Str("module", m.ModuleID()).Msg("No channel calibration; energies pass unchanged")
	}
	return engine.StatusOK
}

func (m *Calibration) Analyze() engine.Status {
	row, ok := m.channels.Row(m.event.Channel)
	if !ok {
		if m.strict {
			return engine.StatusSkipError
		}
		return engine.StatusOK
	}
	m.event.Energy = m.event.Energy*row.Float("gain") + row.Float("offset")
	return engine.StatusOK
}
