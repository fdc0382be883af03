package sample

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// Histogram counts event energies in equal-width bins. When output is set,
// the histogram is written there as YAML at the end of each run.
type Histogram struct {
	engine.BasicModule

	event  *Event
	logger zerolog.Logger
	bins   int
	min    float64
	max    float64
	output string

	counts    []int
	underflow int
	overflow  int
}

// Bin is one histogram bin in the YAML output.
type Bin struct {
	Low   float64 `yaml:"low"`
	High  float64 `yaml:"high"`
	Count int     `yaml:"count"`
}

// HistogramOutput is the document written to the output file.
type HistogramOutput struct {
	Module    string `yaml:"module"`
	Entries   int    `yaml:"entries"`
	Underflow int    `yaml:"underflow"`
	Overflow  int    `yaml:"overflow"`
	Bins      []Bin  `yaml:"bins"`
}

func NewHistogram(ev *Event, logger zerolog.Logger) *Histogram {
	m := &Histogram{event: ev, logger: logger, bins: 10, max: 200}
	m.BasicModule = engine.NewBasicModule("Histogram", "1.0", func(s *parameter.Set) {
		s.Int(&m.bins, "bins")
		s.Float(&m.min, "min", parameter.WithUnit(1.0, "keV"))
		s.Float(&m.max, "max", parameter.WithUnit(1.0, "keV"))
		s.String(&m.output, "output", parameter.WithDescription("YAML file written at the end of a run"))
	})
	return m
}

func (m *Histogram) Initialize() engine.Status {
	if m.bins <= 0 || m.min >= m.max {
		m.logger.Error().
			Str("module", m.ModuleID()).
			Int("bins", m.bins).
			Float64("min", m.min).
			Float64("max", m.max).
			Msg("Invalid histogram binning")
		return engine.StatusQuitError
	}
	m.counts = make([]int, m.bins)
	return engine.StatusOK
}

func (m *Histogram) BeginRun() engine.Status {
	clear(m.counts)
	m.underflow, m.overflow = 0, 0
	return engine.StatusOK
}

func (m *Histogram) Analyze() engine.Status {
	e := m.event.Energy
	switch {
	case e < m.min:
		m.underflow++
	case e >= m.max:
		m.overflow++
	default:
		i := int((e - m.min) / (m.max - m.min) * float64(len(m.counts)))
		m.counts[min(i, len(m.counts)-1)]++
	}
	return engine.StatusOK
}

func (m *Histogram) EndRun() engine.Status {
	out := m.Output()
	m.logger.Info().
		Str("module", m.ModuleID()).
		Int("entries", out.Entries).
		Int("underflow", out.Underflow).
		Int("overflow", out.Overflow).
		Msg("Histogram filled")

	if m.output == "" {
		return engine.StatusOK
	}
	if err := m.write(out); err != nil {
		m.logger.Error().Err(err).Str("module", m.ModuleID()).Msg("Failed to write histogram")
		return engine.StatusQuitError
	}
	return engine.StatusOK
}

// Output returns the current histogram.
func (m *Histogram) Output() HistogramOutput {
	out := HistogramOutput{
		Module:    m.ModuleID(),
		Underflow: m.underflow,
		Overflow:  m.overflow,
		Bins:      make([]Bin, len(m.counts)),
	}
	width := (m.max - m.min) / float64(max(len(m.counts), 1))
	for i, c := range m.counts {
		out.Bins[i] = Bin{Low: m.min + float64(i)*width, High: m.min + float64(i+1)*width, Count: c}
		out.Entries += c
	}
	return out
}

func (m *Histogram) write(out HistogramOutput) error {
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode histogram: %w", err)
	}
	if err := os.WriteFile(m.output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", m.output, err)
	}
	return nil
}
