package sample

import (
	"math/rand/v2"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// Generator fills the event with a Gaussian energy. Channels are assigned
// round robin.
type Generator struct {
	engine.BasicModule

	event     *Event
	seed      int
	mean      float64
	sigma     float64
	origin    parameter.Vector3
	channels  []string
	maxEvents int

	rng *rand.Rand
}

func NewGenerator(ev *Event) *Generator {
	m := &Generator{
		event:    ev,
		seed:     1,
		mean:     100,
		sigma:    10,
		channels: []string{"ch0"},
	}
	m.BasicModule = engine.NewBasicModule("Generator", "1.0", func(s *parameter.Set) {
		s.Int(&m.seed, "seed")
		s.Float(&m.mean, "mean", parameter.WithUnit(1.0, "keV"), parameter.WithDescription("mean energy"))
		s.Float(&m.sigma, "sigma", parameter.WithUnit(1.0, "keV"))
		s.Vector3(&m.origin, "origin", parameter.WithUnit(1.0, "mm"))
		s.StringVector(&m.channels, "channels")
		s.Int(&m.maxEvents, "max_events", parameter.WithDescription("quit after this many events, 0 for no limit"))
	})
	return m
}

func (m *Generator) Initialize() engine.Status {
	m.rng = rand.New(rand.NewPCG(uint64(m.seed), 0))
	return engine.StatusOK
}

func (m *Generator) BeginRun() engine.Status {
	m.event.Number = 0
	return engine.StatusOK
}

func (m *Generator) Analyze() engine.Status {
	if m.maxEvents > 0 && m.event.Number >= m.maxEvents {
		return engine.StatusQuit
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(uint64(m.seed), 0))
	}

	ev := m.event
	ev.Number++
	ev.Energy = m.mean + m.sigma*m.rng.NormFloat64()
	ev.Position = [3]float64{m.origin.X, m.origin.Y, m.origin.Z}
	ev.Channel = ""
	if len(m.channels) > 0 {
		ev.Channel = m.channels[(ev.Number-1)%len(m.channels)]
	}
	return engine.StatusOK
}
