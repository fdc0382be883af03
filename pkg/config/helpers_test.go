package config

import (
	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

type detector struct {
	engine.BasicModule

	gain   float64
	count  int
	tags   []string
	levels []float64
	offset parameter.Vector3
	pixels *parameter.MapParam
}

func testNamespaces() map[string]*chain.Namespace {
	ns := chain.NewNamespace("Demo")
	ns.MustRegister("Counter", func() engine.Module {
		m := &detector{gain: 1}
		m.BasicModule = engine.NewBasicModule("Counter", "1.0", func(s *parameter.Set) {
			s.Float(&m.gain, "gain")
			s.Int(&m.count, "count")
			s.StringVector(&m.tags, "tags")
			s.FloatVector(&m.levels, "levels")
			s.Vector3(&m.offset, "offset")
			m.pixels = s.Map("pixels", "pixel", "pixel0")
			m.pixels.Float("threshold", 1.5)
		})
		return m
	})
	return map[string]*chain.Namespace{"demo": ns}
}

const validCUE = `
pipeline: {
	name:     "Demo"
	num_loop: 10
	namespaces: ["demo"]
	modules: [
		{
			class: "Counter"
			params: {
				gain:   2.5
				count:  7
				tags:   ["a", "b"]
				levels: [1, 2.5]
				offset: {vec: [1, 2, 3]}
			}
		},
		{
			class: "Counter"
			id:    "second"
			on:    false
			maps: [{name: "pixels", key: "p1", values: {threshold: 4.0}}]
		},
	]
}
`

const validYAML = `
name: Demo
num_loop: 10
namespaces: [demo]
modules:
  - class: Counter
    params:
      gain: 2.5
      count: 7
      tags: [a, b]
      levels: [1, 2.5]
      offset: {vec: [1, 2, 3]}
  - class: Counter
    id: second
    on: false
    maps:
      - name: pixels
        key: p1
        values:
          threshold: 4.0
`
