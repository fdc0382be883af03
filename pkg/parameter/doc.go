// Package parameter provides the parameter model shared by analysis modules,
// the pipeline registry and the document/script generators.
//
// # Overview
//
// A module declares its parameters once, binding each one to a Go variable,
// inside a Set. The Set keeps declaration order, which is the order used when
// parameters are printed, documented or rendered into a configuration script.
//
// Values written from the outside (scripts, pipeline files, interactive
// sessions) travel as a tagged Value so that a caller never has to guess which
// typed setter to call:
//
//	v, err := parameter.FromAny([]any{"a", "b"}) // StringVector
//	err = parameter.Apply(set, "files", v)
//
// # Map parameters
//
// A map parameter is a keyed table whose columns are declared like ordinary
// parameters. Each insertion starts from the column defaults, lets the caller
// fill some columns and stores the resulting Row under the key:
//
//	det := set.Map("detectors", "name", "CdTe")
//	det.Float("threshold", 5.0, parameter.WithUnit(1.0, "keV"))
//	det.Int("channels", 256)
//
//	err := det.Insert("Si", func(s parameter.Setter) error {
//	    return s.SetParam("threshold", 2.5)
//	})
package parameter
