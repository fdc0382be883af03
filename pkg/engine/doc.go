// Package engine defines the contract between an analysis chain and its
// processing modules, and provides Manager, the in-process engine that runs
// the lifecycle phases.
//
// # Overview
//
// An analysis is an ordered list of modules. The engine drives every module
// through the same phases, always in list order:
//
//  1. Startup - Define parameters and run the Startup hooks
//  2. Prepare - Runs after parameters have been committed
//  3. Initialize - Print the chain and its parameters, run Initialize hooks
//  4. Analyze - BeginRun, the event loop, EndRun and the counter summary
//  5. Exit - Run the Exit hooks
//
// Every hook returns a Status. A phase stops at the first module that does
// not return StatusOK.
//
// # Event Loop
//
// For each event the Analyze hook of every module that is switched on is
// called in order:
//
//   - OK: continue with the next module
//   - SKIP / SKIP_ERROR: abandon the event and go on with the next one
//   - QUIT / QUIT_ERROR: stop the loop
//
// Manager counts entries, successes, skips, errors and quits per module and
// prints the summary at the end of Analyze.
//
// # Modules
//
// Concrete modules embed BasicModule, which implements every hook as a
// no-op and keeps the parameters in a parameter.Set:
//
//	type Threshold struct {
//	    engine.BasicModule
//	    min float64
//	}
//
//	func NewThreshold() *Threshold {
//	    m := &Threshold{}
//	    m.BasicModule = engine.NewBasicModule("Threshold", "1.0", func(s *parameter.Set) {
//	        s.Float(&m.min, "min", parameter.WithUnit(1.0, "keV"))
//	    })
//	    return m
//	}
//
//	func (m *Threshold) Analyze() engine.Status { ... }
//
// # Interactive Sessions
//
// InteractiveCommunication and InteractiveAnalysis read commands line by line
// from the configured input (stdin by default). See the "help" command of each
// session for the command set.
package engine
