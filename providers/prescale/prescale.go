// Package main implements the Prescale analysis module for anlchain.
// It keeps one event out of every N and compiles to WASM:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o prescale.wasm .
//
// The module is described by prescale.yaml and is loaded from the module
// directory of anlchain.
package main

import "fmt"

// Status codes returned by the hooks.
const (
	statusOK        int32 = 0
	statusSkip      int32 = 1
	statusQuitError int32 = 4
)

// Positions of the parameters in prescale.yaml.
const (
	paramEvery  = 0
	paramOffset = 1
	paramQuiet  = 2
)

// Prescaler decides which events are kept.
type Prescaler struct {
	Every  uint64
	Offset uint64

	kept uint64
	seen uint64
}

// Validate checks the configuration before the event loop.
func (p *Prescaler) Validate() error {
	if p.Every == 0 {
		return fmt.Errorf("every must be positive")
	}
	if p.Offset >= p.Every {
		return fmt.Errorf("offset %d must be below every %d", p.Offset, p.Every)
	}
	return nil
}

// Reset clears the counters at the beginning of a run.
func (p *Prescaler) Reset() {
	p.kept, p.seen = 0, 0
}

// Keep reports whether the event with the given 1-based number passes.
func (p *Prescaler) Keep(event uint64) bool {
	p.seen++
	if (event-1)%p.Every != p.Offset {
		return false
	}
	p.kept++
	return true
}

// Summary is logged at the end of a run.
func (p *Prescaler) Summary() string {
	return fmt.Sprintf("prescale 1/%d kept %d of %d events", p.Every, p.kept, p.seen)
}

// The hooks are exported from main.go; a reactor module needs no main body.
func main() {}
