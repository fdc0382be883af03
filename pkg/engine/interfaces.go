package engine

import (
	"context"
	"io"

	"github.com/openfroyo/anlchain/pkg/parameter"
)

// Module is a processing stage of an analysis chain.
//
// The parameter setters are only valid after Define has run; BasicModule
// calls it lazily. Lifecycle hooks are called by an Engine in chain order.
type Module interface {
	parameter.Setter

	// ModuleID is the identity of the module inside a chain.
	ModuleID() string
	SetModuleID(id string)

	// ModuleName is the class name; it is the default identity.
	ModuleName() string
	ModuleVersion() string
	ModuleDescription() string
	SetModuleDescription(description string)

	// Define declares the module parameters. It must be idempotent.
	Define() error

	// Parameters returns the parameter descriptors in declaration order.
	Parameters() []parameter.Descriptor

	// InsertMap adds one entry to a map parameter.
	InsertMap(name, key string, fill func(parameter.Setter) error) error

	// PrintParameters writes the current parameter values.
	PrintParameters(w io.Writer) error

	Startup() Status
	Prepare() Status
	Initialize() Status
	BeginRun() Status
	Analyze() Status
	EndRun() Status
	Exit() Status

	IsOn() bool
	SetOn(on bool)
}

// Communicator is implemented by modules that take part in the "mod"
// command of an interactive session.
type Communicator interface {
	Communicate(in LineReader, out io.Writer) Status
}

// LineReader reads one line of user input at a time.
type LineReader interface {
	// ReadLine returns the next line without its terminator and false once
	// the input is exhausted.
	ReadLine() (string, bool)
}

// Engine drives the lifecycle phases over an ordered list of modules.
type Engine interface {
	// SetModules hands the ordered module list to the engine.
	SetModules(modules []Module) error

	Startup() Status
	Prepare() Status
	Initialize() Status

	// Analyze runs numEvents events; a negative count runs until a module
	// quits or ctx is cancelled.
	Analyze(ctx context.Context, numEvents int, threadMode bool) Status

	Exit() Status

	SetDisplayFrequency(n int)

	InteractiveCommunication(ctx context.Context) Status
	InteractiveAnalysis(ctx context.Context) Status
}

// Reporter is implemented by engines that keep per-module counters.
type Reporter interface {
	Summary() Summary
}

// Summary holds the counters of the last Analyze call.
type Summary struct {
	Events  int              `json:"events"`
	Status  Status           `json:"status"`
	Modules []ModuleCounters `json:"modules"`
}

// ModuleCounters counts the outcomes of one module's Analyze hook.
type ModuleCounters struct {
	ModuleID string `json:"module_id"`
	Entry    int    `json:"entry"`
	OK       int    `json:"ok"`
	Skip     int    `json:"skip"`
	Error    int    `json:"error"`
	Quit     int    `json:"quit"`
}
