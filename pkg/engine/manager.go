package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Manager is the in-process reference Engine. It runs every lifecycle phase
// over the module list in order, keeps per-module counters during Analyze and
// writes the human readable tables to its output.
type Manager struct {
	modules          []Module
	counters         []ModuleCounters
	events           int
	lastStatus       Status
	displayFrequency int
	out              io.Writer
	in               LineReader
	logger           zerolog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithOutput sets the writer used for tables and progress lines.
func WithOutput(w io.Writer) ManagerOption {
	return func(m *Manager) { m.out = w }
}

// WithInput sets the source of interactive commands.
func WithInput(r io.Reader) ManagerOption {
	return func(m *Manager) { m.in = NewLineReader(r) }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager writing to stdout and reading from stdin.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		displayFrequency: 1,
		out:              os.Stdout,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.in == nil {
		m.in = NewLineReader(os.Stdin)
	}
	m.logger = m.logger.With().Str("component", "anl-manager").Logger()
	return m
}

// SetModules takes the ordered module list. Module identities must be unique.
func (m *Manager) SetModules(modules []Module) error {
	seen := make(map[string]bool, len(modules))
	for _, mod := range modules {
		if seen[mod.ModuleID()] {
			return fmt.Errorf("%w: %s", ErrDuplicateModule, mod.ModuleID())
		}
		seen[mod.ModuleID()] = true
	}
	m.modules = append([]Module(nil), modules...)
	m.counters = make([]ModuleCounters, len(modules))
	m.resetCounters()
	return nil
}

// Modules returns the module list.
func (m *Manager) Modules() []Module {
	return m.modules
}

// SetDisplayFrequency sets how often the "Event :" progress line is printed.
func (m *Manager) SetDisplayFrequency(n int) {
	m.displayFrequency = n
}

// DisplayFrequency returns the current display frequency.
func (m *Manager) DisplayFrequency() int {
	return m.displayFrequency
}

// Startup defines every module and runs the Startup hooks.
func (m *Manager) Startup() Status {
	m.banner("ANL Chain")
	for _, mod := range m.modules {
		if err := mod.Define(); err != nil {
			m.logger.Error().Err(err).Str("module", mod.ModuleID()).Msg("Parameter definition failed")
			return StatusQuitError
		}
	}
	return m.routine("Startup", Module.Startup)
}

// Prepare runs the Prepare hooks.
func (m *Manager) Prepare() Status {
	return m.routine("Prepare", Module.Prepare)
}

// Initialize prints the chain and its parameters, then runs the Initialize hooks.
func (m *Manager) Initialize() Status {
	m.ShowAnalysis()
	m.PrintParameters()
	m.resetCounters()

	status := m.routine("Initialize", Module.Initialize)
	if status.IsOK() {
		m.printf("anlchain: initialization done.\n")
	}
	return status
}

// Analyze runs BeginRun, the event loop and EndRun. Only SKIP_ERROR and
// QUIT_ERROR from the event loop are reported; a module quitting normally
// still lets EndRun run.
//
// In thread mode the event loop runs on its own goroutine and stops between
// events once ctx is cancelled.
func (m *Manager) Analyze(ctx context.Context, numEvents int, threadMode bool) Status {
	m.lastStatus = StatusOK
	m.printf("anlchain: start begin-run routine.\n")
	status := m.routine("BeginRun", Module.BeginRun)
	if !status.IsOK() {
		return m.finishAnalysis(status)
	}

	m.printf("anlchain: start analysis.\n")
	m.printf("Analysis Begin  | Time: %s\n", time.Now().Format(time.ANSIC))
	if threadMode {
		status = m.processInWorker(ctx, numEvents)
	} else {
		status = m.process(numEvents, nil)
	}
	m.printf("Analysis End    | Time: %s\n", time.Now().Format(time.ANSIC))
	if !status.IsOK() {
		return m.finishAnalysis(status)
	}

	m.printf("anlchain: start end-run routine.\n")
	status = m.routine("EndRun", Module.EndRun)
	return m.finishAnalysis(status)
}

func (m *Manager) finishAnalysis(status Status) Status {
	m.lastStatus = status
	m.printf("\n")
	m.PrintSummary()
	return status
}

// Exit runs the Exit hooks.
func (m *Manager) Exit() Status {
	status := m.routine("Exit", Module.Exit)
	if status.IsOK() {
		m.printf("\nanlchain: exiting...\n")
	}
	return status
}

func (m *Manager) processInWorker(ctx context.Context, numEvents int) Status {
	var stop atomic.Bool
	done := make(chan Status, 1)
	go func() {
		done <- m.process(numEvents, &stop)
	}()

	select {
	case status := <-done:
		return status
	case <-ctx.Done():
		stop.Store(true)
		status := <-done
		m.logger.Warn().Int("events", m.events).Msg("Analysis interrupted")
		return status
	}
}

// process is the event loop.
func (m *Manager) process(numEvents int, stop *atomic.Bool) (status Status) {
	disp := m.displayFrequency
	if disp <= 0 {
		disp = 1
	}

	m.events = 0
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Int("event", m.events).Msg("Module panicked during analysis")
			status = StatusQuitError
		}
	}()

	for numEvents < 0 || m.events < numEvents {
		if stop != nil && stop.Load() {
			break
		}
		if m.events%disp == 0 {
			m.printf("Event : %10d\n", m.events)
		}

		status = StatusOK
		index := 0
		for ; index < len(m.modules); index++ {
			mod := m.modules[index]
			if !mod.IsOn() {
				continue
			}
			m.counters[index].Entry++
			status = mod.Analyze()
			if !status.IsOK() {
				break
			}
			m.counters[index].OK++
		}

		stopLoop := false
		switch status {
		case StatusOK:
		case StatusSkip:
			m.counters[index].Skip++
		case StatusSkipError:
			m.counters[index].Skip++
			m.counters[index].Error++
		case StatusQuit:
			m.counters[index].Quit++
			stopLoop = true
		case StatusQuitError:
			m.counters[index].Quit++
			m.counters[index].Error++
			stopLoop = true
		default:
			m.logger.Error().Str("module", m.modules[index].ModuleID()).
				Int("status", int(status)).Msg("Unknown status from Analyze")
			stopLoop = true
		}
		if stopLoop {
			break
		}
		m.events++
	}

	if status.IsError() {
		return status
	}
	return StatusOK
}

// routine calls fn on every module in order and stops at the first non-OK status.
func (m *Manager) routine(name string, fn func(Module) Status) Status {
	for _, mod := range m.modules {
		status := fn(mod)
		if !status.IsOK() {
			m.logger.Error().
				Str("module", mod.ModuleID()).
				Str("routine", name).
				Str("status", status.String()).
				Msg("Module routine failed")
			m.printf("%s::%s() returned %s\n", mod.ModuleID(), name, status)
			return status
		}
	}
	return StatusOK
}

func (m *Manager) resetCounters() {
	for i := range m.counters {
		m.counters[i] = ModuleCounters{ModuleID: m.modules[i].ModuleID()}
	}
	m.events = 0
}

// Summary returns the counters of the last Analyze call.
func (m *Manager) Summary() Summary {
	return Summary{
		Events:  m.events,
		Status:  m.lastStatus,
		Modules: append([]ModuleCounters(nil), m.counters...),
	}
}

func (m *Manager) banner(title string) {
	m.printf("\n      ***********************************\n")
	m.printf("      ****  %-25s****\n", centre(title, 25))
	m.printf("      ***********************************\n\n")
}

func centre(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s
}

// ShowAnalysis prints the module table.
func (m *Manager) ShowAnalysis() {
	m.banner("Analysis chain")
	if len(m.modules) == 0 {
		m.printf("No analysis chain is defined.\n\n")
		return
	}
	m.printf(" ID     %-40s  %-9s  %s\n", "Module ID", "Version", "ON/OFF")
	m.printf("%s\n", strings.Repeat("-", 68))
	for i, mod := range m.modules {
		onOff := "OFF"
		if mod.IsOn() {
			onOff = "ON"
		}
		m.printf("%4d    %-40s  %-9s  %s\n", i, mod.ModuleID(), mod.ModuleVersion(), onOff)
	}
	m.printf("\n")
}

// PrintParameters prints the parameters of every module.
func (m *Manager) PrintParameters() {
	m.banner("Module parameters")
	for _, mod := range m.modules {
		m.printModuleParameters(mod)
		m.printf("\n")
	}
}

func (m *Manager) printModuleParameters(mod Module) {
	m.printf("--- %s ---\n", mod.ModuleID())
	if err := mod.PrintParameters(m.out); err != nil {
		m.logger.Error().Err(err).Str("module", mod.ModuleID()).Msg("Failed to print parameters")
	}
}

// PrintSummary prints the counters of the last event loop.
func (m *Manager) PrintSummary() {
	m.printf("      ***********************************\n")
	m.printf("      ****      Analysis chain      *****\n")
	m.printf("      ***********************************\n")
	if len(m.modules) == 0 {
		m.printf("               (empty)\n\n")
		return
	}
	m.printf("               PUT: %d\n", m.counters[0].Entry)
	m.printf("                |\n")
	for i, mod := range m.modules {
		c := m.counters[i]
		label := mod.ModuleID() + "  version  " + mod.ModuleVersion()
		line := fmt.Sprintf("     [%3d]  %-40s", i, label)
		if c.Quit > 0 {
			line += "  ---> Quit"
		}
		m.printf("%s\n", line)
		m.printf("    %10d  |  OK: %d  SKIP: %d  ERR: %d\n", c.Entry, c.OK, c.Skip, c.Error)
	}
	m.printf("               GET: %d\n\n", m.counters[len(m.counters)-1].OK)
}

func (m *Manager) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}
