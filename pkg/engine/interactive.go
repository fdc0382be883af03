package engine

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
)

const prompt = "anl> "

type lineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader reads newline separated input from r.
func NewLineReader(r io.Reader) LineReader {
	return &lineReader{scanner: bufio.NewScanner(r)}
}

func (l *lineReader) ReadLine() (string, bool) {
	if !l.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(l.scanner.Text()), true
}

// InteractiveCommunication runs the configuration session that precedes
// initialization. "init" ends it with OK, "quit" with QUIT and the end of
// input with QUIT_ERROR.
func (m *Manager) InteractiveCommunication(ctx context.Context) Status {
	status := StatusOK
	m.printf("\n ** type \"help\" if you need. ** \n\n")

	for {
		if ctx.Err() != nil {
			return StatusQuit
		}
		m.printf("%s", prompt)
		line, ok := m.in.ReadLine()
		if !ok {
			return StatusQuitError
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		cmd, args := fields[0], fields[1:]
		switch cmd {
		case "quit":
			m.printf("anlchain quitting...\n")
			return StatusQuit
		case "init":
			return status
		case "help":
			m.communicationHelp()
		case "chain":
			m.ShowAnalysis()
		case "show":
			m.ShowAnalysis()
			m.interactivePrint(-1)
		case "rev":
			status = m.interactiveModify(-1)
		case "mod", "print", "on", "off":
			if len(args) == 0 {
				m.printf("usage: %s <module_id>\n", cmd)
				continue
			}
			n, found := m.moduleIndex(args[0])
			if !found {
				continue
			}
			switch cmd {
			case "mod":
				status = m.interactiveModify(n)
			case "print":
				m.interactivePrint(n)
			case "on":
				m.interactiveSwitch(n, true)
			case "off":
				m.interactiveSwitch(n, false)
			}
		default:
			m.printf("command not found.\n")
		}
	}
}

func (m *Manager) communicationHelp() {
	m.printf("-------------------------------------------------------\n" +
		"  help              : show this help\n" +
		"  chain             : show analysis chain\n" +
		"  show              : show analysis chain\n" +
		"                      and all parameters\n" +
		"  print <module_id> : show parameters of the module\n" +
		"  rev               : review parameters of all modules\n" +
		"                      (same as \"mod -1\")\n" +
		"  mod <module_id>   : modify parameters of the module\n" +
		"  on <module_id>    : switch on the module\n" +
		"  off <module_id>   : switch off the module\n" +
		"  init              : initialize to start analysis\n" +
		"  quit              : quit this program\n" +
		"\n" +
		"   <module_id> = -1 for all\n" +
		"-------------------------------------------------------\n\n")
}

// moduleIndex resolves a numeric index (-1 for all) or a case-insensitive
// prefix of a module identity.
func (m *Manager) moduleIndex(arg string) (int, bool) {
	if n, err := strconv.Atoi(arg); err == nil {
		return n, true
	}

	found := -1
	prefix := strings.ToLower(arg)
	for i, mod := range m.modules {
		if strings.HasPrefix(strings.ToLower(mod.ModuleID()), prefix) {
			if found != -1 {
				m.printf("Module %s is ambiguous.\n", arg)
				return 0, false
			}
			found = i
		}
	}
	if found == -1 {
		m.printf("Module %s is not found.\n", arg)
		return 0, false
	}
	return found, true
}

func (m *Manager) inRange(n int) bool {
	if n < 0 || n >= len(m.modules) {
		m.printf("Module index %d is out of range.\n", n)
		return false
	}
	return true
}

func (m *Manager) interactiveModify(n int) Status {
	status := StatusOK
	if n == -1 {
		for _, mod := range m.modules {
			if !mod.IsOn() {
				continue
			}
			status = m.communicate(mod)
			m.printf("\n")
		}
		return status
	}
	if !m.inRange(n) {
		return status
	}
	return m.communicate(m.modules[n])
}

func (m *Manager) communicate(mod Module) Status {
	c, ok := mod.(Communicator)
	if !ok {
		m.printf("%s has no interactive parameters.\n", mod.ModuleID())
		return StatusOK
	}
	m.printf("%s communicate\n", mod.ModuleID())
	status := c.Communicate(m.in, m.out)
	if !status.IsOK() {
		m.printf("%s communicate returned %s\n", mod.ModuleID(), status)
	}
	return status
}

func (m *Manager) interactivePrint(n int) {
	if n == -1 {
		m.PrintParameters()
		return
	}
	if m.inRange(n) {
		m.printModuleParameters(m.modules[n])
	}
}

func (m *Manager) interactiveSwitch(n int, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	if n == -1 {
		for _, mod := range m.modules {
			mod.SetOn(on)
			m.printf("%s turned %s.\n", mod.ModuleID(), state)
		}
		return
	}
	if m.inRange(n) {
		m.modules[n].SetOn(on)
		m.printf("%s turned %s.\n", m.modules[n].ModuleID(), state)
	}
}

// InteractiveAnalysis runs the analysis session: "run <N> [display]" starts
// an event loop in thread mode and "exit" leaves the session. The status of
// the last run is returned.
func (m *Manager) InteractiveAnalysis(ctx context.Context) Status {
	status := StatusOK
	m.printf("\n ** type \"help\" if you need. ** \n\n")

	for {
		if ctx.Err() != nil {
			return status
		}
		m.printf("%s", prompt)
		line, ok := m.in.ReadLine()
		if !ok {
			return StatusQuitError
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit":
			return status
		case "help":
			m.analysisHelp()
		case "run":
			if len(fields) < 2 {
				m.runUsage()
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				m.runUsage()
				continue
			}
			if len(fields) > 2 {
				if disp, err := strconv.Atoi(fields[2]); err == nil {
					m.SetDisplayFrequency(disp)
				}
			}
			status = m.Analyze(ctx, n, true)
		default:
			m.printf("command not found.\n")
		}
	}
}

func (m *Manager) runUsage() {
	m.printf("usage: run <number>\n")
	m.printf("usage: run <number> <display_frequency>\n")
}

func (m *Manager) analysisHelp() {
	m.printf("-------------------------------------------------------\n" +
		"  help              : show this help\n" +
		"  run <N> <display> : start analysis\n" +
		"                      <N>: number of loops\n" +
		"                      <display>: display frequency\n" +
		"  exit              : exit this program\n" +
		"                      (enter <finalize> stage)\n" +
		"-------------------------------------------------------\n\n")
}
