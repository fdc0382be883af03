package chain

import (
	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// CommandKind identifies a deferred parameter operation.
type CommandKind int

const (
	// CommandSet writes one parameter.
	CommandSet CommandKind = iota

	// CommandInsertMap adds one map entry.
	CommandInsertMap

	// CommandSetup calls a user setup function on the module.
	CommandSetup
)

// String returns the name of the command kind.
func (k CommandKind) String() string {
	switch k {
	case CommandSet:
		return "set"
	case CommandInsertMap:
		return "insert_map"
	case CommandSetup:
		return "setup"
	default:
		return "unknown"
	}
}

// SetupFunc runs user code against a module after its parameters are set.
type SetupFunc func(m engine.Module) error

// NamedValue is a parameter name with a classified value.
type NamedValue struct {
	Name  string
	Value parameter.Value
}

// Command is one deferred parameter operation bound to a module.
type Command struct {
	Kind      CommandKind
	Handle    *Handle
	Name      string
	MapKey    string
	Value     parameter.Value
	MapValues []NamedValue
	Setup     SetupFunc
}

// CommitQueue holds parameter operations issued before startup.
type CommitQueue struct {
	commands []Command
}

// Push appends a command.
func (q *CommitQueue) Push(cmd Command) {
	q.commands = append(q.commands, cmd)
}

// Len returns the number of pending commands.
func (q *CommitQueue) Len() int {
	return len(q.commands)
}

// Commands returns the pending commands in order.
func (q *CommitQueue) Commands() []Command {
	return append([]Command(nil), q.commands...)
}

// Flush executes the commands in FIFO order, removing each one before it
// runs. It stops at the first failure and leaves the rest queued.
func (q *CommitQueue) Flush(exec func(Command) error) error {
	for len(q.commands) > 0 {
		cmd := q.commands[0]
		q.commands = q.commands[1:]
		if err := exec(cmd); err != nil {
			return err
		}
	}
	q.commands = nil
	return nil
}

// Clear drops every pending command.
func (q *CommitQueue) Clear() {
	q.commands = nil
}
