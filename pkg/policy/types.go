package policy

import (
	"time"

	"github.com/openfroyo/anlchain/pkg/chain"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is reported but does not block a run.
	SeverityWarning Severity = "warning"

	// SeverityError blocks a run.
	SeverityError Severity = "error"

	// SeverityCritical blocks a run.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity rejects the chain.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module whose deny set is evaluated against a chain.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	Description string `json:"description"`

	// Rego contains the Rego policy code. Its package must define deny.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	Enabled bool     `json:"enabled"`
	Tags    []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is one entry of a policy's deny set.
type Violation struct {
	Policy    string   `json:"policy"`
	Module    string   `json:"module,omitempty"`
	Parameter string   `json:"parameter,omitempty"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any violation blocks.
	Allowed bool `json:"allowed"`

	// Violations are the blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings are violations that do not block.
	Warnings []Violation `json:"warnings,omitempty"`

	// Errors lists policies whose evaluation failed.
	Errors []string `json:"errors,omitempty"`

	EvaluatedPolicies []string      `json:"evaluated_policies"`
	EvaluatedAt       time.Time     `json:"evaluated_at"`
	Duration          time.Duration `json:"duration"`
}

// Input is the document policies see as input.
type Input struct {
	Chain   ChainInput `json:"chain"`
	Context Context    `json:"context"`
}

// ChainInput describes the chain in chain order.
type ChainInput struct {
	Modules []ModuleInput `json:"modules"`
}

// ModuleInput is one module of the chain. Parameters are keyed by name.
type ModuleInput struct {
	Index       int                       `json:"index"`
	ID          string                    `json:"id"`
	Class       string                    `json:"class"`
	Version     string                    `json:"version"`
	Description string                    `json:"description"`
	On          bool                      `json:"on"`
	Parameters  map[string]ParameterInput `json:"parameters"`
}

// ParameterInput is one committed parameter. Value and Default are the
// printed forms used by the interactive session.
type ParameterInput struct {
	Type    string `json:"type"`
	Unit    string `json:"unit,omitempty"`
	Value   string `json:"value"`
	Default string `json:"default"`
}

// Context carries evaluation metadata.
type Context struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
}

// NewInput builds the policy input from chain snapshots.
func NewInput(modules []chain.ModuleSnapshot, operation string) *Input {
	in := &Input{
		Chain:   ChainInput{Modules: make([]ModuleInput, 0, len(modules))},
		Context: Context{Timestamp: time.Now(), Operation: operation},
	}
	for _, m := range modules {
		mi := ModuleInput{
			Index:       m.Index,
			ID:          m.ID,
			Class:       m.Class,
			Version:     m.Version,
			Description: m.Description,
			On:          m.On,
			Parameters:  make(map[string]ParameterInput, len(m.Parameters)),
		}
		for _, p := range m.Parameters {
			mi.Parameters[p.Name] = ParameterInput{
				Type:    p.Type,
				Unit:    p.Unit,
				Value:   p.Value,
				Default: p.Default,
			}
		}
		in.Chain.Modules = append(in.Chain.Modules, mi)
	}
	return in
}
