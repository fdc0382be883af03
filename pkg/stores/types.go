package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus represents the outcome of a recorded run
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusRejected  RunStatus = "rejected"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run is one recorded analysis run.
type Run struct {
	ID               string     `json:"id"`
	Pipeline         string     `json:"pipeline"`
	Mode             string     `json:"mode"`
	Status           RunStatus  `json:"status"`
	NumLoop          int        `json:"num_loop"`
	DisplayFrequency int        `json:"display_frequency"`
	ThreadMode       bool       `json:"thread_mode"`
	Events           int        `json:"events"`
	Committed        int        `json:"committed"`
	Error            *string    `json:"error,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`

	// Filled by GetRun only.
	Phases  []Phase  `json:"phases,omitempty"`
	Modules []Module `json:"modules,omitempty"`
}

// Duration returns the wall time of the run, zero while unfinished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Phase is one lifecycle phase of a run.
type Phase struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Module is the state of one chain module when the run was gated, with its
// event loop counters.
type Module struct {
	Index       int         `json:"index"`
	ID          string      `json:"id"`
	Class       string      `json:"class"`
	Version     string      `json:"version"`
	Description string      `json:"description,omitempty"`
	On          bool        `json:"on"`
	Entry       int         `json:"entry"`
	OK          int         `json:"ok"`
	Skip        int         `json:"skip"`
	Error       int         `json:"error"`
	Quit        int         `json:"quit"`
	Parameters  []Parameter `json:"parameters,omitempty"`
}

// Parameter is a parameter value as recorded for a run.
type Parameter struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Unit    string `json:"unit,omitempty"`
	Value   string `json:"value"`
	Default string `json:"default"`
}

// Event represents an append-only log event
type Event struct {
	ID        int64      `json:"id"`
	RunID     *string    `json:"run_id,omitempty"`
	Type      string     `json:"type"`
	Phase     *string    `json:"phase,omitempty"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// Store defines the run history persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
