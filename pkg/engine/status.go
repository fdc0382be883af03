package engine

import (
	"encoding/json"
	"fmt"
)

// Status is the code returned by every module routine and engine phase.
type Status int

const (
	// StatusOK lets processing continue.
	StatusOK Status = iota

	// StatusSkip ends the current event without counting an error.
	StatusSkip

	// StatusSkipError ends the current event and counts an error.
	StatusSkipError

	// StatusQuit ends the event loop.
	StatusQuit

	// StatusQuitError ends the event loop and counts an error.
	StatusQuitError
)

// String returns the status name used in logs and error messages.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusSkip:
		return "SKIP"
	case StatusSkipError:
		return "SKIP_ERROR"
	case StatusQuit:
		return "QUIT"
	case StatusQuitError:
		return "QUIT_ERROR"
	default:
		return "unknown status"
	}
}

// IsOK returns true for StatusOK.
func (s Status) IsOK() bool {
	return s == StatusOK
}

// IsError returns true if the status reports a failure.
func (s Status) IsError() bool {
	return s == StatusSkipError || s == StatusQuitError
}

// IsQuit returns true if the status stops the event loop.
func (s Status) IsQuit() bool {
	return s == StatusQuit || s == StatusQuitError
}

// Validate checks if the status is one of the known codes.
func (s Status) Validate() error {
	switch s {
	case StatusOK, StatusSkip, StatusSkipError, StatusQuit, StatusQuitError:
		return nil
	default:
		return fmt.Errorf("invalid status: %d", int(s))
	}
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus returns the status with the given name.
func ParseStatus(name string) (Status, error) {
	for s := StatusOK; s <= StatusQuitError; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("invalid status: %s", name)
}
