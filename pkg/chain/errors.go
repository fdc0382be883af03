package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openfroyo/anlchain/pkg/engine"
)

// ErrorKind classifies chain errors.
type ErrorKind string

const (
	// KindDuplicateIdentity: a module with the same identity is already registered.
	KindDuplicateIdentity ErrorKind = "duplicate_identity"

	// KindUnknownModule: no module with the requested identity, or no current module.
	KindUnknownModule ErrorKind = "unknown_module"

	// KindClassNotFound: no namespace provides the requested class name.
	KindClassNotFound ErrorKind = "class_not_found"

	// KindUnsupportedParameterType: the value has no parameter shape.
	KindUnsupportedParameterType ErrorKind = "unsupported_parameter_type"

	// KindEngineStatus: an engine phase returned a status other than OK.
	KindEngineStatus ErrorKind = "engine_status"

	// KindParameterAssignment: the module rejected a committed parameter value.
	KindParameterAssignment ErrorKind = "parameter_assignment"

	// KindInvalidPosition: an insert position is negative.
	KindInvalidPosition ErrorKind = "invalid_position"

	// KindGateRejected: the pre-run gate refused the configured chain.
	KindGateRejected ErrorKind = "gate_rejected"
)

// Error is the classified error returned by chain operations.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Module is the identity of the module involved, if any.
	Module string `json:"module,omitempty"`

	// Parameter is the parameter or map name involved, if any.
	Parameter string `json:"parameter,omitempty"`

	// MapKey is the map entry key for map insertions.
	MapKey string `json:"map_key,omitempty"`

	// Phase is the engine phase for status errors, e.g. "Prepare()".
	Phase string `json:"phase,omitempty"`

	// Status is the engine status for status errors.
	Status engine.Status `json:"status,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	var ctx []string
	if e.Module != "" {
		ctx = append(ctx, "module="+e.Module)
	}
	if e.Parameter != "" {
		p := e.Parameter
		if e.MapKey != "" {
			p += "/" + e.MapKey
		}
		ctx = append(ctx, "parameter="+p)
	}
	if len(ctx) > 0 {
		b.WriteString(" (" + strings.Join(ctx, ", ") + ")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so that errors.Is(err, ErrUnknownModule)
// works for every unknown-module error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithModule adds the module identity.
func (e *Error) WithModule(id string) *Error {
	e.Module = id
	return e
}

// WithParameter adds the parameter name.
func (e *Error) WithParameter(name string) *Error {
	e.Parameter = name
	return e
}

// WithMapKey adds the map entry key.
func (e *Error) WithMapKey(key string) *Error {
	e.MapKey = key
	return e
}

// Sentinels for errors.Is.
var (
	ErrDuplicateIdentity        = &Error{Kind: KindDuplicateIdentity}
	ErrUnknownModule            = &Error{Kind: KindUnknownModule}
	ErrClassNotFound            = &Error{Kind: KindClassNotFound}
	ErrUnsupportedParameterType = &Error{Kind: KindUnsupportedParameterType}
	ErrEngineStatus             = &Error{Kind: KindEngineStatus}
	ErrParameterAssignment      = &Error{Kind: KindParameterAssignment}
	ErrInvalidPosition          = &Error{Kind: KindInvalidPosition}
	ErrGateRejected             = &Error{Kind: KindGateRejected}
)

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func duplicateIdentityError(id string) *Error {
	return newError(KindDuplicateIdentity, "module %s is already registered", id).WithModule(id)
}

func unknownModuleError(id string) *Error {
	return newError(KindUnknownModule, "module %s is not registered", id).WithModule(id)
}

func noCurrentModuleError() *Error {
	return newError(KindUnknownModule, "no current module")
}

func classNotFoundError(class string) *Error {
	return newError(KindClassNotFound, "class %s not found", class)
}

func unsupportedTypeError(id, name string, err error) *Error {
	e := newError(KindUnsupportedParameterType, "unsupported parameter type").WithModule(id).WithParameter(name)
	e.Err = err
	return e
}

func engineStatusError(phase string, status engine.Status) *Error {
	e := newError(KindEngineStatus, "%s returned %s", phase, status)
	e.Phase = phase
	e.Status = status
	return e
}

func assignmentError(id, name, key string, err error) *Error {
	e := newError(KindParameterAssignment, "set parameter exception").
		WithModule(id).WithParameter(name).WithMapKey(key)
	e.Err = err
	return e
}

// IsDuplicateIdentity returns true if err is a duplicate identity error.
func IsDuplicateIdentity(err error) bool { return isKind(err, KindDuplicateIdentity) }

// IsUnknownModule returns true if err is an unknown module error.
func IsUnknownModule(err error) bool { return isKind(err, KindUnknownModule) }

// IsClassNotFound returns true if err is a class resolution error.
func IsClassNotFound(err error) bool { return isKind(err, KindClassNotFound) }

// IsUnsupportedParameterType returns true if err is a value dispatch error.
func IsUnsupportedParameterType(err error) bool { return isKind(err, KindUnsupportedParameterType) }

// IsEngineStatus returns true if err reports a non-OK engine phase.
func IsEngineStatus(err error) bool { return isKind(err, KindEngineStatus) }

// IsParameterAssignment returns true if err reports a rejected parameter value.
func IsParameterAssignment(err error) bool { return isKind(err, KindParameterAssignment) }

func isKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
