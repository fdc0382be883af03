package engine

import "errors"

// ErrDuplicateModule is returned by SetModules when two modules share an identity.
var ErrDuplicateModule = errors.New("duplicate module identity")
