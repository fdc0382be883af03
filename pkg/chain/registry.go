package chain

import (
	"github.com/openfroyo/anlchain/pkg/engine"
)

// Handle is a module registered in a chain.
type Handle struct {
	id     string
	module engine.Module
}

// ID returns the identity the module was registered with.
func (h *Handle) ID() string { return h.id }

// Module returns the module instance.
func (h *Handle) Module() engine.Module { return h.module }

// Registry keeps modules in execution order and indexes them by identity.
// The ordered list and the index always hold the same handles.
type Registry struct {
	handles []*Handle
	byID    map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Handle)}
}

// Push appends a module. A module whose identity is already registered is
// rejected and the registry is left unchanged.
func (r *Registry) Push(m engine.Module) (*Handle, error) {
	return r.Insert(len(r.handles), m)
}

// Insert places a module at pos. A negative position is rejected; a position
// past the end appends.
func (r *Registry) Insert(pos int, m engine.Module) (*Handle, error) {
	id := m.ModuleID()
	if _, exists := r.byID[id]; exists {
		return nil, duplicateIdentityError(id)
	}
	if pos < 0 {
		e := newError(KindInvalidPosition, "invalid insert position %d", pos).WithModule(id)
		return nil, e
	}
	if pos > len(r.handles) {
		pos = len(r.handles)
	}

	h := &Handle{id: id, module: m}
	r.handles = append(r.handles, nil)
	copy(r.handles[pos+1:], r.handles[pos:])
	r.handles[pos] = h
	r.byID[id] = h
	return h, nil
}

// Get returns the handle with the given identity, or nil.
func (r *Registry) Get(id string) *Handle {
	return r.byID[id]
}

// IndexOf returns the position of the first module with the given identity.
func (r *Registry) IndexOf(id string) (int, bool) {
	for i, h := range r.handles {
		if h.id == id {
			return i, true
		}
	}
	return -1, false
}

// LastIndexOf returns the position of the last module with the given identity.
func (r *Registry) LastIndexOf(id string) (int, bool) {
	for i := len(r.handles) - 1; i >= 0; i-- {
		if r.handles[i].id == id {
			return i, true
		}
	}
	return -1, false
}

// Len returns the number of modules.
func (r *Registry) Len() int {
	return len(r.handles)
}

// Handles returns the handles in execution order.
func (r *Registry) Handles() []*Handle {
	return append([]*Handle(nil), r.handles...)
}

// Modules returns the modules in execution order.
func (r *Registry) Modules() []engine.Module {
	out := make([]engine.Module, len(r.handles))
	for i, h := range r.handles {
		out[i] = h.module
	}
	return out
}

// Clear removes every module.
func (r *Registry) Clear() {
	r.handles = nil
	r.byID = make(map[string]*Handle)
}
