package chain

// SetupModuleOptions configures a setup-module slot.
type SetupModuleOptions struct {
	// Class is the default class of modules placed in the slot. When empty
	// every Set/Add call must name a class.
	Class string

	// Array makes the slot hold a list; Add appends instead of Set replacing.
	Array bool
}

// SetupSlot is a named place in an application where the user picks a
// module before the chain is assembled. Each Set or Add creates an
// Initializer and makes it the current module, so that WithParameters and
// InsertMap calls that follow are stored on it.
type SetupSlot struct {
	app   *App
	name  string
	opts  SetupModuleOptions
	inits []*Initializer
}

// DefineSetupModule registers a slot on app. Defining the same name again
// returns the existing slot.
func DefineSetupModule(app *App, name string, opts SetupModuleOptions) *SetupSlot {
	if s, ok := app.slots[name]; ok {
		return s
	}
	s := &SetupSlot{app: app, name: name, opts: opts}
	app.slots[name] = s
	return s
}

// Slot returns a slot defined on the application.
func (a *App) Slot(name string) (*SetupSlot, bool) {
	s, ok := a.slots[name]
	return s, ok
}

// Name returns the slot name.
func (s *SetupSlot) Name() string { return s.name }

// IsArray reports whether the slot holds a list.
func (s *SetupSlot) IsArray() bool { return s.opts.Array }

// Set places a module in the slot, replacing the previous one. An empty
// class falls back to the slot default.
func (s *SetupSlot) Set(class, id string) *Initializer {
	init := s.newInitializer(class, id)
	s.inits = []*Initializer{init}
	s.app.setPending(init)
	return init
}

// Add appends a module to the slot.
func (s *SetupSlot) Add(class, id string) *Initializer {
	init := s.newInitializer(class, id)
	s.inits = append(s.inits, init)
	s.app.setPending(init)
	return init
}

// Module returns the module of a single-valued slot, or the last one added.
func (s *SetupSlot) Module() *Initializer {
	if len(s.inits) == 0 {
		return nil
	}
	return s.inits[len(s.inits)-1]
}

// Modules returns every module in the slot in the order they were added.
func (s *SetupSlot) Modules() []*Initializer {
	return append([]*Initializer(nil), s.inits...)
}

// Reset empties the slot.
func (s *SetupSlot) Reset() {
	s.inits = nil
}

func (s *SetupSlot) newInitializer(class, id string) *Initializer {
	if class == "" {
		class = s.opts.Class
	}
	return &Initializer{Class: class, ID: id}
}
