package chain

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// EngineFactory creates the engine a chain hands its modules to at startup.
type EngineFactory func() engine.Engine

// AnalysisChain is an ordered pipeline of modules together with the
// parameter values that will be committed to them once the engine has
// started.
//
// An AnalysisChain is not safe for concurrent use.
type AnalysisChain struct {
	registry *Registry
	resolver *Resolver
	queue    CommitQueue

	// configured holds the modules that received parameters through
	// WithParameters, in the order they were first configured.
	configured []*Handle

	current *Handle
	pending *Initializer

	state      State
	threadMode bool
	engine     engine.Engine
	newEngine  EngineFactory

	out       io.Writer
	in        io.Reader
	logger    zerolog.Logger
	observers []Observer
	gate      Gate
}

// Option configures an AnalysisChain.
type Option func(*AnalysisChain)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *AnalysisChain) { c.logger = logger }
}

// WithOutput sets the writer for parameter dumps and the default engine output.
func WithOutput(w io.Writer) Option {
	return func(c *AnalysisChain) { c.out = w }
}

// WithInput sets the command source of the default engine's interactive session.
func WithInput(r io.Reader) Option {
	return func(c *AnalysisChain) { c.in = r }
}

// WithEngineFactory replaces the default engine.Manager.
func WithEngineFactory(f EngineFactory) Option {
	return func(c *AnalysisChain) { c.newEngine = f }
}

// WithObserver adds a run observer.
func WithObserver(o Observer) Option {
	return func(c *AnalysisChain) { c.observers = append(c.observers, o) }
}

// WithGate sets the check run between parameter commit and Prepare.
func WithGate(g Gate) Option {
	return func(c *AnalysisChain) { c.gate = g }
}

// WithThreadMode sets the initial thread mode.
func WithThreadMode(on bool) Option {
	return func(c *AnalysisChain) { c.threadMode = on }
}

// New creates an empty chain. Thread mode is on by default.
func New(opts ...Option) *AnalysisChain {
	c := &AnalysisChain{
		registry:   NewRegistry(),
		resolver:   NewResolver(),
		threadMode: true,
		out:        os.Stdout,
		in:         os.Stdin,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "anl-chain").Logger()
	if c.newEngine == nil {
		c.newEngine = c.defaultEngine
	}
	return c
}

func (c *AnalysisChain) defaultEngine() engine.Engine {
	return engine.NewManager(
		engine.WithOutput(c.out),
		engine.WithInput(c.in),
		engine.WithLogger(c.logger),
	)
}

// ThreadMode reports whether Analyze runs the event loop on its own goroutine.
func (c *AnalysisChain) ThreadMode() bool { return c.threadMode }

// SetThreadMode sets the thread mode. Clear keeps it.
func (c *AnalysisChain) SetThreadMode(on bool) { c.threadMode = on }

// State returns the lifecycle state.
func (c *AnalysisChain) State() State { return c.state }

// Engine returns the engine created by the last startup, or nil.
func (c *AnalysisChain) Engine() engine.Engine { return c.engine }

// Logger returns the chain logger.
func (c *AnalysisChain) Logger() zerolog.Logger { return c.logger }

// AddNamespace appends a namespace to the class search list.
func (c *AnalysisChain) AddNamespace(ns *Namespace) {
	c.resolver.Add(ns)
}

// Namespaces returns the class search list.
func (c *AnalysisChain) Namespaces() []*Namespace {
	return c.resolver.Namespaces()
}

// Push appends a module and makes it the current module.
func (c *AnalysisChain) Push(m engine.Module) (*Handle, error) {
	h, err := c.registry.Push(m)
	if err != nil {
		return nil, err
	}
	c.setCurrent(h)
	return h, nil
}

// Insert places a module at pos and makes it the current module. A negative
// position fails with ErrInvalidPosition; a position past the end appends.
func (c *AnalysisChain) Insert(pos int, m engine.Module) (*Handle, error) {
	h, err := c.registry.Insert(pos, m)
	if err != nil {
		return nil, err
	}
	c.setCurrent(h)
	return h, nil
}

// Chain resolves class through the namespaces, creates an instance, assigns
// the optional identity and pushes it.
func (c *AnalysisChain) Chain(class string, id ...string) (*Handle, error) {
	m, err := NewInitializer(class, id...).instantiate(c.resolver)
	if err != nil {
		return nil, err
	}
	return c.Push(m)
}

// InsertClass resolves class like Chain and inserts the instance at pos.
func (c *AnalysisChain) InsertClass(pos int, class string, id ...string) (*Handle, error) {
	m, err := NewInitializer(class, id...).instantiate(c.resolver)
	if err != nil {
		return nil, err
	}
	return c.Insert(pos, m)
}

// ChainModule pushes a new instance created by factory.
func (c *AnalysisChain) ChainModule(factory Factory, id ...string) (*Handle, error) {
	init := &Initializer{Factory: factory}
	if len(id) > 0 {
		init.ID = id[0]
	}
	m, err := init.instantiate(c.resolver)
	if err != nil {
		return nil, err
	}
	return c.Push(m)
}

// Expose makes a registered module the current one.
func (c *AnalysisChain) Expose(id string) (*Handle, error) {
	h := c.registry.Get(id)
	if h == nil {
		return nil, unknownModuleError(id)
	}
	c.setCurrent(h)
	return h, nil
}

// Get returns the module with the given identity, or nil. The current
// module is not changed.
func (c *AnalysisChain) Get(id string) *Handle {
	return c.registry.Get(id)
}

// IndexOf returns the position of the first module with the given identity.
func (c *AnalysisChain) IndexOf(id string) (int, bool) {
	return c.registry.IndexOf(id)
}

// LastIndexOf returns the position of the last module with the given identity.
func (c *AnalysisChain) LastIndexOf(id string) (int, bool) {
	return c.registry.LastIndexOf(id)
}

// Len returns the number of modules.
func (c *AnalysisChain) Len() int { return c.registry.Len() }

// Handles returns the modules in execution order.
func (c *AnalysisChain) Handles() []*Handle { return c.registry.Handles() }

// Modules returns the module instances in execution order.
func (c *AnalysisChain) Modules() []engine.Module { return c.registry.Modules() }

// Current returns the current module, or nil.
func (c *AnalysisChain) Current() *Handle { return c.current }

// Configured returns the modules that received parameters through
// WithParameters.
func (c *AnalysisChain) Configured() []*Handle {
	return append([]*Handle(nil), c.configured...)
}

// PendingCommands returns the number of queued parameter operations.
func (c *AnalysisChain) PendingCommands() int { return c.queue.Len() }

// Text sets the description of the current module.
func (c *AnalysisChain) Text(description string) error {
	if c.pending != nil {
		c.pending.Description = description
		return nil
	}
	if c.current == nil {
		return noCurrentModuleError()
	}
	c.current.module.SetModuleDescription(description)
	return nil
}

// Clear empties the chain and returns it to the not-started state. Thread
// mode is kept; the namespace list is reset to Global only.
func (c *AnalysisChain) Clear() {
	c.registry.Clear()
	c.queue.Clear()
	c.configured = nil
	c.current = nil
	c.pending = nil
	c.resolver.Reset()
	c.engine = nil
	c.state = StateNotStarted
}

func (c *AnalysisChain) setCurrent(h *Handle) {
	c.current = h
	c.pending = nil
}

func (c *AnalysisChain) setPending(init *Initializer) {
	c.pending = init
	c.current = nil
}

func (c *AnalysisChain) currentHandle() (*Handle, error) {
	if c.current == nil {
		return nil, noCurrentModuleError()
	}
	return c.current, nil
}

// SetParameter assigns a value to a parameter of the current module. The
// shape of v decides which setter receives it; an unsupported shape fails
// immediately. Before startup the assignment is queued.
func (c *AnalysisChain) SetParameter(name string, v any) error {
	val, err := parameter.FromAny(v)
	if c.pending != nil {
		if err != nil {
			return unsupportedTypeError(c.pending.ID, name, err)
		}
		c.pending.Params = append(c.pending.Params, P(name, v))
		return nil
	}

	h, herr := c.currentHandle()
	if herr != nil {
		return herr
	}
	if err != nil {
		return unsupportedTypeError(h.id, name, err)
	}
	return c.submit(Command{Kind: CommandSet, Handle: h, Name: name, Value: val})
}

// SetValue assigns an already classified value to the current module.
func (c *AnalysisChain) SetValue(name string, v parameter.Value) error {
	if c.pending != nil {
		c.pending.Params = append(c.pending.Params, P(name, v))
		return nil
	}

	h, err := c.currentHandle()
	if err != nil {
		return err
	}
	return c.submit(Command{Kind: CommandSet, Handle: h, Name: name, Value: v})
}

// InsertMap adds one entry to a map parameter of the current module. The
// sub-field values are applied in order.
func (c *AnalysisChain) InsertMap(mapName, key string, values Params) error {
	if c.pending != nil {
		c.pending.WithMap(mapName, key, values)
		return nil
	}

	h, err := c.currentHandle()
	if err != nil {
		return err
	}
	named := make([]NamedValue, 0, len(values))
	for _, p := range values {
		val, err := parameter.FromAny(p.Value)
		if err != nil {
			return unsupportedTypeError(h.id, mapName+"."+p.Name, err).WithMapKey(key)
		}
		named = append(named, NamedValue{Name: p.Name, Value: val})
	}
	return c.submit(Command{Kind: CommandInsertMap, Handle: h, Name: mapName, MapKey: key, MapValues: named})
}

// WithParameters assigns params in order to the current module and then
// runs setup against it. When the current module is a pending Initializer
// the values are stored on it instead.
func (c *AnalysisChain) WithParameters(params Params, setup SetupFunc) error {
	if c.pending != nil {
		c.pending.With(params, setup)
		return nil
	}

	h, err := c.currentHandle()
	if err != nil {
		return err
	}
	c.markConfigured(h)
	for _, p := range params {
		if err := c.SetParameter(p.Name, p.Value); err != nil {
			return err
		}
	}
	if setup == nil {
		return nil
	}
	return c.submit(Command{Kind: CommandSetup, Handle: h, Setup: setup})
}

// SetParameters exposes the module id and assigns params to it.
func (c *AnalysisChain) SetParameters(id string, params Params, setup SetupFunc) error {
	if _, err := c.Expose(id); err != nil {
		return err
	}
	return c.WithParameters(params, setup)
}

// ChainWithParameters chains each initializer in order and assigns its
// stored parameters, map entries and setup function.
func (c *AnalysisChain) ChainWithParameters(inits ...*Initializer) error {
	for _, init := range inits {
		m, err := init.instantiate(c.resolver)
		if err != nil {
			return err
		}
		if _, err := c.Push(m); err != nil {
			return err
		}
		if err := c.WithParameters(init.Params, init.Setup); err != nil {
			return err
		}
		for _, entry := range init.Maps {
			if err := c.InsertMap(entry.Name, entry.Key, entry.Values); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *AnalysisChain) markConfigured(h *Handle) {
	for _, existing := range c.configured {
		if existing == h {
			return
		}
	}
	c.configured = append(c.configured, h)
}

// submit queues cmd before startup and runs it right away afterwards. The
// target module is prepared by interactive runs from then on.
func (c *AnalysisChain) submit(cmd Command) error {
	c.markConfigured(cmd.Handle)
	if c.state < StateStarted {
		c.queue.Push(cmd)
		return nil
	}
	return c.execute(cmd)
}

func (c *AnalysisChain) execute(cmd Command) error {
	m := cmd.Handle.module
	var err error
	switch cmd.Kind {
	case CommandSet:
		err = parameter.Apply(m, cmd.Name, cmd.Value)
	case CommandInsertMap:
		err = m.InsertMap(cmd.Name, cmd.MapKey, func(s parameter.Setter) error {
			for _, nv := range cmd.MapValues {
				if err := parameter.Apply(s, nv.Name, nv.Value); err != nil {
					return err
				}
			}
			return nil
		})
	case CommandSetup:
		if cmd.Setup != nil {
			err = cmd.Setup(m)
		}
	}
	if err == nil {
		return nil
	}

	aerr := assignmentError(cmd.Handle.id, cmd.Name, cmd.MapKey, err)
	c.logger.Error().
		Err(err).
		Str("module", cmd.Handle.id).
		Str("parameter", cmd.Name).
		Str("map_key", cmd.MapKey).
		Str("command", cmd.Kind.String()).
		Msg("Set parameter exception")
	return aerr
}
