package wasmmod

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

const (
	// DefaultMemoryLimitPages is 16MiB of guest memory.
	DefaultMemoryLimitPages = 256

	// DefaultTimeout bounds a single hook call.
	DefaultTimeout = 30 * time.Second
)

// Class is a module class backed by a WASM binary. Every module created
// from a class runs in its own wazero runtime; compiled code is shared
// through a compilation cache.
type Class struct {
	manifest *Manifest
	wasm     []byte
	cache    wazero.CompilationCache
	logger   zerolog.Logger
	stdout   io.Writer
	stderr   io.Writer
}

// Option configures a Class.
type Option func(*Class)

// WithLogger sets the logger used by the host functions and for hook failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Class) { c.logger = logger }
}

// WithOutput redirects the guest's WASI stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *Class) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// NewClass creates a class from a manifest and the module bytes.
func NewClass(m *Manifest, wasm []byte, opts ...Option) (*Class, error) {
	if err := validateManifest(m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := m.VerifyChecksum(wasm); err != nil {
		return nil, err
	}
	for _, p := range m.Parameters {
		if _, err := newValue(p); err != nil {
			return nil, fmt.Errorf("class %s: %w", m.Name, err)
		}
	}

	c := &Class{
		manifest: m,
		wasm:     wasm,
		cache:    wazero.NewCompilationCache(),
		logger:   zerolog.Nop(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "wasm").Str("class", m.Name).Logger()
	return c, nil
}

// LoadClass loads a class from a manifest file.
func LoadClass(path string, opts ...Option) (*Class, error) {
	m, wasm, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return NewClass(m, wasm, opts...)
}

// LoadDir loads every .yaml and .yml manifest of a directory, sorted by
// file name.
func LoadDir(dir string, opts ...Option) ([]*Class, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	classes := make([]*Class, 0, len(paths))
	for _, path := range paths {
		c, err := LoadClass(path, opts...)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, nil
}

// Register adds the classes to a namespace.
func Register(ns *chain.Namespace, classes ...*Class) error {
	for _, c := range classes {
		if err := ns.Register(c.Name(), c.Factory()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Class) Name() string { return c.manifest.Name }

func (c *Class) Manifest() *Manifest { return c.manifest }

// Factory returns a chain factory creating modules of this class.
func (c *Class) Factory() chain.Factory {
	return func() engine.Module { return c.New() }
}

// Close releases the compiled code shared by the class's modules.
func (c *Class) Close(ctx context.Context) error {
	return c.cache.Close(ctx)
}

func (c *Class) memoryLimitPages() uint32 {
	if c.manifest.MemoryLimitPages == 0 {
		return DefaultMemoryLimitPages
	}
	return c.manifest.MemoryLimitPages
}

func (c *Class) timeout() time.Duration {
	if c.manifest.Timeout == 0 {
		return DefaultTimeout
	}
	return c.manifest.Timeout
}

// value holds one manifest parameter. Only the field matching the declared
// type is bound.
type value struct {
	spec ParameterSpec
	i    int
	f    float64
	s    string
	b    bool
}

func newValue(spec ParameterSpec) (*value, error) {
	v := &value{spec: spec}
	if spec.Default == "" {
		return v, nil
	}

	var err error
	switch spec.Type {
	case "int":
		v.i, err = strconv.Atoi(spec.Default)
	case "float":
		v.f, err = strconv.ParseFloat(spec.Default, 64)
	case "bool":
		v.b, err = strconv.ParseBool(spec.Default)
	case "string":
		v.s = spec.Default
	}
	if err != nil {
		return nil, fmt.Errorf("parameter %s: bad default %q: %w", spec.Name, spec.Default, err)
	}
	return v, nil
}

func (v *value) declare(s *parameter.Set) {
	var opts []parameter.Option
	if v.spec.Unit != "" {
		opts = append(opts, parameter.WithUnit(v.spec.Scale, v.spec.Unit))
	}
	if v.spec.Description != "" {
		opts = append(opts, parameter.WithDescription(v.spec.Description))
	}

	switch v.spec.Type {
	case "int":
		s.Int(&v.i, v.spec.Name, opts...)
	case "float":
		s.Float(&v.f, v.spec.Name, opts...)
	case "bool":
		s.Bool(&v.b, v.spec.Name, opts...)
	case "string":
		s.String(&v.s, v.spec.Name, opts...)
	}
}

// Module is a processing module whose hooks are exports of a WASM guest.
// Each hook export takes no arguments and returns an i32 status code; a
// missing export behaves like a hook returning OK.
type Module struct {
	engine.BasicModule

	class    *Class
	values   []*value
	runtime  wazero.Runtime
	instance api.Module
	event    uint64
}

// New creates a module of the class. The guest is instantiated at Startup.
func (c *Class) New() *Module {
	m := &Module{class: c}
	for _, spec := range c.manifest.Parameters {
		// Defaults were checked by NewClass.
		v, _ := newValue(spec)
		m.values = append(m.values, v)
	}
	m.BasicModule = engine.NewBasicModule(c.manifest.Name, c.manifest.Version, func(s *parameter.Set) {
		for _, v := range m.values {
			v.declare(s)
		}
	})
	if c.manifest.Description != "" {
		m.SetModuleDescription(c.manifest.Description)
	}
	return m
}

func (m *Module) Startup() engine.Status {
	if err := m.instantiate(context.Background()); err != nil {
		m.class.logger.Error().Err(err).Str("module", m.ModuleID()).Msg("Failed to instantiate WASM module")
		return engine.StatusQuitError
	}
	return m.call("startup")
}

func (m *Module) Prepare() engine.Status    { return m.call("prepare") }
func (m *Module) Initialize() engine.Status { return m.call("initialize") }

func (m *Module) BeginRun() engine.Status {
	m.event = 0
	return m.call("begin_run")
}

func (m *Module) Analyze() engine.Status {
	m.event++
	return m.call("analyze")
}

func (m *Module) EndRun() engine.Status { return m.call("end_run") }

// Exit runs the exit hook and releases the guest.
func (m *Module) Exit() engine.Status {
	status := m.call("exit")
	if err := m.Close(context.Background()); err != nil {
		m.class.logger.Warn().Err(err).Str("module", m.ModuleID()).Msg("Failed to close WASM runtime")
	}
	return status
}

// Close releases the guest and its runtime. It is safe to call more than once.
func (m *Module) Close(ctx context.Context) error {
	if m.runtime == nil {
		return nil
	}
	err := m.runtime.Close(ctx)
	m.runtime = nil
	m.instance = nil
	return err
}

func (m *Module) instantiate(ctx context.Context) error {
	if m.instance != nil {
		return nil
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(m.class.memoryLimitPages()).
		WithCloseOnContextDone(true).
		WithCompilationCache(m.class.cache)
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	builder := rt.NewHostModuleBuilder("env")
	m.registerHostFunctions(builder)
	if _, err := builder.Instantiate(ctx); err != nil {
		rt.Close(ctx)
		return fmt.Errorf("failed to instantiate host module: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, m.class.wasm)
	if err != nil {
		rt.Close(ctx)
		return fmt.Errorf("failed to compile WASM module: %w", err)
	}
	if err := checkHookSignatures(m.class.manifest, compiled); err != nil {
		rt.Close(ctx)
		return err
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(m.ModuleID()).
		WithStdout(m.class.stdout).
		WithStderr(m.class.stderr).
		WithStartFunctions("_initialize")
	instance, err := rt.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		rt.Close(ctx)
		return fmt.Errorf("failed to instantiate WASM module: %w", err)
	}

	m.runtime = rt
	m.instance = instance
	return nil
}

// checkHookSignatures requires every exported hook to be () -> i32.
func checkHookSignatures(manifest *Manifest, compiled wazero.CompiledModule) error {
	exports := compiled.ExportedFunctions()
	for _, hook := range hookNames {
		name := manifest.ExportName(hook)
		def, ok := exports[name]
		if !ok {
			continue
		}
		results := def.ResultTypes()
		if len(def.ParamTypes()) != 0 || len(results) != 1 || results[0] != api.ValueTypeI32 {
			return fmt.Errorf("export %s for hook %s must have signature () -> i32", name, hook)
		}
	}
	return nil
}

// call invokes a hook export and converts its result to a status. Traps,
// timeouts and unknown codes are reported as QUIT_ERROR.
func (m *Module) call(hook string) engine.Status {
	if m.instance == nil {
		m.class.logger.Error().Str("module", m.ModuleID()).Str("hook", hook).Msg("WASM module is not instantiated")
		return engine.StatusQuitError
	}

	fn := m.instance.ExportedFunction(m.class.manifest.ExportName(hook))
	if fn == nil {
		return engine.StatusOK
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.class.timeout())
	defer cancel()

	results, err := fn.Call(ctx)
	if err != nil {
		m.class.logger.Error().Err(err).Str("module", m.ModuleID()).Str("hook", hook).Msg("WASM hook failed")
		return engine.StatusQuitError
	}

	status := engine.Status(api.DecodeI32(results[0]))
	if err := status.Validate(); err != nil {
		m.class.logger.Error().Err(err).Str("module", m.ModuleID()).Str("hook", hook).Msg("WASM hook returned an unknown status")
		return engine.StatusQuitError
	}
	return status
}
