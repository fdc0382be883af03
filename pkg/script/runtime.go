package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/anlchain/pkg/chain"
)

// LibraryModule is the name scripts load the built-ins from.
const LibraryModule = "anlchain"

// Mode selects what app methods do when a script calls them.
type Mode int

const (
	// ModeRun executes run, run_interactive and the document methods.
	ModeRun Mode = iota

	// ModeBuild only records the calls; the returned apps are not assembled.
	ModeBuild
)

// InvocationKind names the app method a script called.
type InvocationKind string

const (
	InvokeRun             InvocationKind = "run"
	InvokeInteractive     InvocationKind = "run_interactive"
	InvokePrintParameters InvocationKind = "print_all_param"
	InvokeMakeDoc         InvocationKind = "make_doc"
	InvokeMakeScript      InvocationKind = "make_script"
)

// Invocation is one app method call made by a script.
type Invocation struct {
	App              *chain.App
	Kind             InvocationKind
	NumLoop          int
	DisplayFrequency int
	Path             string

	// Err is the outcome in ModeRun.
	Err error
}

// Result holds what a script created.
type Result struct {
	Apps        []*chain.App
	Invocations []Invocation
	Globals     starlark.StringDict
}

// Runtime executes pipeline scripts.
type Runtime struct {
	base      zerolog.Logger
	logger    zerolog.Logger
	out       io.Writer
	mode      Mode
	chainOpts []chain.Option
	packages  map[string][]*chain.Namespace
	loader    func(module string) (string, error)
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for script print output and diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runtime) { r.base = logger }
}

// WithOutput sets where print_all_param writes and where script print()
// output goes.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) { r.out = w }
}

// WithMode sets the execution mode.
func WithMode(m Mode) Option {
	return func(r *Runtime) { r.mode = m }
}

// WithChainOptions sets the options every app created by a script gets.
func WithChainOptions(opts ...chain.Option) Option {
	return func(r *Runtime) { r.chainOpts = append(r.chainOpts, opts...) }
}

// WithPackage makes namespaces loadable as load("name", "Ns").
func WithPackage(name string, namespaces ...*chain.Namespace) Option {
	return func(r *Runtime) { r.packages[name] = append(r.packages[name], namespaces...) }
}

// WithSourceLoader resolves load() of modules that are neither the library
// nor a registered package to script source.
func WithSourceLoader(fn func(module string) (string, error)) Option {
	return func(r *Runtime) { r.loader = fn }
}

// NewRuntime creates a Runtime. Without packages only the Global namespace
// is loadable, under the name "global".
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		base:     zerolog.Nop(),
		out:      os.Stdout,
		packages: make(map[string][]*chain.Namespace),
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, ok := r.packages["global"]; !ok {
		r.packages["global"] = []*chain.Namespace{chain.Global}
	}
	r.logger = r.base.With().Str("component", "script").Logger()
	return r
}

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextKeyName).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

const contextKeyName = "anlchain.context"

// Exec runs a script. src may be a string, []byte, io.Reader or nil, in
// which case filename is read. A #! first line is an ordinary comment.
// Cancelling ctx stops the script between steps and stops a running analysis
// between events.
func (r *Runtime) Exec(ctx context.Context, filename string, src any) (*Result, error) {
	result := &Result{}
	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(r.out, msg)
		},
	}
	thread.SetLocal(contextKeyName, ctx)
	thread.Load = r.newLoader(result)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	r.logger.Debug().Str("file", filename).Msg("Executing script")
	globals, err := starlark.ExecFile(thread, filename, src, r.predeclared())
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			r.logger.Error().Str("file", filename).Msg(evalErr.Backtrace())
		}
		return result, fmt.Errorf("script %s failed: %w", filename, err)
	}
	result.Globals = globals
	return result, nil
}

func (r *Runtime) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

func (r *Runtime) newLoader(result *Result) func(*starlark.Thread, string) (starlark.StringDict, error) {
	cache := make(map[string]starlark.StringDict)
	return func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
		if dict, ok := cache[module]; ok {
			return dict, nil
		}
		dict, err := r.load(thread, module, result)
		if err != nil {
			return nil, err
		}
		cache[module] = dict
		return dict, nil
	}
}

func (r *Runtime) load(thread *starlark.Thread, module string, result *Result) (starlark.StringDict, error) {
	if module == LibraryModule {
		return r.library(result), nil
	}
	if namespaces, ok := r.packages[module]; ok {
		dict := make(starlark.StringDict, len(namespaces))
		for _, ns := range namespaces {
			dict[ns.Name()] = &namespaceValue{ns: ns}
		}
		return dict, nil
	}
	if r.loader == nil {
		return nil, fmt.Errorf("cannot load %q: unknown module (available: %s)", module, strings.Join(r.available(), ", "))
	}
	src, err := r.loader(module)
	if err != nil {
		return nil, fmt.Errorf("cannot load %q: %w", module, err)
	}
	child := &starlark.Thread{Name: module, Print: thread.Print, Load: thread.Load}
	child.SetLocal(contextKeyName, threadContext(thread))
	return starlark.ExecFile(child, module, src, r.predeclared())
}

func (r *Runtime) available() []string {
	names := []string{LibraryModule}
	for name := range r.packages {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}

func (r *Runtime) library(result *Result) starlark.StringDict {
	return starlark.StringDict{
		"app": starlark.NewBuiltin("app", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return r.newApp(thread, b, args, kwargs, result)
		}),
		"vec":      starlark.NewBuiltin("vec", builtinVec),
		"LOOP_ALL": starlark.String("all"),
	}
}

// newApp implements app(setup, name=None). The setup function receives the
// app itself and is called each time the app runs.
func (r *Runtime) newApp(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, result *Result) (starlark.Value, error) {
	var fn starlark.Callable
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "setup", &fn, "name?", &name); err != nil {
		return nil, err
	}
	if name == "" {
		name = fn.Name()
	}

	av := &appValue{rt: r, result: result, thread: thread}
	opts := append([]chain.Option{chain.WithLogger(r.base), chain.WithOutput(r.out)}, r.chainOpts...)
	av.app = chain.NewApp(name, func(*chain.App) error {
		_, err := starlark.Call(av.thread, fn, starlark.Tuple{av}, nil)
		return err
	}, opts...)
	result.Apps = append(result.Apps, av.app)
	return av, nil
}
