package script

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/docgen"
	"github.com/openfroyo/anlchain/pkg/engine"
)

// appValue is the script side of a chain.App. The same value is handed to
// the setup function, so scripts write anl.chain(...) both inside and
// outside of it.
type appValue struct {
	app    *chain.App
	rt     *Runtime
	result *Result
	thread *starlark.Thread
}

var appMethods = map[string]builtinFunc{
	"add_namespace":         appAddNamespace,
	"chain":                 appChain,
	"push":                  appPush,
	"insert":                appInsert,
	"expose":                appExpose,
	"get":                   appGet,
	"index":                 appIndex,
	"rindex":                appRindex,
	"set_parameter":         appSetParameter,
	"with_parameters":       appWithParameters,
	"insert_map":            appInsertMap,
	"set_parameters":        appSetParameters,
	"chain_with_parameters": appChainWithParameters,
	"text":                  appText,
	"setup_module":          appSetupModule,
	"run":                   appRun,
	"run_interactive":       appRunInteractive,
	"print_all_param":       appPrintAllParam,
	"make_doc":              appMakeDoc,
	"make_script":           appMakeScript,
}

var (
	_ starlark.HasAttrs    = (*appValue)(nil)
	_ starlark.HasSetField = (*appValue)(nil)
)

func (a *appValue) String() string        { return "<app " + a.app.Name() + ">" }
func (a *appValue) Type() string          { return "app" }
func (a *appValue) Freeze()               {}
func (a *appValue) Truth() starlark.Bool  { return starlark.True }
func (a *appValue) Hash() (uint32, error) { return starlark.String(a.app.Name()).Hash() }
func (a *appValue) AttrNames() []string {
	return attrNames(appMethods, "name", "state", "thread_mode", "size")
}

func (a *appValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(a.app.Name()), nil
	case "state":
		return starlark.String(a.app.State().String()), nil
	case "thread_mode":
		return starlark.Bool(a.app.ThreadMode()), nil
	case "size":
		return starlark.MakeInt(a.app.Len()), nil
	}
	return attr(appMethods, a, name)
}

func (a *appValue) SetField(name string, val starlark.Value) error {
	if name != "thread_mode" {
		return starlark.NoSuchAttrError(fmt.Sprintf("app has no writable field %s", name))
	}
	on, ok := val.(starlark.Bool)
	if !ok {
		return fmt.Errorf("thread_mode must be a bool, got %s", val.Type())
	}
	a.app.SetThreadMode(bool(on))
	return nil
}

func receiverApp(b *starlark.Builtin) *appValue {
	return b.Receiver().(*appValue)
}

// setupFunc wraps a script callable; it receives the module as its only
// argument.
func setupFunc(thread *starlark.Thread, fn starlark.Callable) chain.SetupFunc {
	if fn == nil {
		return nil
	}
	return func(m engine.Module) error {
		_, err := starlark.Call(thread, fn, starlark.Tuple{&moduleValue{module: m}}, nil)
		return err
	}
}

func unpackSetup(v starlark.Value) (starlark.Callable, error) {
	switch fn := v.(type) {
	case nil, starlark.NoneType:
		return nil, nil
	case starlark.Callable:
		return fn, nil
	default:
		return nil, fmt.Errorf("setup must be callable, got %s", v.Type())
	}
}

func optionalID(v starlark.Value) (string, error) {
	switch id := v.(type) {
	case nil, starlark.NoneType:
		return "", nil
	case starlark.String:
		return string(id), nil
	default:
		return "", fmt.Errorf("module id must be a string, got %s", v.Type())
	}
}

func moduleOrNone(h *chain.Handle) starlark.Value {
	if h == nil {
		return starlark.None
	}
	return &moduleValue{module: h.Module()}
}

func appAddNamespace(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var ns *namespaceValue
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "namespace", &ns); err != nil {
		return nil, err
	}
	recv.app.AddNamespace(ns.ns)
	return starlark.None, nil
}

func appChain(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var class, idValue starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cls", &class, "id?", &idValue); err != nil {
		return nil, err
	}
	id, err := optionalID(idValue)
	if err != nil {
		return nil, err
	}
	init, err := initializerFor(class, id)
	if err != nil {
		return nil, err
	}

	var h *chain.Handle
	if init.Factory != nil {
		h, err = recv.app.ChainModule(init.Factory, id)
	} else {
		h, err = recv.app.Chain(init.Class, id)
	}
	if err != nil {
		return nil, err
	}
	return moduleOrNone(h), nil
}

func appPush(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var class *classValue
	var idValue starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cls", &class, "id?", &idValue); err != nil {
		return nil, err
	}
	id, err := optionalID(idValue)
	if err != nil {
		return nil, err
	}
	m := class.factory()
	if id != "" {
		m.SetModuleID(id)
	}
	h, err := recv.app.Push(m)
	if err != nil {
		return nil, err
	}
	return moduleOrNone(h), nil
}

func appInsert(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var pos int
	var class, idValue starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pos", &pos, "cls", &class, "id?", &idValue); err != nil {
		return nil, err
	}
	id, err := optionalID(idValue)
	if err != nil {
		return nil, err
	}
	init, err := initializerFor(class, id)
	if err != nil {
		return nil, err
	}
	var h *chain.Handle
	if init.Factory != nil {
		m := init.Factory()
		if id != "" {
			m.SetModuleID(id)
		}
		h, err = recv.app.Insert(pos, m)
	} else {
		h, err = recv.app.InsertClass(pos, init.Class, id)
	}
	if err != nil {
		return nil, err
	}
	return moduleOrNone(h), nil
}

func appExpose(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var id string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id); err != nil {
		return nil, err
	}
	h, err := recv.app.Expose(id)
	if err != nil {
		return nil, err
	}
	return moduleOrNone(h), nil
}

func appGet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var id string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id); err != nil {
		return nil, err
	}
	return moduleOrNone(recv.app.Get(id)), nil
}

func appIndex(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var id string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id); err != nil {
		return nil, err
	}
	i, ok := recv.app.IndexOf(id)
	if !ok {
		return starlark.None, nil
	}
	return starlark.MakeInt(i), nil
}

func appRindex(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var id string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id); err != nil {
		return nil, err
	}
	i, ok := recv.app.LastIndexOf(id)
	if !ok {
		return starlark.None, nil
	}
	return starlark.MakeInt(i), nil
}

func appSetParameter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var name string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	v, err := fromStarlarkValue(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", b.Name(), name, err)
	}
	if err := recv.app.SetParameter(name, v); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func appWithParameters(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var params *starlark.Dict
	var setup starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "params?", &params, "setup?", &setup); err != nil {
		return nil, err
	}
	p, err := dictToParams(params)
	if err != nil {
		return nil, err
	}
	fn, err := unpackSetup(setup)
	if err != nil {
		return nil, err
	}
	if err := recv.app.WithParameters(p, setupFunc(thread, fn)); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func appInsertMap(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var name, key string
	var values *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "key", &key, "values?", &values); err != nil {
		return nil, err
	}
	p, err := dictToParams(values)
	if err != nil {
		return nil, err
	}
	if err := recv.app.InsertMap(name, key, p); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func appSetParameters(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var id string
	var params *starlark.Dict
	var setup starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id, "params?", &params, "setup?", &setup); err != nil {
		return nil, err
	}
	p, err := dictToParams(params)
	if err != nil {
		return nil, err
	}
	fn, err := unpackSetup(setup)
	if err != nil {
		return nil, err
	}
	if err := recv.app.SetParameters(id, p, setupFunc(thread, fn)); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

// appChainWithParameters chains the modules picked for setup slots. Each
// argument is a slot or a single pick returned by slot.set/add.
func appChainWithParameters(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	var inits []*chain.Initializer
	for i, arg := range args {
		switch v := arg.(type) {
		case *slotValue:
			inits = append(inits, v.slot.Modules()...)
		case *initializerValue:
			inits = append(inits, v.init)
		default:
			return nil, fmt.Errorf("%s: argument %d is %s, want setup_module or initializer", b.Name(), i, arg.Type())
		}
	}
	if err := recv.app.ChainWithParameters(inits...); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func appText(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var description string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "description", &description); err != nil {
		return nil, err
	}
	if err := recv.app.Text(description); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func appSetupModule(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var name string
	var class starlark.Value = starlark.String("")
	var array bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "cls?", &class, "array?", &array); err != nil {
		return nil, err
	}
	opts := chain.SetupModuleOptions{Array: array}
	switch c := class.(type) {
	case starlark.String:
		opts.Class = string(c)
	case *classValue:
		opts.Class = c.name
	default:
		return nil, fmt.Errorf("%s: cls must be a string or a class", b.Name())
	}
	return &slotValue{slot: chain.DefineSetupModule(recv.app, name, opts)}, nil
}

// loopCount accepts an event count or "all".
func loopCount(v starlark.Value) (int, error) {
	switch n := v.(type) {
	case starlark.String:
		if n == "all" {
			return chain.LoopAll, nil
		}
	case starlark.Int:
		if i, ok := n.Int64(); ok {
			return int(i), nil
		}
	}
	return 0, fmt.Errorf("num_loop must be an int or \"all\", got %s", v.String())
}

func appRun(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var numLoop starlark.Value
	var displayFrequency int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "num_loop", &numLoop, "display_frequency?", &displayFrequency); err != nil {
		return nil, err
	}
	n, err := loopCount(numLoop)
	if err != nil {
		return nil, err
	}

	inv := Invocation{App: recv.app, Kind: InvokeRun, NumLoop: n, DisplayFrequency: displayFrequency}
	return starlark.None, recv.invoke(thread, inv, func(ctx context.Context) error {
		return recv.app.Run(ctx, n, displayFrequency)
	})
}

func appRunInteractive(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	inv := Invocation{App: recv.app, Kind: InvokeInteractive, NumLoop: chain.LoopAll}
	return starlark.None, recv.invoke(thread, inv, func(ctx context.Context) error {
		recv.app.RunInteractive(ctx)
		return nil
	})
}

func appPrintAllParam(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	inv := Invocation{App: recv.app, Kind: InvokePrintParameters}
	return starlark.None, recv.invoke(thread, inv, func(ctx context.Context) error {
		return recv.assembled(func() error {
			return recv.app.PrintAllParameters(ctx, recv.rt.out)
		})
	})
}

func appMakeDoc(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	var path, category string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path?", &path, "category?", &category); err != nil {
		return nil, err
	}
	inv := Invocation{App: recv.app, Kind: InvokeMakeDoc, Path: path}
	return starlark.None, recv.invoke(thread, inv, func(context.Context) error {
		return recv.assembled(func() error {
			return recv.app.MakeDoc(path, category)
		})
	})
}

func appMakeScript(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := receiverApp(b)
	opts := docgen.DefaultScriptOptions()
	var path string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"path?", &path,
		"package?", &opts.Package,
		"namespace?", &opts.Namespace,
		"app_name?", &opts.AppName,
	); err != nil {
		return nil, err
	}
	inv := Invocation{App: recv.app, Kind: InvokeMakeScript, Path: path}
	return starlark.None, recv.invoke(thread, inv, func(context.Context) error {
		return recv.assembled(func() error {
			return recv.app.MakeScript(path, opts)
		})
	})
}

// assembled runs fn on a freshly set up chain and clears it afterwards, so
// that a later run starts from an empty chain.
func (a *appValue) assembled(fn func() error) error {
	a.app.AnalysisChain.Clear()
	defer a.app.AnalysisChain.Clear()
	if err := a.app.Setup(); err != nil {
		return err
	}
	return fn()
}

// invoke records inv and, in run mode, executes it.
func (a *appValue) invoke(thread *starlark.Thread, inv Invocation, fn func(ctx context.Context) error) error {
	if a.rt.mode == ModeBuild {
		a.result.Invocations = append(a.result.Invocations, inv)
		return nil
	}
	inv.Err = fn(threadContext(thread))
	a.result.Invocations = append(a.result.Invocations, inv)
	return inv.Err
}
