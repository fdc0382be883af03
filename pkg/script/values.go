package script

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

type builtinFunc func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func attr(methods map[string]builtinFunc, recv starlark.Value, name string) (starlark.Value, error) {
	fn, ok := methods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, fn).BindReceiver(recv), nil
}

func attrNames(methods map[string]builtinFunc, extra ...string) []string {
	names := append([]string(nil), extra...)
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// vecValue is the result of vec(x, y[, z]).
type vecValue struct {
	vec parameter.Vec
}

var _ starlark.Indexable = (*vecValue)(nil)

func (v *vecValue) String() string {
	parts := make([]string, len(v.vec))
	for i, f := range v.vec {
		parts[i] = starlark.Float(f).String()
	}
	return "vec(" + strings.Join(parts, ", ") + ")"
}

func (v *vecValue) Type() string               { return "vec" }
func (v *vecValue) Freeze()                    {}
func (v *vecValue) Truth() starlark.Bool       { return starlark.True }
func (v *vecValue) Hash() (uint32, error)      { return 0, fmt.Errorf("unhashable type: vec") }
func (v *vecValue) Len() int                   { return len(v.vec) }
func (v *vecValue) Index(i int) starlark.Value { return starlark.Float(v.vec[i]) }

func builtinVec(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) != 2 && len(args) != 3 {
		return nil, fmt.Errorf("%s: takes 2 or 3 components, got %d", b.Name(), len(args))
	}
	vec := make(parameter.Vec, len(args))
	for i, a := range args {
		f, ok := starlark.AsFloat(a)
		if !ok {
			return nil, fmt.Errorf("%s: component %d is %s, want number", b.Name(), i, a.Type())
		}
		vec[i] = f
	}
	return &vecValue{vec: vec}, nil
}

// namespaceValue exposes a module namespace; its attributes are classes.
type namespaceValue struct {
	ns *chain.Namespace
}

var _ starlark.HasAttrs = (*namespaceValue)(nil)

func (n *namespaceValue) String() string        { return "<namespace " + n.ns.Name() + ">" }
func (n *namespaceValue) Type() string          { return "namespace" }
func (n *namespaceValue) Freeze()               {}
func (n *namespaceValue) Truth() starlark.Bool  { return starlark.True }
func (n *namespaceValue) Hash() (uint32, error) { return starlark.String(n.ns.Name()).Hash() }
func (n *namespaceValue) AttrNames() []string   { return n.ns.Classes() }

func (n *namespaceValue) Attr(name string) (starlark.Value, error) {
	factory, ok := n.ns.Lookup(name)
	if !ok {
		return nil, nil
	}
	return &classValue{name: name, namespace: n.ns.Name(), factory: factory}, nil
}

// classValue is a module class taken from a namespace.
type classValue struct {
	name      string
	namespace string
	factory   chain.Factory
}

func (c *classValue) String() string        { return "<class " + c.namespace + "." + c.name + ">" }
func (c *classValue) Type() string          { return "class" }
func (c *classValue) Freeze()               {}
func (c *classValue) Truth() starlark.Bool  { return starlark.True }
func (c *classValue) Hash() (uint32, error) { return starlark.String(c.namespace + "." + c.name).Hash() }

// initializer builds an Initializer from a class given as a string or a
// class value.
func initializerFor(class starlark.Value, id string) (*chain.Initializer, error) {
	switch c := class.(type) {
	case starlark.String:
		return chain.NewInitializer(string(c), id), nil
	case *classValue:
		init := chain.NewInitializer(c.name, id)
		init.Factory = c.factory
		return init, nil
	default:
		return nil, fmt.Errorf("module class must be a string or a class, got %s", class.Type())
	}
}

// initializerValue is a module picked for a setup slot.
type initializerValue struct {
	init *chain.Initializer
}

var initializerMethods = map[string]builtinFunc{
	"with_parameters": initializerWithParameters,
	"insert_map":      initializerInsertMap,
}

func (i *initializerValue) String() string {
	return fmt.Sprintf("<initializer %s %s>", i.init.Class, i.init.ID)
}
func (i *initializerValue) Type() string         { return "initializer" }
func (i *initializerValue) Freeze()              {}
func (i *initializerValue) Truth() starlark.Bool { return starlark.True }
func (i *initializerValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: initializer")
}
func (i *initializerValue) AttrNames() []string { return attrNames(initializerMethods, "class", "id") }

func (i *initializerValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "class":
		return starlark.String(i.init.Class), nil
	case "id":
		return starlark.String(i.init.ID), nil
	}
	return attr(initializerMethods, i, name)
}

func initializerWithParameters(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*initializerValue)
	var params *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "params?", &params); err != nil {
		return nil, err
	}
	p, err := dictToParams(params)
	if err != nil {
		return nil, err
	}
	recv.init.With(p, nil)
	return recv, nil
}

func initializerInsertMap(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*initializerValue)
	var name, key string
	var values *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "key", &key, "values", &values); err != nil {
		return nil, err
	}
	p, err := dictToParams(values)
	if err != nil {
		return nil, err
	}
	recv.init.WithMap(name, key, p)
	return recv, nil
}

// slotValue is a setup slot defined with anl.setup_module().
type slotValue struct {
	slot *chain.SetupSlot
}

var slotMethods = map[string]builtinFunc{
	"set":     slotSet,
	"add":     slotAdd,
	"modules": slotModules,
}

func (s *slotValue) String() string        { return "<setup_module " + s.slot.Name() + ">" }
func (s *slotValue) Type() string          { return "setup_module" }
func (s *slotValue) Freeze()               {}
func (s *slotValue) Truth() starlark.Bool  { return starlark.True }
func (s *slotValue) Hash() (uint32, error) { return starlark.String(s.slot.Name()).Hash() }
func (s *slotValue) AttrNames() []string   { return attrNames(slotMethods) }

func (s *slotValue) Attr(name string) (starlark.Value, error) {
	return attr(slotMethods, s, name)
}

func unpackSlotArgs(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (string, string, error) {
	var id string
	var class starlark.Value = starlark.String("")
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id?", &id, "cls?", &class); err != nil {
		return "", "", err
	}
	switch c := class.(type) {
	case starlark.String:
		return string(c), id, nil
	case *classValue:
		return c.name, id, nil
	default:
		return "", "", fmt.Errorf("%s: cls must be a string or a class", b.Name())
	}
}

func slotSet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*slotValue)
	class, id, err := unpackSlotArgs(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return &initializerValue{init: recv.slot.Set(class, id)}, nil
}

func slotAdd(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*slotValue)
	class, id, err := unpackSlotArgs(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return &initializerValue{init: recv.slot.Add(class, id)}, nil
}

func slotModules(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*slotValue)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	var items []starlark.Value
	for _, init := range recv.slot.Modules() {
		items = append(items, &initializerValue{init: init})
	}
	return starlark.NewList(items), nil
}

// moduleValue gives scripts access to a chained module.
type moduleValue struct {
	module engine.Module
}

var moduleMethods = map[string]builtinFunc{
	"set": moduleSet,
	"get": moduleGet,
}

func (m *moduleValue) String() string        { return "<module " + m.module.ModuleID() + ">" }
func (m *moduleValue) Type() string          { return "module" }
func (m *moduleValue) Freeze()               {}
func (m *moduleValue) Truth() starlark.Bool  { return starlark.True }
func (m *moduleValue) Hash() (uint32, error) { return starlark.String(m.module.ModuleID()).Hash() }
func (m *moduleValue) AttrNames() []string {
	return attrNames(moduleMethods, "id", "name", "version", "description")
}

func (m *moduleValue) Attr(name string) (starlark.Value, error) {
	mod := m.module
	switch name {
	case "id":
		return starlark.String(mod.ModuleID()), nil
	case "name":
		return starlark.String(mod.ModuleName()), nil
	case "version":
		return starlark.String(mod.ModuleVersion()), nil
	case "description":
		return starlark.String(mod.ModuleDescription()), nil
	}
	return attr(moduleMethods, m, name)
}

func moduleSet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*moduleValue)
	var name string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	goValue, err := fromStarlarkValue(value)
	if err != nil {
		return nil, err
	}
	v, err := parameter.FromAny(goValue)
	if err != nil {
		return nil, err
	}
	if err := parameter.Apply(recv.module, name, v); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

// valuer is implemented by parameter descriptors that can report a typed value.
type valuer interface {
	Value() parameter.Value
}

func moduleGet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	recv := b.Receiver().(*moduleValue)
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	for _, d := range recv.module.Parameters() {
		if d.Name() != name {
			continue
		}
		if v, ok := d.(valuer); ok && d.TypeName() != string(parameter.TypeMap) {
			return toStarlarkValue(v.Value()), nil
		}
		return starlark.String(d.ValueString()), nil
	}
	return nil, fmt.Errorf("%s: %w: %s", b.Name(), parameter.ErrNotFound, name)
}
