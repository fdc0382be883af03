package script

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// fromStarlarkValue converts a script value to the Go shape expected by
// parameter.FromAny. Integers become int, lists become []any and vec()
// results become parameter.Vec.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return int(i), nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *vecValue:
		return val.vec, nil
	case *starlark.List:
		return iterableToSlice(val)
	case starlark.Tuple:
		return iterableToSlice(val)
	case *starlark.Dict:
		dict := make(map[string]any)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func iterableToSlice(it starlark.Indexable) ([]any, error) {
	out := make([]any, it.Len())
	for i := 0; i < it.Len(); i++ {
		item, err := fromStarlarkValue(it.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

// dictToParams turns a script dict into ordered parameter values. Dict
// iteration follows insertion order.
func dictToParams(d *starlark.Dict) (chain.Params, error) {
	if d == nil {
		return nil, nil
	}
	params := make(chain.Params, 0, d.Len())
	for _, item := range d.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("parameter name must be a string, got %s", item[0].Type())
		}
		value, err := fromStarlarkValue(item[1])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", key, err)
		}
		params = append(params, chain.P(string(key), value))
	}
	return params, nil
}

// toStarlarkValue converts a parameter value back into a script value.
func toStarlarkValue(v parameter.Value) starlark.Value {
	switch v.Kind() {
	case parameter.KindScalar:
		switch x := v.Scalar().(type) {
		case bool:
			return starlark.Bool(x)
		case int:
			return starlark.MakeInt(x)
		case float64:
			return starlark.Float(x)
		case string:
			return starlark.String(x)
		}
		return starlark.None
	case parameter.KindStringVector:
		items := make([]starlark.Value, len(v.Strings()))
		for i, s := range v.Strings() {
			items[i] = starlark.String(s)
		}
		return starlark.NewList(items)
	case parameter.KindFloatVector:
		items := make([]starlark.Value, len(v.Floats()))
		for i, f := range v.Floats() {
			items[i] = starlark.Float(f)
		}
		return starlark.NewList(items)
	case parameter.KindIntVector:
		items := make([]starlark.Value, len(v.Ints()))
		for i, n := range v.Ints() {
			items[i] = starlark.MakeInt(n)
		}
		return starlark.NewList(items)
	case parameter.KindVector2:
		p := v.Vector2()
		return &vecValue{vec: parameter.NewVec(p.X, p.Y)}
	case parameter.KindVector3:
		p := v.Vector3()
		return &vecValue{vec: parameter.NewVec(p.X, p.Y, p.Z)}
	default:
		return starlark.NewList(nil)
	}
}
