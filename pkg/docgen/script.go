package docgen

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.starlark.net/starlark"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// Shebang is the first line of a generated script.
const Shebang = "#!/usr/bin/env -S anlchain run"

// LibraryModule is the name scripts load the chain bindings from.
const LibraryModule = "anlchain"

// ScriptOptions names the user package and application in a generated script.
type ScriptOptions struct {
	// Package is the load() target providing the module namespace.
	Package string `yaml:"package" validate:"required"`

	// Namespace is the symbol loaded from Package and passed to add_namespace.
	Namespace string `yaml:"namespace" validate:"required"`

	// AppName is the name of the setup function.
	AppName string `yaml:"app_name" validate:"required"`
}

// DefaultScriptOptions returns the placeholder names used when none are given.
func DefaultScriptOptions() ScriptOptions {
	return ScriptOptions{Package: "myPackage", Namespace: "MyPackage", AppName: "MyApp"}
}

func (o ScriptOptions) withDefaults() ScriptOptions {
	def := DefaultScriptOptions()
	if o.Package == "" {
		o.Package = def.Package
	}
	if o.Namespace == "" {
		o.Namespace = def.Namespace
	}
	if o.AppName == "" {
		o.AppName = def.AppName
	}
	return o
}

// GenerateScript writes a configuration script that rebuilds modules in
// order with their current parameter values.
func GenerateScript(w io.Writer, modules []engine.Module, opts ScriptOptions) error {
	opts = opts.withDefaults()
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, Shebang)
	fmt.Fprintf(bw, "load(%s, \"app\", \"vec\")\n", quote(LibraryModule))
	fmt.Fprintf(bw, "load(%s, %s)\n", quote(opts.Package), quote(opts.Namespace))
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "num_loop = 100000")
	fmt.Fprintln(bw, "display_frequency = 1000")
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "def %s(anl):\n", opts.AppName)
	fmt.Fprintf(bw, "    anl.add_namespace(%s)\n", opts.Namespace)

	for _, m := range modules {
		if err := m.Define(); err != nil {
			return fmt.Errorf("failed to define parameters of %s: %w", m.ModuleID(), err)
		}
		fmt.Fprintln(bw)
		if err := writeModule(bw, m); err != nil {
			return err
		}
	}

	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "anl = app(%s)\n", opts.AppName)
	fmt.Fprintln(bw, "anl.run(num_loop, display_frequency)")
	return bw.Flush()
}

func writeModule(w io.Writer, m engine.Module) error {
	if m.ModuleID() == m.ModuleName() {
		fmt.Fprintf(w, "    anl.chain(%s)\n", quote(m.ModuleName()))
	} else {
		fmt.Fprintf(w, "    anl.chain(%s, %s)\n", quote(m.ModuleName()), quote(m.ModuleID()))
	}

	var scalars []parameter.Descriptor
	var maps []parameter.MapDescriptor
	for _, d := range m.Parameters() {
		if md, ok := d.(parameter.MapDescriptor); ok && d.TypeName() == string(parameter.TypeMap) {
			maps = append(maps, md)
			continue
		}
		scalars = append(scalars, d)
	}

	if len(scalars) == 0 {
		fmt.Fprintln(w, "    anl.with_parameters({})")
	} else {
		fmt.Fprintln(w, "    anl.with_parameters({")
		for _, d := range scalars {
			lit, err := Literal(d)
			if err != nil {
				return fmt.Errorf("module %s: %w", m.ModuleID(), err)
			}
			fmt.Fprintf(w, "        %s: %s,\n", quote(d.Name()), lit)
		}
		fmt.Fprintln(w, "    })")
	}

	for _, md := range maps {
		fmt.Fprintf(w, "    anl.insert_map(%s, %s, {\n", quote(md.Name()), quote(md.DefaultString()))
		for i := 0; i < md.NumMapValues(); i++ {
			col := md.MapValue(i)
			lit, err := Literal(col)
			if err != nil {
				return fmt.Errorf("module %s, map %s: %w", m.ModuleID(), md.Name(), err)
			}
			fmt.Fprintf(w, "        %s: %s,\n", quote(col.Name()), lit)
		}
		fmt.Fprintln(w, "    })")
	}
	return nil
}

// Literal renders the current value of d as a script literal.
func Literal(d parameter.Descriptor) (string, error) {
	value := d.ValueString()
	switch parameter.Type(d.TypeName()) {
	case parameter.TypeString:
		return quote(value), nil
	case parameter.TypeBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("parameter %s: %w", d.Name(), err)
		}
		if b {
			return "True", nil
		}
		return "False", nil
	case parameter.TypeFloat:
		return floatLiteral(value)
	case parameter.TypeVector2, parameter.TypeVector3:
		parts, err := floatLiterals(value)
		if err != nil {
			return "", fmt.Errorf("parameter %s: %w", d.Name(), err)
		}
		return "vec(" + strings.Join(parts, ", ") + ")", nil
	case parameter.TypeStringVector, parameter.TypeStringList:
		elems := d.DefaultStrings()
		for i, e := range elems {
			elems[i] = quote(e)
		}
		return "[" + strings.Join(elems, ", ") + "]", nil
	case parameter.TypeFloatVector:
		parts, err := floatLiterals(value)
		if err != nil {
			return "", fmt.Errorf("parameter %s: %w", d.Name(), err)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case parameter.TypeIntVector:
		return "[" + strings.Join(strings.Fields(value), ", ") + "]", nil
	default:
		return value, nil
	}
}

func floatLiterals(s string) ([]string, error) {
	fields := strings.Fields(s)
	out := make([]string, len(fields))
	for i, f := range fields {
		lit, err := floatLiteral(f)
		if err != nil {
			return nil, err
		}
		out[i] = lit
	}
	return out, nil
}

// floatLiteral always carries a decimal point or an exponent so that the
// script reads the value back as a float.
func floatLiteral(s string) (string, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return "", fmt.Errorf("invalid float %q: %w", s, err)
	}
	switch {
	case math.IsNaN(f):
		return `float("nan")`, nil
	case math.IsInf(f, 1):
		return `float("inf")`, nil
	case math.IsInf(f, -1):
		return `float("-inf")`, nil
	}
	return starlark.Float(f).String(), nil
}

func quote(s string) string {
	return starlark.String(s).String()
}
