package docgen

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/openfroyo/anlchain/pkg/engine"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// Map types of a <param> entry.
const (
	MapTypeNone  = ""
	MapTypeMap   = "map"
	MapTypeKey   = "key"
	MapTypeValue = "value"
)

// Document is the root <anlmodules> element.
type Document struct {
	XMLName  xml.Name         `xml:"anlmodules"`
	Category string           `xml:"category"`
	Modules  []ModuleDocument `xml:"module"`
}

// ModuleDocument describes one module.
type ModuleDocument struct {
	Name       string    `xml:"name"`
	Version    string    `xml:"version"`
	Text       string    `xml:"text"`
	Parameters ParamList `xml:"parameters"`
}

// ParamList is the <parameters> element. It is written even when empty.
type ParamList struct {
	Params []ParamDocument `xml:"param"`
}

// ParamDocument describes one parameter, map key or map column.
type ParamDocument struct {
	MapType      string `xml:"map_type,attr"`
	Name         string `xml:"name"`
	Type         string `xml:"type"`
	Unit         string `xml:"unit"`
	DefaultValue string `xml:"default_value"`
	Description  string `xml:"description"`
}

// BuildDocument collects the description of modules in order. Parameter
// definitions are materialized first.
func BuildDocument(modules []engine.Module, category string) (*Document, error) {
	doc := &Document{Category: category}
	for _, m := range modules {
		if err := m.Define(); err != nil {
			return nil, fmt.Errorf("failed to define parameters of %s: %w", m.ModuleID(), err)
		}
		md := ModuleDocument{
			Name:    m.ModuleName(),
			Version: m.ModuleVersion(),
			Text:    m.ModuleDescription(),
		}
		for _, d := range m.Parameters() {
			md.Parameters.Params = append(md.Parameters.Params, describe(d)...)
		}
		doc.Modules = append(doc.Modules, md)
	}
	return doc, nil
}

func describe(d parameter.Descriptor) []ParamDocument {
	typ := d.TypeName()
	entry := ParamDocument{
		Name:         d.Name(),
		Type:         typ,
		Unit:         d.UnitName(),
		DefaultValue: defaultValue(d),
		Description:  d.Description(),
	}

	md, ok := d.(parameter.MapDescriptor)
	if !ok || typ != string(parameter.TypeMap) {
		return []ParamDocument{entry}
	}

	entry.MapType = MapTypeMap
	out := []ParamDocument{entry, {
		MapType:      MapTypeKey,
		Name:         md.MapKeyName(),
		Type:         string(parameter.TypeString),
		DefaultValue: md.DefaultString(),
	}}
	for i := 0; i < md.NumMapValues(); i++ {
		col := md.MapValue(i)
		out = append(out, ParamDocument{
			MapType:      MapTypeValue,
			Name:         col.Name(),
			Type:         col.TypeName(),
			Unit:         col.UnitName(),
			DefaultValue: col.ValueString(),
			Description:  col.Description(),
		})
	}
	return out
}

// defaultValue picks the declared default for string vectors and lists and
// the current value for everything else.
func defaultValue(d parameter.Descriptor) string {
	switch parameter.Type(d.TypeName()) {
	case parameter.TypeStringVector, parameter.TypeStringList:
		return d.DefaultString()
	default:
		return d.ValueString()
	}
}

// GenerateDocument writes the XML description of modules to w.
func GenerateDocument(w io.Writer, modules []engine.Module, category string) error {
	doc, err := BuildDocument(modules, category)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}
