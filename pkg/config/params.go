package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/parameter"
)

// UnmarshalYAML decodes a mapping of parameter values keeping key order.
func (l *ParamList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: parameters must be a mapping", node.Line)
	}
	out := make(ParamList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		v, err := yamlValue(val)
		if err != nil {
			return fmt.Errorf("line %d: parameter %s: %w", val.Line, key.Value, err)
		}
		out = append(out, chain.P(key.Value, v))
	}
	*l = out
	return nil
}

// MarshalYAML writes the list back as an ordered mapping.
func (l ParamList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range l {
		val, err := yamlNode(p.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: p.Name}, val)
	}
	return node, nil
}

// yamlNode encodes a value so that it decodes back to the same kind: floats
// always carry a decimal point.
func yamlNode(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: floatLiteral(x)}, nil
	case []float64:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, f := range x {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: floatLiteral(f)})
		}
		return seq, nil
	case parameter.Vec:
		vec, err := yamlNode([]float64(x))
		if err != nil {
			return nil, err
		}
		return &yaml.Node{
			Kind:    yaml.MappingNode,
			Style:   yaml.FlowStyle,
			Content: []*yaml.Node{{Kind: yaml.ScalarNode, Value: "vec"}, vec},
		}, nil
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, it := range x {
			n, err := yamlNode(it)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	}
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return &n, nil
}

func floatLiteral(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEIN") {
		return s
	}
	return s + ".0"
}

func yamlValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return normalizeList(items), nil
	case yaml.MappingNode:
		var vec struct {
			Vec []float64 `yaml:"vec"`
		}
		if len(node.Content) != 2 || node.Content[0].Value != "vec" {
			return nil, fmt.Errorf("only {vec: [...]} mappings are allowed as values")
		}
		if err := node.Decode(&vec); err != nil {
			return nil, err
		}
		return vectorValue(vec.Vec)
	case yaml.AliasNode:
		return yamlValue(node.Alias)
	default:
		return nil, fmt.Errorf("unsupported value")
	}
}

func vectorValue(components []float64) (parameter.Vec, error) {
	if len(components) != 2 && len(components) != 3 {
		return nil, fmt.Errorf("vec needs 2 or 3 components, got %d", len(components))
	}
	return parameter.NewVec(components...), nil
}

// normalizeList turns a list of numbers holding at least one float into a
// float list, so that [1, 2.5] is a float vector.
func normalizeList(items []any) []any {
	hasFloat := false
	for _, it := range items {
		if _, ok := it.(float64); ok {
			hasFloat = true
			break
		}
	}
	if !hasFloat {
		return items
	}
	for i, it := range items {
		switch n := it.(type) {
		case int:
			items[i] = float64(n)
		case int64:
			items[i] = float64(n)
		}
	}
	return items
}
