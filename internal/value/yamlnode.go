package value

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// ToYAMLNode renders v as an ordered *yaml.Node tree, preserving v's own key
// order at every mapping level (the insertion order recorded in Keys()).
// This is the inverse of the template package's yaml.Node → Value
// interpretation, used at emit time where the emitted document's key order
// must match the schema's declared order rather than an arbitrary sort.
func ToYAMLNode(v Value) *yaml.Node {
	switch v.Kind() {
	case KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case KindBool:
		b, _ := v.Bool()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
	case KindInt:
		i, _ := v.Int()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(i, 10)}
	case KindFloat:
		f, _ := v.Float()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(f, 'g', -1, 64)}
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.String()}
	case KindList:
		items := v.List()
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: make([]*yaml.Node, 0, len(items))}
		for _, item := range items {
			node.Content = append(node.Content, ToYAMLNode(item))
		}
		return node
	case KindMap:
		keys := v.Keys()
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: make([]*yaml.Node, 0, 2*len(keys))}
		for _, key := range keys {
			child, _ := v.Get(key)
			// Emitted documents omit null fields entirely rather than writing
			// "null"/"~" (spec §6) — absence already means "inherit" at the
			// template layer, so a present-but-null key would be redundant.
			if child.IsNull() {
				continue
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key})
			node.Content = append(node.Content, ToYAMLNode(child))
		}
		return node
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

// MarshalYAML renders v directly to bytes with stable key order and an LF
// final newline (yaml.v3's encoder already emits "\n" line endings).
func MarshalYAML(v Value) ([]byte, error) {
	return yaml.Marshal(ToYAMLNode(v))
}
