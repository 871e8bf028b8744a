package filecodec

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// toYAMLNode converts an order-preserving Value into a *yaml.Node tree so
// Marshal emits block style with the member order the request used, rather
// than the randomized order a plain map[string]any would produce.
func toYAMLNode(v Value) *yaml.Node {
	switch v.Kind {
	case KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case KindBool:
		val := "false"
		if v.Bool {
			val = "true"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: val}
	case KindNumber:
		tag := "!!int"
		if _, err := strconv.ParseInt(v.Number.String(), 10, 64); err != nil {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.Number.String()}
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Str}
	case KindArray:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.Array {
			node.Content = append(node.Content, toYAMLNode(item))
		}
		return node
	case KindObject:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, kv := range v.Object {
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Key},
				toYAMLNode(kv.Value),
			)
		}
		return node
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func encodeYAML(v Value) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{toYAMLNode(v)}}
	return yaml.Marshal(doc)
}
