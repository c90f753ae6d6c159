package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMarshalYAML_PreservesInsertionOrderNotSortOrder(t *testing.T) {
	doc := NewMap([]string{"version", "description", "category"}, map[string]Value{
		"version":     NewString("1"),
		"description": NewString("a thing"),
		"category":    NewString("servers"),
	})

	out, err := MarshalYAML(doc)
	require.NoError(t, err)

	var roundTrip yaml.Node
	require.NoError(t, yaml.Unmarshal(out, &roundTrip))
	doc2 := roundTrip.Content[0]

	var keys []string
	for i := 0; i < len(doc2.Content); i += 2 {
		keys = append(keys, doc2.Content[i].Value)
	}
	assert.Equal(t, []string{"version", "description", "category"}, keys)
}

func TestToYAMLNode_ScalarKindsGetExplicitTags(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		tag  string
		val  string
	}{
		{"null", Null(), "!!null", "null"},
		{"bool", NewBool(true), "!!bool", "true"},
		{"int", NewInt(42), "!!int", "42"},
		{"float", NewFloat(3.5), "!!float", "3.5"},
		{"string", NewString("nginx"), "!!str", "nginx"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := ToYAMLNode(tc.v)
			assert.Equal(t, yaml.ScalarNode, node.Kind)
			assert.Equal(t, tc.tag, node.Tag)
			assert.Equal(t, tc.val, node.Value)
		})
	}
}

func TestToYAMLNode_ListRendersEachItem(t *testing.T) {
	list := NewList([]Value{NewString("linux"), NewString("darwin")})
	node := ToYAMLNode(list)
	require.Equal(t, yaml.SequenceNode, node.Kind)
	require.Len(t, node.Content, 2)
	assert.Equal(t, "linux", node.Content[0].Value)
	assert.Equal(t, "darwin", node.Content[1].Value)
}

func TestToYAMLNode_MapOmitsNullValuedKeys(t *testing.T) {
	m := NewMap([]string{"name", "homepage"}, map[string]Value{
		"name":     NewString("nginx"),
		"homepage": Null(),
	})
	node := ToYAMLNode(m)
	require.Len(t, node.Content, 2)
	assert.Equal(t, "name", node.Content[0].Value)
}

func TestToYAMLNode_MapAlternatesKeyValuePairsInOrder(t *testing.T) {
	m := NewMap([]string{"b", "a"}, map[string]Value{
		"a": NewInt(1),
		"b": NewInt(2),
	})
	node := ToYAMLNode(m)
	require.Equal(t, yaml.MappingNode, node.Kind)
	require.Len(t, node.Content, 4)
	assert.Equal(t, "b", node.Content[0].Value)
	assert.Equal(t, "2", node.Content[1].Value)
	assert.Equal(t, "a", node.Content[2].Value)
	assert.Equal(t, "1", node.Content[3].Value)
}
