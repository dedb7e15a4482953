package schema

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"invquery/graphdb"
)

// NodeType declares the typed properties a vertex of one type may carry
type NodeType struct {
	Name       string
	Properties map[string]graphdb.PropertyType
}

// NodeTypes is the per-type property schema. It validates vertices on
// their way into the store and start predicates on their way into the
// engine.
type NodeTypes struct {
	types map[string]NodeType
}

var _ graphdb.VertexValidator = (*NodeTypes)(nil)

type nodeTypesDocument struct {
	NodeTypes map[string]struct {
		Properties map[string]string `yaml:"properties"`
	} `yaml:"node-types"`
}

// ParseNodeTypes decodes a node-types document
func ParseNodeTypes(data []byte) (*NodeTypes, error) {
	var doc nodeTypesDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse node types: %w", err)
	}
	nt := &NodeTypes{types: make(map[string]NodeType, len(doc.NodeTypes))}
	for name, decl := range doc.NodeTypes {
		t := NodeType{Name: name, Properties: make(map[string]graphdb.PropertyType, len(decl.Properties))}
		for key, typeName := range decl.Properties {
			pt, err := graphdb.ParsePropertyType(typeName)
			if err != nil {
				return nil, fmt.Errorf("node type %s property %s: %w", name, key, err)
			}
			t.Properties[key] = pt
		}
		nt.types[name] = t
	}
	return nt, nil
}

// LoadNodeTypes reads a node-types document from disk
func LoadNodeTypes(path string) (*NodeTypes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read node types %s: %w", path, err)
	}
	return ParseNodeTypes(data)
}

// Lookup returns the declaration of a node type
func (n *NodeTypes) Lookup(name string) (NodeType, bool) {
	t, ok := n.types[name]
	return t, ok
}

// Names returns declared node types in sorted order
func (n *NodeTypes) Names() []string {
	names := make([]string, 0, len(n.types))
	for name := range n.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateVertex checks that the vertex type is declared and that every
// property is declared with a matching value type
func (n *NodeTypes) ValidateVertex(v graphdb.Vertex) error {
	t, ok := n.types[v.NodeType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNodeType, v.NodeType)
	}
	for _, p := range v.Properties {
		want, ok := t.Properties[p.Key]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUndeclaredProperty, v.NodeType, p.Key)
		}
		if want != p.Type {
			return fmt.Errorf("%w: %s.%s is %s, got %s", ErrUndeclaredProperty, v.NodeType, p.Key, want, p.Type)
		}
	}
	return nil
}

// ValidatePredicate checks that a start predicate only names declared
// properties. Without a node type, a property must be declared by at
// least one type.
func (n *NodeTypes) ValidatePredicate(pred graphdb.Predicate) error {
	if pred.NodeType != "" {
		t, ok := n.types[pred.NodeType]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNodeType, pred.NodeType)
		}
		for _, key := range pred.Keys() {
			if _, ok := t.Properties[key]; !ok {
				return fmt.Errorf("%w: %s.%s", ErrUndeclaredProperty, pred.NodeType, key)
			}
		}
		return nil
	}
	for _, key := range pred.Keys() {
		if !n.declaresAnywhere(key) {
			return fmt.Errorf("%w: %s", ErrUndeclaredProperty, key)
		}
	}
	return nil
}

func (n *NodeTypes) declaresAnywhere(key string) bool {
	for _, t := range n.types {
		if _, ok := t.Properties[key]; ok {
			return true
		}
	}
	return false
}
