package graphdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// PropertyType defines supported property types
type PropertyType int

const (
	PropertyInt PropertyType = iota
	PropertyString
	PropertyBool
)

// String converts PropertyType to its schema name
func (pt PropertyType) String() string {
	switch pt {
	case PropertyInt:
		return "int"
	case PropertyString:
		return "string"
	case PropertyBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ParsePropertyType maps a schema name back to a PropertyType
func ParsePropertyType(name string) (PropertyType, error) {
	switch name {
	case "int":
		return PropertyInt, nil
	case "string":
		return PropertyString, nil
	case "bool":
		return PropertyBool, nil
	default:
		return 0, fmt.Errorf("unsupported property type: %s", name)
	}
}

// Property represents a key-value pair
type Property struct {
	Key   string
	Value interface{}
	Type  PropertyType
}

// NewProperty infers the property type from a Go value
func NewProperty(key string, value interface{}) (Property, error) {
	switch v := value.(type) {
	case string:
		return Property{Key: key, Value: v, Type: PropertyString}, nil
	case bool:
		return Property{Key: key, Value: v, Type: PropertyBool}, nil
	case int:
		return Property{Key: key, Value: int64(v), Type: PropertyInt}, nil
	case int64:
		return Property{Key: key, Value: v, Type: PropertyInt}, nil
	case int32:
		return Property{Key: key, Value: int64(v), Type: PropertyInt}, nil
	default:
		return Property{}, fmt.Errorf("unsupported value %T for property %q", value, key)
	}
}

// Matches compares the property value with v by rendered form, so "8" matches int64(8)
func (p Property) Matches(v interface{}) bool {
	return fmt.Sprint(p.Value) == fmt.Sprint(v)
}

// Vertex is a typed inventory node
type Vertex struct {
	ID         int64
	NodeType   string
	Properties []Property
	Active     bool
}

// Property returns the named property
func (v Vertex) Property(key string) (Property, bool) {
	for _, p := range v.Properties {
		if p.Key == key {
			return p, true
		}
	}
	return Property{}, false
}

// PropertyMap flattens properties for display and encoding
func (v Vertex) PropertyMap() map[string]interface{} {
	out := make(map[string]interface{}, len(v.Properties))
	for _, p := range v.Properties {
		out[p.Key] = p.Value
	}
	return out
}

// MarshalJSON renders the vertex as {"id", "node-type", "properties"}
func (v Vertex) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         int64                  `json:"id"`
		NodeType   string                 `json:"node-type"`
		Properties map[string]interface{} `json:"properties,omitempty"`
	}{v.ID, v.NodeType, v.PropertyMap()})
}

// Edge is a labeled, directed relationship stored as Out -> In
type Edge struct {
	ID         int64
	Label      string
	Out        int64
	In         int64
	Properties []Property
	Active     bool
}

// Other returns the endpoint opposite to vertexID
func (e Edge) Other(vertexID int64) int64 {
	if e.Out == vertexID {
		return e.In
	}
	return e.Out
}

// Direction selects which incident edges of a vertex to follow
type Direction int

const (
	DirectionOut Direction = iota
	DirectionIn
	DirectionBoth
)

func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "OUT"
	case DirectionIn:
		return "IN"
	case DirectionBoth:
		return "BOTH"
	default:
		return "unknown"
	}
}

// Reverse flips OUT and IN; BOTH is unchanged
func (d Direction) Reverse() Direction {
	switch d {
	case DirectionOut:
		return DirectionIn
	case DirectionIn:
		return DirectionOut
	default:
		return d
	}
}

// Predicate is a conjunction of a node-type filter and property equalities.
// The zero value matches every active vertex.
type Predicate struct {
	NodeType   string
	Properties map[string]interface{}
}

// Match reports whether v satisfies the predicate
func (p Predicate) Match(v Vertex) bool {
	if p.NodeType != "" && v.NodeType != p.NodeType {
		return false
	}
	for key, want := range p.Properties {
		prop, ok := v.Property(key)
		if !ok || !prop.Matches(want) {
			return false
		}
	}
	return true
}

// Keys returns the predicate property names in sorted order
func (p Predicate) Keys() []string {
	keys := make([]string, 0, len(p.Properties))
	for k := range p.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store is the read capability the query engine consumes. Implementations
// must be safe for concurrent use and should honour ctx cancellation.
type Store interface {
	// Vertex returns an active vertex by id
	Vertex(ctx context.Context, id int64) (Vertex, error)
	// FindVertices returns active vertices matching the predicate in id order
	FindVertices(ctx context.Context, pred Predicate) ([]Vertex, error)
	// Edges returns active edges incident to vertexID in the given direction,
	// restricted to labels when any are given
	Edges(ctx context.Context, vertexID int64, dir Direction, labels ...string) ([]Edge, error)
}
