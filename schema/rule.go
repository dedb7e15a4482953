package schema

import (
	"fmt"
	"strings"

	"invquery/graphdb"
)

// Classification is the semantic kind of a relationship
type Classification string

const (
	Tree    Classification = "TREE"
	Cousin  Classification = "COUSIN"
	Private Classification = "PRIVATE"
)

// ParseClassification accepts TREE, COUSIN or PRIVATE in any case
func ParseClassification(s string) (Classification, error) {
	switch c := Classification(strings.ToUpper(strings.TrimSpace(s))); c {
	case Tree, Cousin, Private:
		return c, nil
	default:
		return "", fmt.Errorf("unknown edge classification %q", s)
	}
}

// Endpoint names which side of a TREE rule is the container
type Endpoint string

const (
	EndpointFrom Endpoint = "from"
	EndpointTo   Endpoint = "to"
)

// EdgeRule describes one permitted relationship between two node types.
// Direction is the physical edge direction relative to From.
type EdgeRule struct {
	From        string            `validate:"required"`
	To          string            `validate:"required"`
	Label       string            `validate:"required"`
	Direction   graphdb.Direction `validate:"gte=0,lte=2"`
	Type        Classification    `validate:"oneof=TREE COUSIN PRIVATE"`
	Parent      Endpoint          `validate:"omitempty,oneof=from to"`
	Default     bool
	Description string
}

// Connects reports whether the rule applies to the unordered pair {a, b}
func (r EdgeRule) Connects(a, b string) bool {
	return (r.From == a && r.To == b) || (r.From == b && r.To == a)
}

// Other returns the node type opposite to t
func (r EdgeRule) Other(t string) string {
	if r.From == t {
		return r.To
	}
	return r.From
}

// WalkDirection is the physical direction to follow when walking the rule
// from a vertex of node type t. Walking from To reverses Direction.
func (r EdgeRule) WalkDirection(t string) graphdb.Direction {
	if r.From == t {
		return r.Direction
	}
	return r.Direction.Reverse()
}

// ParentType returns the container node type of a TREE rule
func (r EdgeRule) ParentType() string {
	if r.Parent == EndpointTo {
		return r.To
	}
	return r.From
}

// ChildType returns the contained node type of a TREE rule
func (r EdgeRule) ChildType() string {
	if r.Parent == EndpointTo {
		return r.From
	}
	return r.To
}

// Matches reports whether a physical edge Out -> In between vertices of
// outType and inType is described by this rule
func (r EdgeRule) Matches(outType, inType, label string) bool {
	if r.Label != label {
		return false
	}
	switch r.Direction {
	case graphdb.DirectionOut:
		return r.From == outType && r.To == inType
	case graphdb.DirectionIn:
		return r.To == outType && r.From == inType
	default:
		return r.Connects(outType, inType)
	}
}

func (r EdgeRule) String() string {
	s := fmt.Sprintf("%s -[%s %s %s]- %s", r.From, r.Type, r.Label, r.Direction, r.To)
	if r.Type == Tree {
		s += " parent=" + string(r.Parent)
	}
	if r.Default {
		s += " default"
	}
	return s
}
