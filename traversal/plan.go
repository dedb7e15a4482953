// Package traversal composes executable plans from rendered stored-query
// templates and structured relation requests, resolving every edge hop
// against the edge rule catalog.
package traversal

import (
	"fmt"
	"strings"

	"invquery/graphdb"
	"invquery/schema"
)

// Shape selects how traversers are materialized
type Shape int

const (
	ShapeVertices Shape = iota
	ShapePaths
	ShapeTree
)

func (s Shape) String() string {
	switch s {
	case ShapeVertices:
		return "vertices"
	case ShapePaths:
		return "paths"
	case ShapeTree:
		return "tree"
	default:
		return "unknown"
	}
}

// ParseShape maps a shape name back to a Shape
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(name) {
	case "vertices", "vertex":
		return ShapeVertices, nil
	case "paths", "path":
		return ShapePaths, nil
	case "tree":
		return ShapeTree, nil
	default:
		return 0, fmt.Errorf("unknown result shape %q", name)
	}
}

// RelationRequest asks for vertices related to the start vertices.
// EdgeType is TREE, COUSIN, PRIVATE or empty for the default rule.
type RelationRequest struct {
	StartingNodeType  string `json:"startingNodeType" yaml:"starting-node-type"`
	RelatedToNodeType string `json:"relatedToNodeType,omitempty" yaml:"related-to-node-type"`
	EdgeType          string `json:"edgeType,omitempty" yaml:"edge-type"`
}

// StepKind identifies a plan step
type StepKind int

const (
	StepIdentity StepKind = iota
	StepHasType
	StepHas
	StepHasNot
	StepHop
	StepDescendants
	StepRaw
	StepUnion
	StepWhere
	StepNot
	StepDedup
	StepLimit
)

var stepNames = map[StepKind]string{
	StepIdentity:    "identity",
	StepHasType:     "hasType",
	StepHas:         "has",
	StepHasNot:      "hasNot",
	StepHop:         "hop",
	StepDescendants: "descendants",
	StepRaw:         "raw",
	StepUnion:       "union",
	StepWhere:       "where",
	StepNot:         "not",
	StepDedup:       "dedup",
	StepLimit:       "limit",
}

func (k StepKind) String() string {
	if name, ok := stepNames[k]; ok {
		return name
	}
	return "unknown"
}

// Step is one operation over the current traverser set. Only the fields
// relevant to Kind are set.
type Step struct {
	Kind StepKind

	// StepHasType, StepHas, StepHasNot
	NodeType string
	Key      string
	Values   []string

	// StepHop
	Rule     schema.EdgeRule
	FromType string
	ToType   string

	// StepHop, StepRaw
	Direction graphdb.Direction
	Labels    []string

	// StepUnion holds one branch per entry; StepWhere and StepNot one
	Branches [][]Step

	// StepLimit
	N int
}

func (s Step) String() string {
	switch s.Kind {
	case StepHasType:
		return fmt.Sprintf("hasType(%s)", s.NodeType)
	case StepHas:
		return fmt.Sprintf("has(%s, %s)", s.Key, strings.Join(s.Values, "|"))
	case StepHasNot:
		return fmt.Sprintf("hasNot(%s)", s.Key)
	case StepHop:
		return fmt.Sprintf("hop(%s -%s/%s/%s- %s)", s.FromType, s.Rule.Type, s.Rule.Label, s.Direction, s.ToType)
	case StepRaw:
		return fmt.Sprintf("%s(%s)", strings.ToLower(s.Direction.String()), strings.Join(s.Labels, ","))
	case StepUnion, StepWhere, StepNot:
		branches := make([]string, len(s.Branches))
		for i, b := range s.Branches {
			branches[i] = formatSteps(b)
		}
		return fmt.Sprintf("%s(%s)", s.Kind, strings.Join(branches, ", "))
	case StepLimit:
		return fmt.Sprintf("limit(%d)", s.N)
	default:
		return s.Kind.String() + "()"
	}
}

func formatSteps(steps []Step) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Plan is a composed traversal: start vertices plus the steps applied to
// every traverser. Rules backs the steps that classify edges at run time.
type Plan struct {
	Start    graphdb.Predicate
	Steps    []Step
	Rules    *schema.Catalog
	Template string
}

func (p *Plan) String() string {
	return formatSteps(p.Steps)
}
