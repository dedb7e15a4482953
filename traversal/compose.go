package traversal

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"invquery/graphdb"
	"invquery/schema"
)

// Composer builds plans. It is stateless apart from the immutable rule
// catalog and is safe for concurrent use.
type Composer struct {
	rules *schema.Catalog
}

// NewComposer creates a composer resolving hops against rules
func NewComposer(rules *schema.Catalog) *Composer {
	return &Composer{rules: rules}
}

// Compose parses a rendered template and resolves its edge steps
func (c *Composer) Compose(start graphdb.Predicate, template string) (*Plan, error) {
	calls, err := ParseTemplate(template)
	if err != nil {
		return nil, err
	}
	steps, err := c.compile(calls)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Start: start, Steps: steps, Rules: c.rules, Template: template}
	logrus.WithFields(logrus.Fields{
		"component": "Composer",
		"plan":      plan.String(),
	}).Debug("Template composed")
	return plan, nil
}

// ComposeRelation builds a single-hop plan from a structured request. For
// the tree shape an empty EdgeType means TREE; a TREE request without a
// related node type walks every descendant.
func (c *Composer) ComposeRelation(start graphdb.Predicate, req RelationRequest, shape Shape) (*Plan, error) {
	switch {
	case req.StartingNodeType == "" && start.NodeType == "":
		return nil, fmt.Errorf("%w: starting node type is required", ErrInvalidRequest)
	case req.StartingNodeType == "":
		req.StartingNodeType = start.NodeType
	case start.NodeType == "":
		start.NodeType = req.StartingNodeType
	case start.NodeType != req.StartingNodeType:
		return nil, fmt.Errorf("%w: start predicate type %s conflicts with starting node type %s",
			ErrInvalidRequest, start.NodeType, req.StartingNodeType)
	}

	var typ schema.Classification
	if req.EdgeType != "" {
		var err error
		if typ, err = schema.ParseClassification(req.EdgeType); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	} else if shape == ShapeTree {
		typ = schema.Tree
	}

	plan := &Plan{Start: start, Rules: c.rules}
	if req.RelatedToNodeType == "" {
		if typ != schema.Tree {
			return nil, fmt.Errorf("%w: related node type is required for %s requests", ErrInvalidRequest, classificationName(typ))
		}
		plan.Steps = []Step{{Kind: StepDescendants}}
	} else {
		hop, err := c.hop(req.StartingNodeType, req.RelatedToNodeType, typ, "")
		if err != nil {
			return nil, err
		}
		plan.Steps = []Step{hop}
	}

	logrus.WithFields(logrus.Fields{
		"component": "Composer",
		"shape":     shape.String(),
		"plan":      plan.String(),
	}).Debug("Relation request composed")
	return plan, nil
}

func classificationName(c schema.Classification) string {
	if c == "" {
		return "default"
	}
	return string(c)
}

func (c *Composer) hop(from, to string, typ schema.Classification, label string) (Step, error) {
	rule, err := c.rules.Resolve(schema.RuleQuery{From: from, To: to, Type: typ, Label: label})
	if err != nil {
		return Step{}, err
	}
	return Step{
		Kind:      StepHop,
		Rule:      rule,
		FromType:  from,
		ToType:    to,
		Direction: rule.WalkDirection(from),
		Labels:    []string{rule.Label},
	}, nil
}

var hopClassifications = map[string]schema.Classification{
	"tree":    schema.Tree,
	"cousin":  schema.Cousin,
	"private": schema.Private,
	"related": "",
}

var rawDirections = map[string]graphdb.Direction{
	"out":  graphdb.DirectionOut,
	"in":   graphdb.DirectionIn,
	"both": graphdb.DirectionBoth,
}

func (c *Composer) compile(calls []Call) ([]Step, error) {
	steps := make([]Step, 0, len(calls))
	for _, call := range calls {
		step, err := c.compileCall(call)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (c *Composer) compileCall(call Call) (Step, error) {
	if typ, ok := hopClassifications[call.Name]; ok {
		if err := arity(call, 2, 3); err != nil {
			return Step{}, err
		}
		args, err := stringArgs(call)
		if err != nil {
			return Step{}, err
		}
		label := ""
		if len(args) == 3 {
			label = args[2]
		}
		return c.hop(args[0], args[1], typ, label)
	}
	if dir, ok := rawDirections[call.Name]; ok {
		labels, err := stringArgs(call)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: StepRaw, Direction: dir, Labels: labels}, nil
	}

	switch call.Name {
	case "hasType":
		if err := arity(call, 1, 1); err != nil {
			return Step{}, err
		}
		args, err := stringArgs(call)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: StepHasType, NodeType: args[0]}, nil
	case "has":
		if err := arity(call, 2, -1); err != nil {
			return Step{}, err
		}
		args, err := stringArgs(call)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: StepHas, Key: args[0], Values: args[1:]}, nil
	case "hasNot":
		if err := arity(call, 1, 1); err != nil {
			return Step{}, err
		}
		args, err := stringArgs(call)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: StepHasNot, Key: args[0]}, nil
	case "descendants":
		if err := arity(call, 0, 0); err != nil {
			return Step{}, err
		}
		return Step{Kind: StepDescendants}, nil
	case "union":
		if err := arity(call, 1, -1); err != nil {
			return Step{}, err
		}
		branches, err := c.branches(call)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: StepUnion, Branches: branches}, nil
	case "where", "not":
		if err := arity(call, 1, 1); err != nil {
			return Step{}, err
		}
		branches, err := c.branches(call)
		if err != nil {
			return Step{}, err
		}
		kind := StepWhere
		if call.Name == "not" {
			kind = StepNot
		}
		return Step{Kind: kind, Branches: branches}, nil
	case "identity":
		if err := arity(call, 0, 0); err != nil {
			return Step{}, err
		}
		return Step{Kind: StepIdentity}, nil
	case "dedup":
		if err := arity(call, 0, 0); err != nil {
			return Step{}, err
		}
		return Step{Kind: StepDedup}, nil
	case "limit":
		if err := arity(call, 1, 1); err != nil {
			return Step{}, err
		}
		arg := call.Args[0]
		if arg.Kind != ArgNumber || arg.Num < 0 {
			return Step{}, syntaxErrorf(arg.Pos, "limit takes a non-negative number")
		}
		return Step{Kind: StepLimit, N: int(arg.Num)}, nil
	default:
		return Step{}, syntaxErrorf(call.Pos, "unknown step %s", call.Name)
	}
}

func (c *Composer) branches(call Call) ([][]Step, error) {
	out := make([][]Step, 0, len(call.Args))
	for _, arg := range call.Args {
		if arg.Kind != ArgTraversal {
			return nil, syntaxErrorf(arg.Pos, "%s takes nested traversals (__.step())", call.Name)
		}
		steps, err := c.compile(arg.Sub)
		if err != nil {
			return nil, err
		}
		out = append(out, steps)
	}
	return out, nil
}

// arity checks the argument count; hi < 0 means unbounded
func arity(call Call, lo, hi int) error {
	n := len(call.Args)
	if n < lo || (hi >= 0 && n > hi) {
		return syntaxErrorf(call.Pos, "%s takes %s, got %d", call.Name, arityText(lo, hi), n)
	}
	return nil
}

func arityText(lo, hi int) string {
	switch {
	case hi < 0:
		return fmt.Sprintf("at least %d arguments", lo)
	case lo == hi:
		return fmt.Sprintf("%d arguments", lo)
	default:
		return fmt.Sprintf("%d to %d arguments", lo, hi)
	}
}

// stringArgs returns scalar arguments as strings; numbers keep their
// literal text so they compare equal to stored values by rendered form
func stringArgs(call Call) ([]string, error) {
	out := make([]string, len(call.Args))
	for i, arg := range call.Args {
		if arg.Kind == ArgTraversal {
			return nil, syntaxErrorf(arg.Pos, "%s does not take nested traversals", call.Name)
		}
		out[i] = arg.Str
	}
	return out, nil
}
