package main

import (
	"fmt"
	"strings"

	"invquery/engine"
	"invquery/graphdb"
	"invquery/traversal"
)

// queryArgs are the command-line inputs of one invocation
type queryArgs struct {
	query       string
	startType   string
	relatedType string
	edgeType    string
	nodeType    string
	where       []string
	params      []string
}

// invocation turns the flag values into an engine invocation
func (q queryArgs) invocation() (engine.Invocation, error) {
	inv := engine.Invocation{Query: q.query}

	props, err := parseAssignments(q.where)
	if err != nil {
		return inv, fmt.Errorf("--where: %w", err)
	}
	inv.Start = graphdb.Predicate{NodeType: q.nodeType}
	if len(props) > 0 {
		inv.Start.Properties = make(map[string]interface{}, len(props))
		for k, v := range props {
			inv.Start.Properties[k] = v
		}
	}

	if q.startType != "" || q.relatedType != "" || q.edgeType != "" {
		inv.Relation = &traversal.RelationRequest{
			StartingNodeType:  q.startType,
			RelatedToNodeType: q.relatedType,
			EdgeType:          q.edgeType,
		}
	}

	params, err := parseAssignments(q.params)
	if err != nil {
		return inv, fmt.Errorf("--param: %w", err)
	}
	if len(params) > 0 {
		inv.Params = make(map[string]any, len(params))
		for k, v := range params {
			if strings.Contains(v, ",") {
				inv.Params[k] = splitList(v)
			} else {
				inv.Params[k] = v
			}
		}
	}
	return inv, nil
}

// parseAssignments splits key=value pairs. The value may be empty; the
// key may not.
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[key] = value
	}
	return out, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
