package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"invquery/graphdb"
	"invquery/schema"
	"invquery/traversal"
)

// traverser is one walk through the graph; path[0] is its start vertex
type traverser struct {
	path []graphdb.Vertex
}

func (t traverser) head() graphdb.Vertex {
	return t.path[len(t.path)-1]
}

func (t traverser) extend(v graphdb.Vertex) traverser {
	path := make([]graphdb.Vertex, len(t.path)+1)
	copy(path, t.path)
	path[len(t.path)] = v
	return traverser{path: path}
}

func (t traverser) visited(id int64) bool {
	for _, v := range t.path {
		if v.ID == id {
			return true
		}
	}
	return false
}

// executor runs one plan. It belongs to a single invocation; the vertex
// cache is not shared.
type executor struct {
	store   graphdb.Store
	rules   *schema.Catalog
	metrics *Metrics
	cache   map[int64]graphdb.Vertex
	log     *logrus.Entry
}

func newExecutor(store graphdb.Store, plan *traversal.Plan, metrics *Metrics, log *logrus.Entry) *executor {
	return &executor{
		store:   store,
		rules:   plan.Rules,
		metrics: metrics,
		cache:   make(map[int64]graphdb.Vertex),
		log:     log,
	}
}

// run finds the start vertices and applies the plan. Store errors are
// returned as they are.
func (x *executor) run(ctx context.Context, plan *traversal.Plan) ([]graphdb.Vertex, []traverser, error) {
	x.metrics.storeCall("find_vertices")
	starts, err := x.store.FindVertices(ctx, plan.Start)
	if err != nil {
		return nil, nil, err
	}
	ts := make([]traverser, 0, len(starts))
	for _, v := range starts {
		x.cache[v.ID] = v
		ts = append(ts, traverser{path: []graphdb.Vertex{v}})
	}
	x.log.WithField("start_vertices", len(starts)).Debug("Start vertices matched")

	ts, err = x.apply(ctx, plan.Steps, ts)
	if err != nil {
		return nil, nil, err
	}
	return starts, ts, nil
}

func (x *executor) apply(ctx context.Context, steps []traversal.Step, ts []traverser) ([]traverser, error) {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(ts) == 0 {
			return ts, nil
		}
		var err error
		if ts, err = x.step(ctx, s, ts); err != nil {
			return nil, err
		}
		x.log.WithFields(logrus.Fields{
			"step":       s.Kind.String(),
			"traversers": len(ts),
		}).Trace("Step applied")
	}
	return ts, nil
}

func (x *executor) step(ctx context.Context, s traversal.Step, ts []traverser) ([]traverser, error) {
	switch s.Kind {
	case traversal.StepIdentity:
		return ts, nil
	case traversal.StepHasType:
		return filter(ts, func(v graphdb.Vertex) bool { return v.NodeType == s.NodeType }), nil
	case traversal.StepHas:
		return filter(ts, func(v graphdb.Vertex) bool {
			p, ok := v.Property(s.Key)
			if !ok {
				return false
			}
			for _, want := range s.Values {
				if p.Matches(want) {
					return true
				}
			}
			return false
		}), nil
	case traversal.StepHasNot:
		return filter(ts, func(v graphdb.Vertex) bool {
			_, ok := v.Property(s.Key)
			return !ok
		}), nil
	case traversal.StepHop:
		return x.hop(ctx, s, ts)
	case traversal.StepRaw:
		return x.raw(ctx, s, ts)
	case traversal.StepDescendants:
		var out []traverser
		for _, t := range ts {
			var err error
			if out, err = x.descend(ctx, t, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	case traversal.StepUnion:
		var out []traverser
		for _, t := range ts {
			for _, branch := range s.Branches {
				sub, err := x.apply(ctx, branch, []traverser{t})
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			}
		}
		return out, nil
	case traversal.StepWhere, traversal.StepNot:
		want := s.Kind == traversal.StepWhere
		out := ts[:0:0]
		for _, t := range ts {
			sub, err := x.apply(ctx, s.Branches[0], []traverser{t})
			if err != nil {
				return nil, err
			}
			if (len(sub) > 0) == want {
				out = append(out, t)
			}
		}
		return out, nil
	case traversal.StepDedup:
		seen := make(map[int64]bool, len(ts))
		out := ts[:0:0]
		for _, t := range ts {
			if id := t.head().ID; !seen[id] {
				seen[id] = true
				out = append(out, t)
			}
		}
		return out, nil
	case traversal.StepLimit:
		if len(ts) > s.N {
			return ts[:s.N], nil
		}
		return ts, nil
	default:
		x.log.WithField("step", s.Kind.String()).Warn("Unsupported step, passing traversers through")
		return ts, nil
	}
}

func filter(ts []traverser, keep func(graphdb.Vertex) bool) []traverser {
	out := ts[:0:0]
	for _, t := range ts {
		if keep(t.head()) {
			out = append(out, t)
		}
	}
	return out
}

// hop follows the resolved rule from vertices of s.FromType to s.ToType
func (x *executor) hop(ctx context.Context, s traversal.Step, ts []traverser) ([]traverser, error) {
	var out []traverser
	for _, t := range ts {
		v := t.head()
		if v.NodeType != s.FromType {
			continue
		}
		neighbours, err := x.neighbours(ctx, v, s.Direction, s.Labels)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbours {
			if n.vertex.NodeType == s.ToType {
				out = append(out, t.extend(n.vertex))
			}
		}
	}
	return out, nil
}

// raw follows edges by direction and label, skipping PRIVATE edges
func (x *executor) raw(ctx context.Context, s traversal.Step, ts []traverser) ([]traverser, error) {
	var out []traverser
	for _, t := range ts {
		v := t.head()
		neighbours, err := x.neighbours(ctx, v, s.Direction, s.Labels)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbours {
			if x.private(v, n) {
				continue
			}
			out = append(out, t.extend(n.vertex))
		}
	}
	return out, nil
}

func (x *executor) private(from graphdb.Vertex, n neighbour) bool {
	if x.rules == nil {
		return false
	}
	outType, inType := from.NodeType, n.vertex.NodeType
	if n.edge.Out != from.ID {
		outType, inType = inType, outType
	}
	rule, ok := x.rules.RuleFor(outType, inType, n.edge.Label)
	return ok && rule.Type == schema.Private
}

// descend appends a traverser for every TREE descendant of t's head,
// parents before their children. Vertices already on the path are not
// revisited.
func (x *executor) descend(ctx context.Context, t traverser, out []traverser) ([]traverser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if x.rules == nil {
		return out, nil
	}
	v := t.head()
	for _, rule := range x.rules.Children(v.NodeType) {
		neighbours, err := x.neighbours(ctx, v, rule.WalkDirection(rule.ParentType()), []string{rule.Label})
		if err != nil {
			return nil, err
		}
		for _, n := range neighbours {
			if n.vertex.NodeType != rule.ChildType() || t.visited(n.vertex.ID) {
				continue
			}
			child := t.extend(n.vertex)
			out = append(out, child)
			if out, err = x.descend(ctx, child, out); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

type neighbour struct {
	edge   graphdb.Edge
	vertex graphdb.Vertex
}

func (x *executor) neighbours(ctx context.Context, v graphdb.Vertex, dir graphdb.Direction, labels []string) ([]neighbour, error) {
	x.metrics.storeCall("edges")
	edges, err := x.store.Edges(ctx, v.ID, dir, labels...)
	if err != nil {
		return nil, err
	}
	out := make([]neighbour, 0, len(edges))
	for _, e := range edges {
		other, err := x.vertex(ctx, e.Other(v.ID))
		if err != nil {
			return nil, err
		}
		out = append(out, neighbour{edge: e, vertex: other})
	}
	return out, nil
}

func (x *executor) vertex(ctx context.Context, id int64) (graphdb.Vertex, error) {
	if v, ok := x.cache[id]; ok {
		return v, nil
	}
	x.metrics.storeCall("vertex")
	v, err := x.store.Vertex(ctx, id)
	if err != nil {
		return graphdb.Vertex{}, err
	}
	x.cache[id] = v
	return v, nil
}
