package engine

import (
	"invquery/graphdb"
	"invquery/traversal"
)

// Path is one traverser's vertex sequence, start vertex first
type Path []graphdb.Vertex

// TreeNode is a vertex with the subtrees reached through it
type TreeNode struct {
	Vertex   graphdb.Vertex `json:"vertex"`
	Children []*TreeNode    `json:"children,omitempty"`

	index map[int64]*TreeNode
}

func newTreeNode(v graphdb.Vertex) *TreeNode {
	return &TreeNode{Vertex: v, index: make(map[int64]*TreeNode)}
}

func (n *TreeNode) child(v graphdb.Vertex) *TreeNode {
	if c, ok := n.index[v.ID]; ok {
		return c
	}
	c := newTreeNode(v)
	n.index[v.ID] = c
	n.Children = append(n.Children, c)
	return c
}

// Size counts the vertices in the subtree, n included
func (n *TreeNode) Size() int {
	size := 1
	for _, c := range n.Children {
		size += c.Size()
	}
	return size
}

// Result is the outcome of one invocation. Exactly one of Vertices, Paths
// or Tree is populated, as named by Shape.
type Result struct {
	InvocationID string           `json:"invocationId"`
	Shape        traversal.Shape  `json:"-"`
	ShapeName    string           `json:"shape"`
	Vertices     []graphdb.Vertex `json:"vertices,omitempty"`
	Paths        []Path           `json:"paths,omitempty"`
	Tree         []*TreeNode      `json:"tree,omitempty"`
}

// Len is the number of top-level entries in the populated shape
func (r *Result) Len() int {
	switch r.Shape {
	case traversal.ShapePaths:
		return len(r.Paths)
	case traversal.ShapeTree:
		return len(r.Tree)
	default:
		return len(r.Vertices)
	}
}

func materialize(shape traversal.Shape, starts []graphdb.Vertex, ts []traverser) *Result {
	r := &Result{Shape: shape, ShapeName: shape.String()}
	switch shape {
	case traversal.ShapePaths:
		r.Paths = make([]Path, 0, len(ts))
		for _, t := range ts {
			r.Paths = append(r.Paths, append(Path(nil), t.path...))
		}
	case traversal.ShapeTree:
		r.Tree = buildTree(starts, ts)
	default:
		r.Vertices = vertexSet(ts)
	}
	return r
}

// vertexSet returns the terminal vertex of every traverser, first seen wins
func vertexSet(ts []traverser) []graphdb.Vertex {
	seen := make(map[int64]bool, len(ts))
	out := make([]graphdb.Vertex, 0, len(ts))
	for _, t := range ts {
		v := t.head()
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		out = append(out, v)
	}
	return out
}

// buildTree merges traverser paths into one prefix tree per start vertex.
// Roots keep start order; start vertices without a surviving traverser
// are left out.
func buildTree(starts []graphdb.Vertex, ts []traverser) []*TreeNode {
	roots := make(map[int64]*TreeNode)
	for _, t := range ts {
		root, ok := roots[t.path[0].ID]
		if !ok {
			root = newTreeNode(t.path[0])
			roots[t.path[0].ID] = root
		}
		node := root
		for _, v := range t.path[1:] {
			node = node.child(v)
		}
	}

	out := make([]*TreeNode, 0, len(roots))
	for _, s := range starts {
		if root, ok := roots[s.ID]; ok {
			out = append(out, root)
			delete(roots, s.ID)
		}
	}
	return out
}
