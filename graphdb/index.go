package graphdb

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// IndexManager keeps the in-memory lookup structures for the page file:
// id -> page for vertices and edges, node-type and property-equality
// indexes for vertex lookup, and out/in adjacency lists of edge ids.
// Not synchronized; GraphDB serializes writers against readers.
type IndexManager struct {
	vertexIndex map[int64]int
	edgeIndex   map[int64]int
	typeIndex   map[string][]int64
	propIndex   map[string]map[string][]int64
	outAdj      map[int64][]int64
	inAdj       map[int64][]int64
}

// NewIndexManager initializes a new IndexManager
func NewIndexManager() *IndexManager {
	logrus.WithField("component", "IndexManager").Debug("Initializing IndexManager")
	return &IndexManager{
		vertexIndex: make(map[int64]int),
		edgeIndex:   make(map[int64]int),
		typeIndex:   make(map[string][]int64),
		propIndex:   make(map[string]map[string][]int64),
		outAdj:      make(map[int64][]int64),
		inAdj:       make(map[int64][]int64),
	}
}

// InsertVertex indexes a new vertex stored at pageID
func (im *IndexManager) InsertVertex(v Vertex, pageID int) error {
	if _, exists := im.vertexIndex[v.ID]; exists {
		logrus.WithField("vertex_id", v.ID).Error("Vertex ID already exists in index")
		return fmt.Errorf("vertex ID %d already exists", v.ID)
	}
	im.vertexIndex[v.ID] = pageID
	im.typeIndex[v.NodeType] = append(im.typeIndex[v.NodeType], v.ID)
	for _, p := range v.Properties {
		byValue, ok := im.propIndex[p.Key]
		if !ok {
			byValue = make(map[string][]int64)
			im.propIndex[p.Key] = byValue
		}
		key := fmt.Sprint(p.Value)
		byValue[key] = append(byValue[key], v.ID)
	}
	return nil
}

// RemoveVertex drops every index entry of v. Incident edges must be
// removed by the caller first.
func (im *IndexManager) RemoveVertex(v Vertex) error {
	if _, exists := im.vertexIndex[v.ID]; !exists {
		return fmt.Errorf("vertex ID %d not found", v.ID)
	}
	delete(im.vertexIndex, v.ID)
	im.typeIndex[v.NodeType] = removeID(im.typeIndex[v.NodeType], v.ID)
	if len(im.typeIndex[v.NodeType]) == 0 {
		delete(im.typeIndex, v.NodeType)
	}
	for _, p := range v.Properties {
		byValue := im.propIndex[p.Key]
		key := fmt.Sprint(p.Value)
		byValue[key] = removeID(byValue[key], v.ID)
		if len(byValue[key]) == 0 {
			delete(byValue, key)
		}
	}
	delete(im.outAdj, v.ID)
	delete(im.inAdj, v.ID)
	return nil
}

// InsertEdge indexes a new edge stored at pageID
func (im *IndexManager) InsertEdge(e Edge, pageID int) error {
	if _, exists := im.edgeIndex[e.ID]; exists {
		logrus.WithField("edge_id", e.ID).Error("Edge ID already exists in index")
		return fmt.Errorf("edge ID %d already exists", e.ID)
	}
	im.edgeIndex[e.ID] = pageID
	im.outAdj[e.Out] = append(im.outAdj[e.Out], e.ID)
	im.inAdj[e.In] = append(im.inAdj[e.In], e.ID)
	return nil
}

// RemoveEdge drops every index entry of e
func (im *IndexManager) RemoveEdge(e Edge) error {
	if _, exists := im.edgeIndex[e.ID]; !exists {
		return fmt.Errorf("edge ID %d not found", e.ID)
	}
	delete(im.edgeIndex, e.ID)
	im.outAdj[e.Out] = removeID(im.outAdj[e.Out], e.ID)
	im.inAdj[e.In] = removeID(im.inAdj[e.In], e.ID)
	return nil
}

// SearchVertex retrieves the page ID for a vertex
func (im *IndexManager) SearchVertex(vertexID int64) (int, error) {
	pageID, exists := im.vertexIndex[vertexID]
	if !exists {
		return -1, fmt.Errorf("vertex ID %d: %w", vertexID, ErrVertexNotFound)
	}
	return pageID, nil
}

// SearchEdge retrieves the page ID for an edge
func (im *IndexManager) SearchEdge(edgeID int64) (int, error) {
	pageID, exists := im.edgeIndex[edgeID]
	if !exists {
		return -1, fmt.Errorf("edge ID %d: %w", edgeID, ErrEdgeNotFound)
	}
	return pageID, nil
}

// Candidates returns the smallest known id set that can satisfy pred,
// sorted ascending. Final filtering is still done against the records.
func (im *IndexManager) Candidates(pred Predicate) []int64 {
	var best []int64
	found := false
	consider := func(ids []int64) {
		if !found || len(ids) < len(best) {
			best, found = ids, true
		}
	}
	if pred.NodeType != "" {
		consider(im.typeIndex[pred.NodeType])
	}
	for key, value := range pred.Properties {
		consider(im.propIndex[key][fmt.Sprint(value)])
	}
	if !found {
		best = make([]int64, 0, len(im.vertexIndex))
		for id := range im.vertexIndex {
			best = append(best, id)
		}
	}
	out := append([]int64(nil), best...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EdgeIDs returns incident edge ids of a vertex in insertion order
func (im *IndexManager) EdgeIDs(vertexID int64, dir Direction) []int64 {
	switch dir {
	case DirectionOut:
		return append([]int64(nil), im.outAdj[vertexID]...)
	case DirectionIn:
		return append([]int64(nil), im.inAdj[vertexID]...)
	default:
		ids := make([]int64, 0, len(im.outAdj[vertexID])+len(im.inAdj[vertexID]))
		ids = append(ids, im.outAdj[vertexID]...)
		for _, id := range im.inAdj[vertexID] {
			// self loops already came through outAdj
			if !containsID(im.outAdj[vertexID], id) {
				ids = append(ids, id)
			}
		}
		return ids
	}
}

// Counts returns the number of indexed vertices and edges
func (im *IndexManager) Counts() (vertices, edges int) {
	return len(im.vertexIndex), len(im.edgeIndex)
}

// NodeTypes returns the indexed node-types in sorted order
func (im *IndexManager) NodeTypes() []string {
	types := make([]string, 0, len(im.typeIndex))
	for t := range im.typeIndex {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func containsID(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
