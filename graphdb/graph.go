package graphdb

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// GraphManager applies vertex and edge operations on top of the record
// and index managers. Callers provide synchronization.
type GraphManager struct {
	indexManager *IndexManager
	recordMgr    *RecordManager
	nextVertexID int64
	nextEdgeID   int64
}

// NewGraphManager initializes a new GraphManager
func NewGraphManager(indexManager *IndexManager, recordMgr *RecordManager) *GraphManager {
	return &GraphManager{
		indexManager: indexManager,
		recordMgr:    recordMgr,
		nextVertexID: 1,
		nextEdgeID:   1,
	}
}

// AddVertex assigns an id to the vertex and persists it
func (gm *GraphManager) AddVertex(v Vertex) (int64, error) {
	v.ID = gm.nextVertexID
	v.Active = true

	log := logrus.WithFields(logrus.Fields{
		"component": "GraphManager",
		"vertex_id": v.ID,
		"node_type": v.NodeType,
	})

	pageID, err := gm.recordMgr.WriteRecord(v)
	if err != nil {
		log.WithError(err).Error("Failed to write vertex")
		return 0, fmt.Errorf("failed to write vertex: %w", err)
	}
	if err := gm.indexManager.InsertVertex(v, pageID); err != nil {
		log.WithError(err).Error("Failed to insert vertex into index")
		return 0, fmt.Errorf("failed to insert vertex into index: %w", err)
	}
	gm.nextVertexID++

	log.Debug("Vertex added")
	return v.ID, nil
}

// AddEdge persists an edge between two existing vertices
func (gm *GraphManager) AddEdge(e Edge) (int64, error) {
	log := logrus.WithFields(logrus.Fields{
		"component": "GraphManager",
		"label":     e.Label,
		"out":       e.Out,
		"in":        e.In,
	})
	for _, end := range []int64{e.Out, e.In} {
		if _, err := gm.indexManager.SearchVertex(end); err != nil {
			log.WithError(err).Error("Edge endpoint missing")
			return 0, fmt.Errorf("vertex %d: %w", end, ErrDanglingEdge)
		}
	}

	e.ID = gm.nextEdgeID
	e.Active = true

	pageID, err := gm.recordMgr.WriteRecord(e)
	if err != nil {
		log.WithError(err).Error("Failed to write edge")
		return 0, fmt.Errorf("failed to write edge: %w", err)
	}
	if err := gm.indexManager.InsertEdge(e, pageID); err != nil {
		log.WithError(err).Error("Failed to insert edge into index")
		return 0, fmt.Errorf("failed to insert edge into index: %w", err)
	}
	gm.nextEdgeID++

	log.WithField("edge_id", e.ID).Debug("Edge added")
	return e.ID, nil
}

// GetVertex retrieves an active vertex by ID
func (gm *GraphManager) GetVertex(vertexID int64) (Vertex, error) {
	pageID, err := gm.indexManager.SearchVertex(vertexID)
	if err != nil {
		return Vertex{}, err
	}

	var v Vertex
	if err := gm.recordMgr.ReadRecord(pageID, &v); err != nil {
		return Vertex{}, fmt.Errorf("failed to read vertex %d: %w", vertexID, err)
	}
	if !v.Active {
		return Vertex{}, fmt.Errorf("vertex %d is not active: %w", vertexID, ErrVertexNotFound)
	}
	return v, nil
}

// GetEdge retrieves an active edge by ID
func (gm *GraphManager) GetEdge(edgeID int64) (Edge, error) {
	pageID, err := gm.indexManager.SearchEdge(edgeID)
	if err != nil {
		return Edge{}, err
	}

	var e Edge
	if err := gm.recordMgr.ReadRecord(pageID, &e); err != nil {
		return Edge{}, fmt.Errorf("failed to read edge %d: %w", edgeID, err)
	}
	if !e.Active {
		return Edge{}, fmt.Errorf("edge %d is not active: %w", edgeID, ErrEdgeNotFound)
	}
	return e, nil
}

// FindVertices returns active vertices matching pred in id order
func (gm *GraphManager) FindVertices(pred Predicate) ([]Vertex, error) {
	start := time.Now()
	candidates := gm.indexManager.Candidates(pred)
	out := make([]Vertex, 0, len(candidates))
	for _, id := range candidates {
		v, err := gm.GetVertex(id)
		if err != nil {
			return nil, err
		}
		if pred.Match(v) {
			out = append(out, v)
		}
	}
	logrus.WithFields(logrus.Fields{
		"component":   "GraphManager",
		"node_type":   pred.NodeType,
		"candidates":  len(candidates),
		"matched":     len(out),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("FindVertices completed")
	return out, nil
}

// IncidentEdges returns active edges of a vertex, optionally restricted to labels
func (gm *GraphManager) IncidentEdges(vertexID int64, dir Direction, labels []string) ([]Edge, error) {
	if _, err := gm.indexManager.SearchVertex(vertexID); err != nil {
		return nil, err
	}
	var want map[string]bool
	if len(labels) > 0 {
		want = make(map[string]bool, len(labels))
		for _, l := range labels {
			want[l] = true
		}
	}

	ids := gm.indexManager.EdgeIDs(vertexID, dir)
	edges := make([]Edge, 0, len(ids))
	for _, id := range ids {
		e, err := gm.GetEdge(id)
		if err != nil {
			return nil, err
		}
		if want != nil && !want[e.Label] {
			continue
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// deactivateVertex writes a tombstone for the vertex and unindexes it
func (gm *GraphManager) deactivateVertex(vertexID int64) error {
	v, err := gm.GetVertex(vertexID)
	if err != nil {
		return err
	}
	for _, edgeID := range gm.indexManager.EdgeIDs(vertexID, DirectionBoth) {
		if err := gm.deactivateEdge(edgeID); err != nil {
			return err
		}
	}
	v.Active = false
	if _, err := gm.recordMgr.WriteRecord(v); err != nil {
		return fmt.Errorf("failed to write vertex tombstone: %w", err)
	}
	return gm.indexManager.RemoveVertex(v)
}

// deactivateEdge writes a tombstone for the edge and unindexes it
func (gm *GraphManager) deactivateEdge(edgeID int64) error {
	e, err := gm.GetEdge(edgeID)
	if err != nil {
		return err
	}
	e.Active = false
	if _, err := gm.recordMgr.WriteRecord(e); err != nil {
		return fmt.Errorf("failed to write edge tombstone: %w", err)
	}
	return gm.indexManager.RemoveEdge(e)
}

// rebuild repopulates the indexes from the page file. The newest page for
// each id wins; tombstoned ids stay reserved so they are never reused.
func (gm *GraphManager) rebuild() error {
	start := time.Now()
	vertexPages := make(map[int64]int)
	edgePages := make(map[int64]int)

	err := gm.recordMgr.Scan(func(pageID int, kind RecordKind, data []byte) error {
		switch kind {
		case RecordVertex:
			var v Vertex
			if err := Deserialize(data, &v); err != nil {
				return fmt.Errorf("page %d: %w", pageID, err)
			}
			vertexPages[v.ID] = pageID
		case RecordEdge:
			var e Edge
			if err := Deserialize(data, &e); err != nil {
				return fmt.Errorf("page %d: %w", pageID, err)
			}
			edgePages[e.ID] = pageID
		default:
			return fmt.Errorf("page %d: unknown record kind %q", pageID, kind)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range sortedKeys(vertexPages) {
		var v Vertex
		if err := gm.recordMgr.ReadRecord(vertexPages[id], &v); err != nil {
			return err
		}
		if id >= gm.nextVertexID {
			gm.nextVertexID = id + 1
		}
		if !v.Active {
			continue
		}
		if err := gm.indexManager.InsertVertex(v, vertexPages[id]); err != nil {
			return err
		}
	}
	for _, id := range sortedKeys(edgePages) {
		var e Edge
		if err := gm.recordMgr.ReadRecord(edgePages[id], &e); err != nil {
			return err
		}
		if id >= gm.nextEdgeID {
			gm.nextEdgeID = id + 1
		}
		if !e.Active {
			continue
		}
		if err := gm.indexManager.InsertEdge(e, edgePages[id]); err != nil {
			return err
		}
	}

	vertices, edges := gm.indexManager.Counts()
	logrus.WithFields(logrus.Fields{
		"component":   "GraphManager",
		"vertices":    vertices,
		"edges":       edges,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Indexes rebuilt from page file")
	return nil
}

func sortedKeys(m map[int64]int) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
