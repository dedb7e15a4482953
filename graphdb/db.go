package graphdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// VertexValidator checks a vertex against the node-type schema before it is written
type VertexValidator interface {
	ValidateVertex(v Vertex) error
}

// GraphDB is the embedded page-file inventory graph. Reads may run
// concurrently; writes are exclusive.
type GraphDB struct {
	mu         sync.RWMutex
	storage    *StorageManager
	bufferPool *BufferPool
	indexMgr   *IndexManager
	recordMgr  *RecordManager
	graph      *GraphManager
	txnMgr     *TransactionManager
	validator  VertexValidator
	closed     bool
}

var _ Store = (*GraphDB)(nil)

// NewGraphDB opens (or creates) the page file and rebuilds its indexes
func NewGraphDB(filename string, pageSize, bufferCapacity int) (*GraphDB, error) {
	storage, err := NewStorageManager(filename, pageSize)
	if err != nil {
		return nil, err
	}

	bufferPool := NewBufferPool(storage, bufferCapacity)
	indexMgr := NewIndexManager()
	recordMgr := NewRecordManager(bufferPool, pageSize)
	graph := NewGraphManager(indexMgr, recordMgr)

	db := &GraphDB{
		storage:    storage,
		bufferPool: bufferPool,
		indexMgr:   indexMgr,
		recordMgr:  recordMgr,
		graph:      graph,
		txnMgr:     NewTransactionManager(graph),
	}
	if storage.NumPages() > 1 {
		if err := graph.rebuild(); err != nil {
			storage.Close()
			return nil, fmt.Errorf("failed to rebuild indexes from %s: %w", filename, err)
		}
	}
	return db, nil
}

// SetValidator installs the node-type schema check applied to new vertices
func (db *GraphDB) SetValidator(v VertexValidator) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.validator = v
}

// AddVertex validates and persists a vertex, returning its id
func (db *GraphDB) AddVertex(v Vertex) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0, ErrClosed
	}
	if err := db.validate(v); err != nil {
		return 0, err
	}
	return db.graph.AddVertex(v)
}

// AddEdge persists an edge Out -> In with the given label
func (db *GraphDB) AddEdge(label string, out, in int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0, ErrClosed
	}
	return db.graph.AddEdge(Edge{Label: label, Out: out, In: in})
}

func (db *GraphDB) validate(v Vertex) error {
	if v.NodeType == "" {
		return fmt.Errorf("vertex has no node type")
	}
	if db.validator == nil {
		return nil
	}
	return db.validator.ValidateVertex(v)
}

// Vertex returns an active vertex by id
func (db *GraphDB) Vertex(ctx context.Context, id int64) (Vertex, error) {
	if err := ctx.Err(); err != nil {
		return Vertex{}, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return Vertex{}, ErrClosed
	}
	return db.graph.GetVertex(id)
}

// FindVertices returns active vertices matching pred in id order
func (db *GraphDB) FindVertices(ctx context.Context, pred Predicate) ([]Vertex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	return db.graph.FindVertices(pred)
}

// Edges returns active edges incident to vertexID
func (db *GraphDB) Edges(ctx context.Context, vertexID int64, dir Direction, labels ...string) ([]Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	return db.graph.IncidentEdges(vertexID, dir, labels)
}

// Stats summarizes the database contents
type Stats struct {
	Vertices    int      `json:"vertices"`
	Edges       int      `json:"edges"`
	NodeTypes   []string `json:"nodeTypes"`
	Pages       int      `json:"pages"`
	CacheHits   int64    `json:"cacheHits"`
	CacheMisses int64    `json:"cacheMisses"`
}

// Stats returns counts for display
func (db *GraphDB) Stats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()
	vertices, edges := db.indexMgr.Counts()
	hits, misses := db.bufferPool.Stats()
	return Stats{
		Vertices:    vertices,
		Edges:       edges,
		NodeTypes:   db.indexMgr.NodeTypes(),
		Pages:       db.storage.NumPages(),
		CacheHits:   hits,
		CacheMisses: misses,
	}
}

// Load writes a seed graph in one transaction. Vertices are validated
// against the installed VertexValidator; any failure rolls the batch back.
// It returns the seed key -> vertex id assignment.
func (db *GraphDB) Load(ctx context.Context, seed *Seed) (map[string]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}
	log := logrus.WithFields(logrus.Fields{
		"component": "GraphDB",
		"vertices":  len(seed.Vertices),
		"edges":     len(seed.Edges),
	})

	txnID := db.txnMgr.BeginTransaction()
	ids, err := db.loadLocked(ctx, txnID, seed)
	if err != nil {
		log.WithError(err).Error("Seed load failed, rolling back")
		if rbErr := db.txnMgr.RollbackTransaction(txnID); rbErr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return nil, err
	}
	if err := db.txnMgr.CommitTransaction(txnID); err != nil {
		return nil, err
	}
	log.Info("Seed loaded")
	return ids, nil
}

func (db *GraphDB) loadLocked(ctx context.Context, txnID int64, seed *Seed) (map[string]int64, error) {
	ids := make(map[string]int64, len(seed.Vertices))
	for _, sv := range seed.Vertices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := ids[sv.Key]; dup {
			return nil, fmt.Errorf("seed vertex key %q declared twice", sv.Key)
		}
		v, err := sv.vertex()
		if err != nil {
			return nil, err
		}
		if err := db.validate(v); err != nil {
			return nil, fmt.Errorf("seed vertex %q: %w", sv.Key, err)
		}
		id, err := db.graph.AddVertex(v)
		if err != nil {
			return nil, err
		}
		if err := db.txnMgr.RecordOperation(txnID, TransactionOperation{Type: OpAddVertex, VertexID: id}); err != nil {
			return nil, err
		}
		ids[sv.Key] = id
	}
	for i, se := range seed.Edges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, ok := ids[se.Out]
		if !ok {
			return nil, fmt.Errorf("seed edge %d: unknown out vertex %q: %w", i, se.Out, ErrDanglingEdge)
		}
		in, ok := ids[se.In]
		if !ok {
			return nil, fmt.Errorf("seed edge %d: unknown in vertex %q: %w", i, se.In, ErrDanglingEdge)
		}
		id, err := db.graph.AddEdge(Edge{Label: se.Label, Out: out, In: in})
		if err != nil {
			return nil, err
		}
		if err := db.txnMgr.RecordOperation(txnID, TransactionOperation{Type: OpAddEdge, EdgeID: id}); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// Close shuts down the database
func (db *GraphDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	if err := db.bufferPool.Close(); err != nil {
		return err
	}
	return db.storage.Close()
}
