package graphdb

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageSize = 512

func openTestDB(t *testing.T) (*GraphDB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.db")
	db, err := NewGraphDB(path, testPageSize, 8)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func mustVertex(t *testing.T, db *GraphDB, nodeType string, kv ...interface{}) int64 {
	t.Helper()
	v := Vertex{NodeType: nodeType}
	for i := 0; i+1 < len(kv); i += 2 {
		p, err := NewProperty(kv[i].(string), kv[i+1])
		require.NoError(t, err)
		v.Properties = append(v.Properties, p)
	}
	id, err := db.AddVertex(v)
	require.NoError(t, err)
	return id
}

func TestGraphDB_FindVerticesByTypeAndProperty(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	p1 := mustVertex(t, db, "pserver", "hostname", "host-1", "number-of-cpus", 8)
	mustVertex(t, db, "pserver", "hostname", "host-2", "number-of-cpus", 16)
	mustVertex(t, db, "complex", "physical-location-id", "clli-1")

	all, err := db.FindVertices(ctx, Predicate{NodeType: "pserver"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := db.FindVertices(ctx, Predicate{
		NodeType:   "pserver",
		Properties: map[string]interface{}{"hostname": "host-1"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p1, got[0].ID)

	// string form of an int property still matches
	got, err = db.FindVertices(ctx, Predicate{Properties: map[string]interface{}{"number-of-cpus": "8"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p1, got[0].ID)

	everything, err := db.FindVertices(ctx, Predicate{})
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}

func TestGraphDB_EdgesByDirectionAndLabel(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	cr := mustVertex(t, db, "cloud-region", "cloud-region-id", "r1")
	az := mustVertex(t, db, "availability-zone", "availability-zone-name", "az1")
	cx := mustVertex(t, db, "complex", "physical-location-id", "c1")

	_, err := db.AddEdge("BelongsTo", az, cr)
	require.NoError(t, err)
	_, err = db.AddEdge("LocatedIn", cr, cx)
	require.NoError(t, err)

	in, err := db.Edges(ctx, cr, DirectionIn)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, az, in[0].Out)

	out, err := db.Edges(ctx, cr, DirectionOut)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, cx, out[0].In)

	both, err := db.Edges(ctx, cr, DirectionBoth)
	require.NoError(t, err)
	assert.Len(t, both, 2)

	labeled, err := db.Edges(ctx, cr, DirectionBoth, "LocatedIn")
	require.NoError(t, err)
	require.Len(t, labeled, 1)
	assert.Equal(t, cx, labeled[0].Other(cr))
}

func TestGraphDB_AddEdgeRejectsMissingEndpoint(t *testing.T) {
	db, _ := openTestDB(t)
	v := mustVertex(t, db, "pserver")

	_, err := db.AddEdge("LocatedIn", v, 999)
	assert.True(t, errors.Is(err, ErrDanglingEdge))
}

func TestGraphDB_ReopenRebuildsIndexes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	db, err := NewGraphDB(path, testPageSize, 4)
	require.NoError(t, err)

	a := mustVertex(t, db, "pserver", "hostname", "a")
	b := mustVertex(t, db, "complex", "physical-location-id", "c")
	_, err = db.AddEdge("LocatedIn", a, b)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := NewGraphDB(path, testPageSize, 4)
	require.NoError(t, err)
	defer reopened.Close()

	ctx := context.Background()
	got, err := reopened.FindVertices(ctx, Predicate{Properties: map[string]interface{}{"hostname": "a"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a, got[0].ID)

	edges, err := reopened.Edges(ctx, a, DirectionOut)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, b, edges[0].In)

	// ids keep increasing after reopen
	c := mustVertex(t, reopened, "pserver", "hostname", "c")
	assert.Greater(t, c, b)
}

func TestGraphDB_ReopenWithWrongPageSizeFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	db, err := NewGraphDB(path, testPageSize, 4)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewGraphDB(path, testPageSize*2, 4)
	assert.Error(t, err)
}

type rejectComplex struct{}

func (rejectComplex) ValidateVertex(v Vertex) error {
	if v.NodeType == "complex" {
		return errors.New("complex not allowed")
	}
	return nil
}

func TestGraphDB_LoadSeed(t *testing.T) {
	db, _ := openTestDB(t)
	seed, err := ParseSeed([]byte(`
vertices:
  - key: cr1
    node-type: cloud-region
    properties: {cloud-owner: att, cloud-region-id: r1}
  - key: az1
    node-type: availability-zone
    properties: {availability-zone-name: az1}
edges:
  - {label: BelongsTo, out: az1, in: cr1}
`))
	require.NoError(t, err)

	ids, err := db.Load(context.Background(), seed)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	edges, err := db.Edges(context.Background(), ids["cr1"], DirectionIn)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, ids["az1"], edges[0].Out)
}

func TestGraphDB_LoadSeedRollsBackOnFailure(t *testing.T) {
	db, _ := openTestDB(t)
	db.SetValidator(rejectComplex{})

	seed := &Seed{
		Vertices: []SeedVertex{
			{Key: "p1", NodeType: "pserver", Properties: map[string]interface{}{"hostname": "p1"}},
			{Key: "c1", NodeType: "complex"},
		},
	}
	_, err := db.Load(context.Background(), seed)
	require.Error(t, err)

	left, err := db.FindVertices(context.Background(), Predicate{})
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Equal(t, 0, db.Stats().Vertices)
}

func TestGraphDB_LoadSeedUnknownEdgeEndpoint(t *testing.T) {
	db, _ := openTestDB(t)
	seed := &Seed{
		Vertices: []SeedVertex{{Key: "p1", NodeType: "pserver"}},
		Edges:    []SeedEdge{{Label: "LocatedIn", Out: "p1", In: "nope"}},
	}
	_, err := db.Load(context.Background(), seed)
	assert.True(t, errors.Is(err, ErrDanglingEdge))
	assert.Equal(t, 0, db.Stats().Vertices)
}

func TestParseSeed_RejectsUnknownFields(t *testing.T) {
	_, err := ParseSeed([]byte("vertices:\n  - key: a\n    node-type: x\n    colour: red\n"))
	assert.Error(t, err)
}

func TestGraphDB_ClosedAndCancelled(t *testing.T) {
	db, _ := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.FindVertices(ctx, Predicate{})
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, db.Close())
	_, err = db.FindVertices(context.Background(), Predicate{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGraphDB_ConcurrentReads(t *testing.T) {
	db, _ := openTestDB(t)
	hub := mustVertex(t, db, "complex")
	for i := 0; i < 20; i++ {
		p := mustVertex(t, db, "pserver", "hostname", "h")
		_, err := db.AddEdge("LocatedIn", p, hub)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			edges, err := db.Edges(context.Background(), hub, DirectionIn)
			assert.NoError(t, err)
			assert.Len(t, edges, 20)
		}()
	}
	wg.Wait()
}

func TestCodec_VertexRoundTrip(t *testing.T) {
	in := Vertex{
		ID:       7,
		NodeType: "pserver",
		Active:   true,
		Properties: []Property{
			{Key: "hostname", Value: "h", Type: PropertyString},
			{Key: "in-maint", Value: true, Type: PropertyBool},
			{Key: "number-of-cpus", Value: int64(4), Type: PropertyInt},
		},
	}
	data, err := Serialize(in)
	require.NoError(t, err)

	kind, err := PeekKind(data)
	require.NoError(t, err)
	assert.Equal(t, RecordVertex, kind)

	var out Vertex
	require.NoError(t, Deserialize(data, &out))
	assert.Equal(t, in, out)

	var wrong Edge
	assert.Error(t, Deserialize(data, &wrong))
}
