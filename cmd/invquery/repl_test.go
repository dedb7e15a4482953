package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invquery/config"
	"invquery/graphdb"
)

// newTestApp bootstraps against the shipped etc documents with a
// throwaway store and loads the sample seed
func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "inventory.db")
	cfg.Store.PageSize = 1024
	cfg.Schema.EdgeRules = "../../etc/edge_rules.yaml"
	cfg.Schema.NodeTypes = "../../etc/node_types.yaml"
	cfg.StoredQueries = "../../etc/stored-queries.json"
	require.NoError(t, cfg.Validate())

	a, err := bootstrap(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	seed, err := graphdb.LoadSeedFile("../../etc/seed.yaml")
	require.NoError(t, err)
	_, err = a.db.Load(context.Background(), seed)
	require.NoError(t, err)
	return a
}

func runSession(t *testing.T, a *app, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	rs := newReplState(a, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, rs.runREPL(context.Background()))
	return out.String()
}

func TestRepl_Session(t *testing.T) {
	a := newTestApp(t)
	out := runSession(t, a,
		".queries",
		"availability-zone-and-complex-from-cloud-region node-type=cloud-region cloud-owner=att",
		".shape paths",
		".relate cloud-region availability-zone",
		".shape vertices",
		"pservers-by-hostname -- hostnames=compute-1,compute-2",
		"pservers-with-no-complex",
		".exit",
		"this line is never read",
	)

	assert.Contains(t, out, "  pservers-with-no-complex\n")
	assert.Contains(t, out, "(3 results")
	assert.Contains(t, out, "Result shape: paths")
	assert.Contains(t, out, "cloud-region#")
	assert.Contains(t, out, " -> availability-zone#")
	assert.Contains(t, out, "(2 results")
	assert.Contains(t, out, "hostname=compute-2")
	assert.Contains(t, out, "(1 results")
	assert.NotContains(t, out, "Error:")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
}

func TestRepl_Tree(t *testing.T) {
	a := newTestApp(t)
	out := runSession(t, a,
		".shape tree",
		".relate cloud-region availability-zone",
	)
	assert.Contains(t, out, "invquery(tree)>   cloud-region#")
	assert.Contains(t, out, "\n    availability-zone#")
	assert.Contains(t, out, "(1 results")
}

func TestRepl_Errors(t *testing.T) {
	a := newTestApp(t)
	out := runSession(t, a,
		".bogus",
		"no-such-query",
		"pservers-by-hostname",
		".rules",
		".shape sideways",
	)
	assert.Contains(t, out, "Error: unknown command: .bogus")
	assert.Contains(t, out, "unknown stored query")
	assert.Contains(t, out, "hostnames")
	assert.Contains(t, out, "usage: .rules")
	assert.Contains(t, out, "unknown result shape")
}

func TestRepl_RulesAndStats(t *testing.T) {
	a := newTestApp(t)
	out := runSession(t, a,
		".rules complex pserver",
		".rules tenant complex",
		".stats",
	)
	assert.Contains(t, out, "org.onap.relationships.inventory.LocatedIn")
	assert.Contains(t, out, "PRIVATE")
	assert.Contains(t, out, "No edge rules between tenant and complex")
	assert.Contains(t, out, "Vertices: 11")
	assert.Contains(t, out, "Edges: 11")
}
