package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryArgs_StoredQuery(t *testing.T) {
	q := queryArgs{
		query:    "pservers-by-hostname",
		nodeType: "pserver",
		where:    []string{"in-maint=false"},
		params:   []string{"hostnames=a, b,c", "inMaint=true", "empty="},
	}
	inv, err := q.invocation()
	require.NoError(t, err)

	assert.Equal(t, "pservers-by-hostname", inv.Query)
	assert.Nil(t, inv.Relation)
	assert.Equal(t, "pserver", inv.Start.NodeType)
	assert.Equal(t, map[string]interface{}{"in-maint": "false"}, inv.Start.Properties)
	assert.Equal(t, map[string]any{
		"hostnames": []string{"a", "b", "c"},
		"inMaint":   "true",
		"empty":     "",
	}, inv.Params)
}

func TestQueryArgs_Relation(t *testing.T) {
	q := queryArgs{startType: "cloud-region", relatedType: "complex", edgeType: "COUSIN"}
	inv, err := q.invocation()
	require.NoError(t, err)

	require.NotNil(t, inv.Relation)
	assert.Equal(t, "cloud-region", inv.Relation.StartingNodeType)
	assert.Equal(t, "complex", inv.Relation.RelatedToNodeType)
	assert.Equal(t, "COUSIN", inv.Relation.EdgeType)
	assert.Nil(t, inv.Start.Properties)
	assert.Nil(t, inv.Params)
}

func TestQueryArgs_BadAssignment(t *testing.T) {
	_, err := queryArgs{query: "x", where: []string{"novalue"}}.invocation()
	assert.ErrorContains(t, err, "--where")

	_, err = queryArgs{query: "x", params: []string{"=v"}}.invocation()
	assert.ErrorContains(t, err, "--param")
}

func TestParseQueryLine(t *testing.T) {
	inv, err := parseQueryLine([]string{
		"pservers-by-hostname", "node-type=pserver", "in-maint=true", "--", "hostnames=h1,h2",
	})
	require.NoError(t, err)
	assert.Equal(t, "pservers-by-hostname", inv.Query)
	assert.Equal(t, "pserver", inv.Start.NodeType)
	assert.Equal(t, map[string]interface{}{"in-maint": "true"}, inv.Start.Properties)
	assert.Equal(t, map[string]any{"hostnames": []string{"h1", "h2"}}, inv.Params)
}
