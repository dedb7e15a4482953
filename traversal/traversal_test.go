package traversal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invquery/graphdb"
	"invquery/schema"
)

func testRules(t *testing.T) *schema.Catalog {
	t.Helper()
	c, err := schema.NewCatalog([]schema.EdgeRule{
		{From: "cloud-region", To: "availability-zone", Label: "BelongsTo", Direction: graphdb.DirectionIn, Type: schema.Tree, Parent: schema.EndpointFrom, Default: true},
		{From: "cloud-region", To: "complex", Label: "LocatedIn", Direction: graphdb.DirectionOut, Type: schema.Cousin, Default: true},
		{From: "pserver", To: "complex", Label: "LocatedIn", Direction: graphdb.DirectionOut, Type: schema.Cousin},
		{From: "pserver", To: "complex", Label: "Backup", Direction: graphdb.DirectionOut, Type: schema.Cousin},
		{From: "pserver", To: "zone", Label: "Audit", Direction: graphdb.DirectionOut, Type: schema.Private},
	})
	require.NoError(t, err)
	return c
}

func TestTokenizer(t *testing.T) {
	tokens, err := NewTokenizer(`has('owner', "att", 'O\'Brien', -3).__`).Tokenize()
	require.NoError(t, err)

	var values []string
	var types []TokenType
	for _, tok := range tokens {
		values = append(values, tok.Value)
		types = append(types, tok.Type)
	}
	assert.Equal(t, []string{"has", "(", "owner", ",", "att", ",", "O'Brien", ",", "-3", ")", ".", "__", ""}, values)
	assert.Equal(t, TokenNumber, types[8])
	assert.Equal(t, TokenEOF, types[len(types)-1])

	_, err = NewTokenizer(`has('open`).Tokenize()
	assert.ErrorIs(t, err, ErrTemplateSyntax)

	_, err = NewTokenizer(`has('a') ; drop()`).Tokenize()
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 9, se.Pos)
}

func TestParser_NestedTraversals(t *testing.T) {
	calls, err := ParseTemplate(`union(__.tree('a','b').hasType('b'), __.identity()).limit(3)`)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	union := calls[0]
	assert.Equal(t, "union", union.Name)
	require.Len(t, union.Args, 2)
	assert.Equal(t, ArgTraversal, union.Args[0].Kind)
	require.Len(t, union.Args[0].Sub, 2)
	assert.Equal(t, "hasType", union.Args[0].Sub[1].Name)
	assert.Equal(t, "identity", union.Args[1].Sub[0].Name)

	assert.Equal(t, "limit", calls[1].Name)
	assert.Equal(t, int64(3), calls[1].Args[0].Num)
}

func TestParser_Errors(t *testing.T) {
	for _, tmpl := range []string{
		``,
		`has(`,
		`has('a' 'b')`,
		`identity().`,
		`union(tree('a','b'))`,
		`identity() identity()`,
		`__.identity()`,
	} {
		t.Run(tmpl, func(t *testing.T) {
			_, err := ParseTemplate(tmpl)
			assert.ErrorIs(t, err, ErrTemplateSyntax)
		})
	}
}

func TestCompose_ResolvesHops(t *testing.T) {
	c := NewComposer(testRules(t))
	start := graphdb.Predicate{NodeType: "cloud-region"}

	plan, err := c.Compose(start, `union(__.tree('cloud-region','availability-zone'), __.cousin('cloud-region','complex'))`)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	union := plan.Steps[0]
	require.Equal(t, StepUnion, union.Kind)
	require.Len(t, union.Branches, 2)

	tree := union.Branches[0][0]
	assert.Equal(t, StepHop, tree.Kind)
	assert.Equal(t, "BelongsTo", tree.Rule.Label)
	assert.Equal(t, graphdb.DirectionIn, tree.Direction)
	assert.Equal(t, "availability-zone", tree.ToType)

	cousin := union.Branches[1][0]
	assert.Equal(t, "LocatedIn", cousin.Rule.Label)
	assert.Equal(t, graphdb.DirectionOut, cousin.Direction)
	assert.Equal(t, start, plan.Start)
}

func TestCompose_Steps(t *testing.T) {
	c := NewComposer(testRules(t))
	plan, err := c.Compose(graphdb.Predicate{}, `hasType('pserver').has('in-maint','false','0').not(__.both().hasType('complex')).where(__.out('Backup')).hasNot('purpose').dedup().limit(5).related('complex','pserver','Backup')`)
	require.NoError(t, err)

	kinds := make([]StepKind, len(plan.Steps))
	for i, s := range plan.Steps {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []StepKind{StepHasType, StepHas, StepNot, StepWhere, StepHasNot, StepDedup, StepLimit, StepHop}, kinds)
	assert.Equal(t, []string{"false", "0"}, plan.Steps[1].Values)
	assert.Equal(t, graphdb.DirectionBoth, plan.Steps[2].Branches[0][0].Direction)
	assert.Equal(t, []string{"Backup"}, plan.Steps[3].Branches[0][0].Labels)
	assert.Equal(t, 5, plan.Steps[6].N)
	hop := plan.Steps[7]
	assert.Equal(t, "Backup", hop.Rule.Label)
	// walked from the To side, so the physical direction flips
	assert.Equal(t, graphdb.DirectionIn, hop.Direction)
}

func TestCompose_Errors(t *testing.T) {
	c := NewComposer(testRules(t))
	tests := []struct {
		tmpl string
		want error
	}{
		{`cousin('pserver','complex')`, schema.ErrAmbiguousEdgeRule},
		{`tree('pserver','complex')`, schema.ErrNoEdgeRule},
		{`related('pserver','zone')`, schema.ErrNoEdgeRule},
		{`frobnicate()`, ErrTemplateSyntax},
		{`hasType()`, ErrTemplateSyntax},
		{`limit('x')`, ErrTemplateSyntax},
		{`where(__.identity(), __.identity())`, ErrTemplateSyntax},
		{`has('k', __.identity())`, ErrTemplateSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			_, err := c.Compose(graphdb.Predicate{}, tt.tmpl)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	plan, err := c.Compose(graphdb.Predicate{}, `private('pserver','zone')`)
	require.NoError(t, err)
	assert.Equal(t, "Audit", plan.Steps[0].Rule.Label)
}

func TestComposeRelation(t *testing.T) {
	c := NewComposer(testRules(t))

	plan, err := c.ComposeRelation(graphdb.Predicate{}, RelationRequest{
		StartingNodeType:  "cloud-region",
		RelatedToNodeType: "availability-zone",
	}, ShapeTree)
	require.NoError(t, err)
	assert.Equal(t, "cloud-region", plan.Start.NodeType)
	assert.Equal(t, schema.Tree, plan.Steps[0].Rule.Type)

	// tree shape narrows to TREE, and there is no TREE rule here
	_, err = c.ComposeRelation(graphdb.Predicate{}, RelationRequest{
		StartingNodeType:  "cloud-region",
		RelatedToNodeType: "complex",
	}, ShapeTree)
	assert.ErrorIs(t, err, schema.ErrNoEdgeRule)

	plan, err = c.ComposeRelation(graphdb.Predicate{}, RelationRequest{
		StartingNodeType:  "cloud-region",
		RelatedToNodeType: "complex",
	}, ShapeVertices)
	require.NoError(t, err)
	assert.Equal(t, schema.Cousin, plan.Steps[0].Rule.Type)

	plan, err = c.ComposeRelation(graphdb.Predicate{NodeType: "cloud-region"}, RelationRequest{EdgeType: "tree"}, ShapePaths)
	require.NoError(t, err)
	assert.Equal(t, StepDescendants, plan.Steps[0].Kind)

	_, err = c.ComposeRelation(graphdb.Predicate{NodeType: "cloud-region"}, RelationRequest{EdgeType: "cousin"}, ShapePaths)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.ComposeRelation(graphdb.Predicate{NodeType: "pserver"}, RelationRequest{StartingNodeType: "cloud-region", RelatedToNodeType: "complex"}, ShapePaths)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.ComposeRelation(graphdb.Predicate{}, RelationRequest{RelatedToNodeType: "complex"}, ShapePaths)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.ComposeRelation(graphdb.Predicate{}, RelationRequest{StartingNodeType: "pserver", RelatedToNodeType: "complex", EdgeType: "sibling"}, ShapePaths)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseShape(t *testing.T) {
	s, err := ParseShape("Tree")
	require.NoError(t, err)
	assert.Equal(t, ShapeTree, s)
	_, err = ParseShape("graph")
	assert.Error(t, err)
}
