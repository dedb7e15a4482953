package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invquery/graphdb"
)

const rulesYAML = `
rules:
  - from: cloud-region
    to: availability-zone
    label: BelongsTo
    direction: IN
    type: TREE
    parent: from
    default: true
  - from: cloud-region
    to: complex
    label: LocatedIn
    direction: OUT
    type: COUSIN
    default: true
  - from: pserver
    to: complex
    label: LocatedIn
    direction: OUT
    type: COUSIN
    default: true
  - from: pserver
    to: complex
    label: BackupSite
    direction: OUT
    type: COUSIN
  - from: pserver
    to: p-interface
    label: BindsTo
    direction: in
    type: tree
    parent: from
  - from: vserver
    to: pserver
    label: HostedOn
    direction: OUT
    type: COUSIN
  - from: vserver
    to: pserver
    label: Migrates
    direction: BOTH
    type: COUSIN
  - from: pserver
    to: zone
    label: Audit
    direction: OUT
    type: PRIVATE
`

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	rules, err := ParseRules([]byte(rulesYAML))
	require.NoError(t, err)
	c, err := NewCatalog(rules)
	require.NoError(t, err)
	return c
}

func TestCatalog_LookupIsOrderIndependent(t *testing.T) {
	c := testCatalog(t)

	ab := c.Lookup("pserver", "complex")
	ba := c.Lookup("complex", "pserver")
	require.Len(t, ab, 2)
	assert.Equal(t, ab, ba)
	assert.Equal(t, "LocatedIn", ab[0].Label)
	assert.Equal(t, "BackupSite", ab[1].Label)

	assert.Empty(t, c.Lookup("pserver", "tenant"))
}

func TestCatalog_LookupReturnsCopy(t *testing.T) {
	c := testCatalog(t)
	got := c.Lookup("pserver", "complex")
	got[0].Label = "mutated"
	assert.Equal(t, "LocatedIn", c.Lookup("pserver", "complex")[0].Label)
}

func TestCatalog_Resolve(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name      string
		query     RuleQuery
		wantLabel string
		wantErr   error
	}{
		{name: "single tree rule", query: RuleQuery{From: "cloud-region", To: "availability-zone", Type: Tree}, wantLabel: "BelongsTo"},
		{name: "reversed pair", query: RuleQuery{From: "availability-zone", To: "cloud-region"}, wantLabel: "BelongsTo"},
		{name: "default wins", query: RuleQuery{From: "pserver", To: "complex", Type: Cousin}, wantLabel: "LocatedIn"},
		{name: "label narrows", query: RuleQuery{From: "pserver", To: "complex", Label: "BackupSite"}, wantLabel: "BackupSite"},
		{name: "no default among several", query: RuleQuery{From: "vserver", To: "pserver"}, wantErr: ErrAmbiguousEdgeRule},
		{name: "wrong classification", query: RuleQuery{From: "cloud-region", To: "complex", Type: Tree}, wantErr: ErrNoEdgeRule},
		{name: "unrelated pair", query: RuleQuery{From: "tenant", To: "complex"}, wantErr: ErrNoEdgeRule},
		{name: "private hidden by default", query: RuleQuery{From: "pserver", To: "zone"}, wantErr: ErrNoEdgeRule},
		{name: "private on request", query: RuleQuery{From: "pserver", To: "zone", Type: Private}, wantLabel: "Audit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := c.Resolve(tt.query)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				var re *RuleError
				require.True(t, errors.As(err, &re))
				assert.Equal(t, tt.query.From, re.From)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, rule.Label)
		})
	}
}

func TestCatalog_RuleForAndRules(t *testing.T) {
	c := testCatalog(t)

	r, ok := c.RuleFor("complex", "pserver", "BackupSite")
	require.True(t, ok)
	assert.Equal(t, Cousin, r.Type)

	_, ok = c.RuleFor("pserver", "complex", "Unknown")
	assert.False(t, ok)

	assert.Len(t, c.Rules(RuleQuery{From: "pserver"}), 6)
	assert.Len(t, c.Rules(RuleQuery{Type: Tree}), 2)
	assert.Len(t, c.Rules(RuleQuery{From: "pserver", To: "complex", Label: "LocatedIn"}), 1)
	assert.Len(t, c.Rules(RuleQuery{}), c.Len())
}

func TestCatalog_Children(t *testing.T) {
	c := testCatalog(t)
	children := c.Children("pserver")
	require.Len(t, children, 1)
	assert.Equal(t, "p-interface", children[0].ChildType())
	assert.Empty(t, c.Children("complex"))
}

func TestEdgeRule_Directions(t *testing.T) {
	c := testCatalog(t)
	az, err := c.Resolve(RuleQuery{From: "cloud-region", To: "availability-zone"})
	require.NoError(t, err)

	// physical edge is availability-zone -> cloud-region
	assert.Equal(t, graphdb.DirectionIn, az.WalkDirection("cloud-region"))
	assert.Equal(t, graphdb.DirectionOut, az.WalkDirection("availability-zone"))
	assert.True(t, az.Matches("availability-zone", "cloud-region", "BelongsTo"))
	assert.False(t, az.Matches("cloud-region", "availability-zone", "BelongsTo"))
	assert.Equal(t, "cloud-region", az.ParentType())
	assert.Equal(t, "availability-zone", az.ChildType())

	both, ok := c.RuleFor("vserver", "pserver", "Migrates")
	require.True(t, ok)
	assert.True(t, both.Matches("pserver", "vserver", "Migrates"))
	assert.True(t, both.Matches("vserver", "pserver", "Migrates"))
}

func TestNewCatalog_Rejects(t *testing.T) {
	base := EdgeRule{From: "a", To: "b", Label: "L", Type: Cousin}

	tests := []struct {
		name  string
		rules []EdgeRule
	}{
		{name: "missing label", rules: []EdgeRule{{From: "a", To: "b", Type: Cousin}}},
		{name: "bad classification", rules: []EdgeRule{{From: "a", To: "b", Label: "L", Type: "SIBLING"}}},
		{name: "tree without parent", rules: []EdgeRule{{From: "a", To: "b", Label: "L", Type: Tree}}},
		{name: "parent on cousin", rules: []EdgeRule{{From: "a", To: "b", Label: "L", Type: Cousin, Parent: EndpointFrom}}},
		{name: "duplicate label", rules: []EdgeRule{base, {From: "b", To: "a", Label: "L", Type: Cousin}}},
		{name: "two defaults", rules: []EdgeRule{
			{From: "a", To: "b", Label: "L1", Type: Cousin, Default: true},
			{From: "b", To: "a", Label: "L2", Type: Cousin, Default: true},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.rules)
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}

	// one default per classification is allowed
	_, err := NewCatalog([]EdgeRule{
		{From: "a", To: "b", Label: "L1", Type: Cousin, Default: true},
		{From: "a", To: "b", Label: "L2", Type: Tree, Parent: EndpointFrom, Default: true},
	})
	assert.NoError(t, err)
}

func TestCatalog_ResolveDefaultsPerClassification(t *testing.T) {
	c, err := NewCatalog([]EdgeRule{
		{From: "a", To: "b", Label: "L1", Type: Cousin, Default: true},
		{From: "a", To: "b", Label: "L2", Type: Tree, Parent: EndpointFrom, Default: true},
		{From: "a", To: "b", Label: "L3", Type: Tree, Parent: EndpointFrom},
	})
	require.NoError(t, err)

	_, err = c.Resolve(RuleQuery{From: "a", To: "b"})
	assert.ErrorIs(t, err, ErrAmbiguousEdgeRule)

	r, err := c.Resolve(RuleQuery{From: "a", To: "b", Type: Tree})
	require.NoError(t, err)
	assert.Equal(t, "L2", r.Label)

	r, err = c.Resolve(RuleQuery{From: "b", To: "a", Type: Cousin})
	require.NoError(t, err)
	assert.Equal(t, "L1", r.Label)
}

func TestParseRules_Rejects(t *testing.T) {
	_, err := ParseRules([]byte("rules:\n  - {from: a, to: b, label: L, direction: SIDEWAYS, type: TREE}\n"))
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = ParseRules([]byte("rules:\n  - {from: a, to: b, label: L, direction: OUT, type: LOOSE}\n"))
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = ParseRules([]byte("rules:\n  - {from: a, to: b, label: L, direction: OUT, type: TREE, colour: red}\n"))
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestLoadCatalog_FileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulesYAML), 0o644))

	c, err := LoadCatalog(context.Background(), FileSource{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 8, c.Len())

	_, err = LoadCatalog(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCatalog_StaticSource(t *testing.T) {
	c, err := LoadCatalog(context.Background(), StaticSource{
		{From: "a", To: "b", Label: "L", Direction: graphdb.DirectionOut, Type: Cousin},
	})
	require.NoError(t, err)
	r, err := c.Resolve(RuleQuery{From: "b", To: "a"})
	require.NoError(t, err)
	assert.Equal(t, graphdb.DirectionIn, r.WalkDirection("b"))

	_, err = LoadCatalog(context.Background(), StaticSource{{From: "a", To: "b", Label: "L", Type: Tree}})
	assert.ErrorIs(t, err, ErrInvalidRule)
}
