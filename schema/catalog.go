package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

type pairKey struct{ a, b string }

func keyOf(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a, b}
}

// RuleQuery narrows rule resolution. Type and Label are optional; an empty
// Type means any non-PRIVATE classification.
type RuleQuery struct {
	From  string
	To    string
	Type  Classification
	Label string
}

func (q RuleQuery) admits(r EdgeRule) bool {
	if q.Label != "" && r.Label != q.Label {
		return false
	}
	if q.Type != "" {
		return r.Type == q.Type
	}
	return r.Type != Private
}

// Catalog is an immutable index of edge rules by unordered node-type pair.
// It is safe for concurrent use.
type Catalog struct {
	rules    []EdgeRule
	byPair   map[pairKey][]EdgeRule
	byParent map[string][]EdgeRule
}

// NewCatalog validates rules and indexes them. Each rule must pass its
// struct constraints, TREE rules must name a parent endpoint, a label may
// appear once per pair and each pair has at most one default per
// classification. Defaults only break ties within a classification: a
// pair carrying both a TREE and a COUSIN default still needs q.Type set
// for Resolve to choose between them.
func NewCatalog(rules []EdgeRule) (*Catalog, error) {
	c := &Catalog{
		rules:    make([]EdgeRule, 0, len(rules)),
		byPair:   make(map[pairKey][]EdgeRule),
		byParent: make(map[string][]EdgeRule),
	}
	type defaultKey struct {
		pair pairKey
		typ  Classification
	}
	defaults := make(map[defaultKey]EdgeRule)

	for i, r := range rules {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("rule %d (%s-%s): %w: %v", i, r.From, r.To, ErrInvalidRule, err)
		}
		switch {
		case r.Type == Tree && r.Parent == "":
			return nil, fmt.Errorf("rule %d (%s-%s): %w: TREE rule needs a parent endpoint", i, r.From, r.To, ErrInvalidRule)
		case r.Type != Tree && r.Parent != "":
			return nil, fmt.Errorf("rule %d (%s-%s): %w: parent is only meaningful for TREE rules", i, r.From, r.To, ErrInvalidRule)
		}

		k := keyOf(r.From, r.To)
		for _, existing := range c.byPair[k] {
			if existing.Label == r.Label {
				return nil, fmt.Errorf("rule %d (%s-%s): %w: label %s declared twice", i, r.From, r.To, ErrInvalidRule, r.Label)
			}
		}
		if r.Default {
			dk := defaultKey{k, r.Type}
			if prev, dup := defaults[dk]; dup {
				return nil, fmt.Errorf("rule %d (%s-%s): %w: second %s default (already %s)", i, r.From, r.To, ErrInvalidRule, r.Type, prev.Label)
			}
			defaults[dk] = r
		}

		c.rules = append(c.rules, r)
		c.byPair[k] = append(c.byPair[k], r)
		if r.Type == Tree {
			c.byParent[r.ParentType()] = append(c.byParent[r.ParentType()], r)
		}
	}

	logrus.WithFields(logrus.Fields{
		"component": "EdgeRuleCatalog",
		"rules":     len(c.rules),
		"pairs":     len(c.byPair),
	}).Debug("Edge rule catalog built")
	return c, nil
}

// Len returns the number of rules
func (c *Catalog) Len() int { return len(c.rules) }

// Lookup returns every rule connecting a and b regardless of argument
// order, in declaration order. The result may be empty.
func (c *Catalog) Lookup(a, b string) []EdgeRule {
	rules := c.byPair[keyOf(a, b)]
	out := make([]EdgeRule, len(rules))
	copy(out, rules)
	return out
}

// Resolve picks the single rule satisfying q. PRIVATE rules only take part
// when q.Type is PRIVATE. Among several candidates the default wins; if
// more than one candidate is a default, which happens when q.Type is empty
// and several classifications declare one, the result is
// ErrAmbiguousEdgeRule.
func (c *Catalog) Resolve(q RuleQuery) (EdgeRule, error) {
	var candidates []EdgeRule
	for _, r := range c.byPair[keyOf(q.From, q.To)] {
		if q.admits(r) {
			candidates = append(candidates, r)
		}
	}

	switch len(candidates) {
	case 0:
		return EdgeRule{}, c.fail(q, ErrNoEdgeRule)
	case 1:
		return candidates[0], nil
	}

	var picked []EdgeRule
	for _, r := range candidates {
		if r.Default {
			picked = append(picked, r)
		}
	}
	if len(picked) != 1 {
		return EdgeRule{}, c.fail(q, ErrAmbiguousEdgeRule)
	}
	return picked[0], nil
}

func (c *Catalog) fail(q RuleQuery, err error) error {
	return &RuleError{From: q.From, To: q.To, Type: q.Type, Label: q.Label, Err: err}
}

// RuleFor classifies a physical edge between node types a and b
func (c *Catalog) RuleFor(a, b, label string) (EdgeRule, bool) {
	for _, r := range c.byPair[keyOf(a, b)] {
		if r.Label == label {
			return r, true
		}
	}
	return EdgeRule{}, false
}

// Rules lists rules matching q. Empty From/To match any node type and
// PRIVATE rules are listed unless q.Type excludes them.
func (c *Catalog) Rules(q RuleQuery) []EdgeRule {
	var out []EdgeRule
	for _, r := range c.rules {
		if q.From != "" && q.To != "" && !r.Connects(q.From, q.To) {
			continue
		}
		if q.From != "" && q.To == "" && r.From != q.From && r.To != q.From {
			continue
		}
		if q.To != "" && q.From == "" && r.From != q.To && r.To != q.To {
			continue
		}
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		if q.Label != "" && r.Label != q.Label {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Children returns the TREE rules whose parent endpoint is nodeType
func (c *Catalog) Children(nodeType string) []EdgeRule {
	rules := c.byParent[nodeType]
	out := make([]EdgeRule, len(rules))
	copy(out, rules)
	return out
}
