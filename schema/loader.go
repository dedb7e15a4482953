package schema

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"invquery/graphdb"
)

// EdgeRuleSource supplies the rules a Catalog is built from
type EdgeRuleSource interface {
	Rules(ctx context.Context) ([]EdgeRule, error)
}

// FileSource reads a YAML or JSON rules document from disk
type FileSource struct {
	Path string
}

// Rules implements EdgeRuleSource
func (s FileSource) Rules(ctx context.Context) ([]EdgeRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read edge rules %s: %w", s.Path, err)
	}
	return ParseRules(data)
}

// StaticSource serves a fixed rule list
type StaticSource []EdgeRule

// Rules implements EdgeRuleSource
func (s StaticSource) Rules(ctx context.Context) ([]EdgeRule, error) {
	return []EdgeRule(s), nil
}

// LoadCatalog reads rules from src and builds a Catalog
func LoadCatalog(ctx context.Context, src EdgeRuleSource) (*Catalog, error) {
	rules, err := src.Rules(ctx)
	if err != nil {
		return nil, err
	}
	return NewCatalog(rules)
}

type rulesDocument struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Label       string `yaml:"label"`
	Direction   string `yaml:"direction" validate:"required,oneof=OUT IN BOTH"`
	Type        string `yaml:"type" validate:"required"`
	Parent      string `yaml:"parent"`
	Default     bool   `yaml:"default"`
	Description string `yaml:"description"`
}

// ParseRules decodes a rules document. Field constraints are enforced by
// NewCatalog; only the string encodings are checked here.
func ParseRules(data []byte) ([]EdgeRule, error) {
	var doc rulesDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	rules := make([]EdgeRule, 0, len(doc.Rules))
	for i, e := range doc.Rules {
		e.Direction = strings.ToUpper(strings.TrimSpace(e.Direction))
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("rule %d (%s-%s): %w: %v", i, e.From, e.To, ErrInvalidRule, err)
		}
		typ, err := ParseClassification(e.Type)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w: %v", i, ErrInvalidRule, err)
		}
		rules = append(rules, EdgeRule{
			From:        e.From,
			To:          e.To,
			Label:       e.Label,
			Direction:   parseDirection(e.Direction),
			Type:        typ,
			Parent:      Endpoint(strings.ToLower(e.Parent)),
			Default:     e.Default,
			Description: e.Description,
		})
	}
	return rules, nil
}

func parseDirection(s string) graphdb.Direction {
	switch strings.ToUpper(s) {
	case "IN":
		return graphdb.DirectionIn
	case "BOTH":
		return graphdb.DirectionBoth
	default:
		return graphdb.DirectionOut
	}
}
