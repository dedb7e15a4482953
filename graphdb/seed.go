package graphdb

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Seed is a portable description of an inventory graph. Vertices are
// referenced by seed-local keys; ids are assigned on load.
type Seed struct {
	Vertices []SeedVertex `yaml:"vertices"`
	Edges    []SeedEdge   `yaml:"edges"`
}

// SeedVertex is one vertex of a seed document
type SeedVertex struct {
	Key        string                 `yaml:"key"`
	NodeType   string                 `yaml:"node-type"`
	Properties map[string]interface{} `yaml:"properties"`
}

// SeedEdge is one edge of a seed document, physical direction Out -> In
type SeedEdge struct {
	Label string `yaml:"label"`
	Out   string `yaml:"out"`
	In    string `yaml:"in"`
}

// ParseSeed decodes a YAML or JSON seed document
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	for i, v := range seed.Vertices {
		if v.Key == "" || v.NodeType == "" {
			return nil, fmt.Errorf("seed vertex %d: key and node-type are required", i)
		}
	}
	for i, e := range seed.Edges {
		if e.Label == "" || e.Out == "" || e.In == "" {
			return nil, fmt.Errorf("seed edge %d: label, out and in are required", i)
		}
	}
	return &seed, nil
}

// LoadSeedFile reads and parses a seed document from disk
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}

// vertex converts the seed entry into a typed Vertex with properties in key order
func (sv SeedVertex) vertex() (Vertex, error) {
	keys := make([]string, 0, len(sv.Properties))
	for k := range sv.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := Vertex{NodeType: sv.NodeType, Properties: make([]Property, 0, len(keys))}
	for _, k := range keys {
		p, err := NewProperty(k, sv.Properties[k])
		if err != nil {
			return Vertex{}, fmt.Errorf("seed vertex %q: %w", sv.Key, err)
		}
		v.Properties = append(v.Properties, p)
	}
	return v, nil
}
