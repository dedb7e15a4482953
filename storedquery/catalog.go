// Package storedquery parses the stored-query configuration document,
// keeps the resulting catalog and binds invocation parameters into query
// templates.
package storedquery

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Properties is a declared property list. Declared is false when the
// document omitted the key, which is distinct from an empty list.
type Properties struct {
	Names    []string
	Declared bool
}

// Contains reports whether name is in the list
func (p Properties) Contains(name string) bool {
	for _, n := range p.Names {
		if n == name {
			return true
		}
	}
	return false
}

// StoredQuery is a named, parameterized traversal template
type StoredQuery struct {
	Name     string
	Required Properties
	Optional Properties
	Template string
}

// Catalog holds the stored queries of one document. It is immutable and
// safe for concurrent use.
type Catalog struct {
	queries map[string]StoredQuery
	names   []string
}

type document struct {
	StoredQueries *[]map[string]entry `yaml:"stored-queries"`
}

type entry struct {
	Query *struct {
		Required *[]string `yaml:"required-properties"`
		Optional *[]string `yaml:"optional-properties"`
	} `yaml:"query"`
	StoredQuery *string `yaml:"stored-query"`
}

// Load parses a JSON (or YAML) stored-query document
func Load(doc []byte) (*Catalog, error) {
	var d document
	if err := yaml.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	if d.StoredQueries == nil {
		return nil, fmt.Errorf("%w: missing stored-queries array", ErrMalformedCatalog)
	}

	c := &Catalog{queries: make(map[string]StoredQuery)}
	for i, item := range *d.StoredQueries {
		if len(item) != 1 {
			return nil, fmt.Errorf("%w: entry %d must have exactly one query name, has %d", ErrMalformedCatalog, i, len(item))
		}
		for name, e := range item {
			q, err := e.storedQuery(name)
			if err != nil {
				return nil, err
			}
			if _, dup := c.queries[name]; dup {
				return nil, fmt.Errorf("%w: query %s declared twice", ErrMalformedCatalog, name)
			}
			c.queries[name] = q
			c.names = append(c.names, name)
		}
	}

	logrus.WithFields(logrus.Fields{
		"component": "StoredQueryCatalog",
		"queries":   len(c.names),
	}).Debug("Stored query catalog loaded")
	return c, nil
}

func (e entry) storedQuery(name string) (StoredQuery, error) {
	if name == "" {
		return StoredQuery{}, fmt.Errorf("%w: empty query name", ErrMalformedCatalog)
	}
	if e.StoredQuery == nil || *e.StoredQuery == "" {
		return StoredQuery{}, fmt.Errorf("%w: query %s has no stored-query template", ErrMalformedCatalog, name)
	}
	q := StoredQuery{Name: name, Template: *e.StoredQuery}
	if e.Query != nil {
		q.Required = declared(e.Query.Required)
		q.Optional = declared(e.Query.Optional)
	}
	for _, n := range q.Required.Names {
		if q.Optional.Contains(n) {
			return StoredQuery{}, fmt.Errorf("%w: query %s lists %s as both required and optional", ErrMalformedCatalog, name, n)
		}
	}
	if _, err := parseTemplate(q.Template); err != nil {
		return StoredQuery{}, fmt.Errorf("%w: query %s: %v", ErrMalformedCatalog, name, err)
	}
	return q, nil
}

func declared(names *[]string) Properties {
	if names == nil {
		return Properties{}
	}
	return Properties{Names: append([]string{}, (*names)...), Declared: true}
}

// LoadFile reads and parses a stored-query document from disk
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored queries %s: %w", path, err)
	}
	return Load(data)
}

// Get returns the named query. Unknown names yield false.
func (c *Catalog) Get(name string) (StoredQuery, bool) {
	q, ok := c.queries[name]
	return q, ok
}

// Names returns query names in declaration order
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}
