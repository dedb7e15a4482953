// Package config loads the process configuration: where the page file
// lives, which rule, node-type and stored-query documents to load, and
// how to log.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document
type Config struct {
	Store         StoreConfig  `yaml:"store"`
	Schema        SchemaConfig `yaml:"schema"`
	StoredQueries string       `yaml:"stored_queries" validate:"required"`
	Log           LogConfig    `yaml:"log"`
}

// StoreConfig configures the embedded page-file graph store
type StoreConfig struct {
	Path           string `yaml:"path" validate:"required"`
	PageSize       int    `yaml:"page_size" validate:"gte=64,lte=1048576"`
	BufferCapacity int    `yaml:"buffer_capacity" validate:"gte=1"`
}

// SchemaConfig names the edge rule and node type documents. NodeTypes is
// optional; without it vertices and predicates are not type checked.
type SchemaConfig struct {
	EdgeRules string `yaml:"edge_rules" validate:"required"`
	NodeTypes string `yaml:"node_types"`
}

// LogConfig selects the logrus level and formatter
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

var validate = validator.New()

// Default returns the configuration used for keys a document omits
func Default() Config {
	return Config{
		Store: StoreConfig{
			Path:           "data/inventory.db",
			PageSize:       4096,
			BufferCapacity: 256,
		},
		Schema: SchemaConfig{
			EdgeRules: "etc/edge_rules.yaml",
		},
		StoredQueries: "etc/stored-queries.json",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path, applies defaults and validates. Relative file paths in
// the document are resolved against the directory holding path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes a configuration document over the defaults. baseDir
// anchors relative paths; an empty baseDir leaves them untouched.
func Parse(data []byte, baseDir string) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseDir != "" {
		cfg.resolve(baseDir)
	}
	return &cfg, nil
}

// Validate checks the struct constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) resolve(baseDir string) {
	for _, p := range []*string{&c.Store.Path, &c.Schema.EdgeRules, &c.Schema.NodeTypes, &c.StoredQueries} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
}
