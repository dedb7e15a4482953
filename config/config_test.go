package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DefaultsAndOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
store:
  page_size: 8192
log:
  level: debug
`), "")
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.Store.PageSize)
	assert.Equal(t, 256, cfg.Store.BufferCapacity)
	assert.Equal(t, "data/inventory.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "etc/stored-queries.json", cfg.StoredQueries)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestParse_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"tiny pages":    "store: {page_size: 16}",
		"no buffer":     "store: {buffer_capacity: 0}",
		"bad level":     "log: {level: chatty}",
		"bad format":    "log: {format: xml}",
		"unknown key":   "stroe: {path: x}",
		"no rules path": "schema: {edge_rules: ''}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), "")
			assert.Error(t, err)
		})
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: {path: db/inv.db}
schema: {edge_rules: rules.yaml, node_types: /abs/types.yaml}
stored_queries: queries.json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "db/inv.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(dir, "rules.yaml"), cfg.Schema.EdgeRules)
	assert.Equal(t, "/abs/types.yaml", cfg.Schema.NodeTypes)
	assert.Equal(t, filepath.Join(dir, "queries.json"), cfg.StoredQueries)
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	defer logrus.SetFormatter(logrus.StandardLogger().Formatter)

	require.NoError(t, SetupLogging(LogConfig{Level: "warn", Format: "json"}))
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	assert.Error(t, SetupLogging(LogConfig{Level: "chatty"}))
}
