package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"invquery/config"
	"invquery/engine"
	"invquery/graphdb"
	"invquery/schema"
	"invquery/storedquery"
)

// app is everything a command needs once configuration is loaded
type app struct {
	cfg       *config.Config
	db        *graphdb.GraphDB
	rules     *schema.Catalog
	nodeTypes *schema.NodeTypes
	queries   *storedquery.Registry
	engine    *engine.Engine
	registry  *prometheus.Registry
}

// bootstrap loads the rule, node-type and stored-query documents
// concurrently, then opens the store and wires the engine
func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logrus.WithField("component", "Bootstrap")
	a := &app{
		cfg:      cfg,
		queries:  storedquery.NewRegistry(storedquery.FileLoader(cfg.StoredQueries)),
		registry: prometheus.NewRegistry(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rules, err := schema.LoadCatalog(gctx, schema.FileSource{Path: cfg.Schema.EdgeRules})
		if err != nil {
			return err
		}
		a.rules = rules
		log.WithField("rules", rules.Len()).Debug("Loaded edge rules")
		return nil
	})
	if cfg.Schema.NodeTypes != "" {
		g.Go(func() error {
			nt, err := schema.LoadNodeTypes(cfg.Schema.NodeTypes)
			if err != nil {
				return err
			}
			a.nodeTypes = nt
			log.WithField("node_types", len(nt.Names())).Debug("Loaded node types")
			return nil
		})
	}
	g.Go(func() error {
		c, err := a.queries.Catalog(gctx)
		if err != nil {
			return err
		}
		log.WithField("stored_queries", len(c.Names())).Debug("Loaded stored queries")
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db, err := graphdb.NewGraphDB(cfg.Store.Path, cfg.Store.PageSize, cfg.Store.BufferCapacity)
	if err != nil {
		return nil, err
	}
	a.db = db

	opts := []engine.Option{engine.WithMetrics(engine.NewMetrics(a.registry))}
	if a.nodeTypes != nil {
		db.SetValidator(a.nodeTypes)
		opts = append(opts, engine.WithNodeTypes(a.nodeTypes))
	}
	a.engine = engine.New(db, a.rules, a.queries, opts...)
	log.WithField("store", cfg.Store.Path).Info("Query engine ready")
	return a, nil
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
