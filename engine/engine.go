// Package engine answers invocations: it binds stored queries, composes
// traversal plans and materializes the traversers into vertex sets, path
// lists or containment trees.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"invquery/graphdb"
	"invquery/schema"
	"invquery/storedquery"
	"invquery/traversal"
)

// Invocation is one query request. Exactly one of Query and Relation is set.
type Invocation struct {
	Query    string
	Relation *traversal.RelationRequest
	Start    graphdb.Predicate
	Params   map[string]any
}

// QuerySource yields the stored-query catalog; *storedquery.Registry
// implements it
type QuerySource interface {
	Catalog(ctx context.Context) (*storedquery.Catalog, error)
}

// Engine is safe for concurrent use. Invocations share only the immutable
// catalogs and the store.
type Engine struct {
	store     graphdb.Store
	rules     *schema.Catalog
	queries   QuerySource
	composer  *traversal.Composer
	nodeTypes *schema.NodeTypes
	metrics   *Metrics
	tracer    trace.Tracer
}

// Option configures an Engine
type Option func(*Engine)

// WithNodeTypes enables start predicate validation
func WithNodeTypes(nt *schema.NodeTypes) Option {
	return func(e *Engine) { e.nodeTypes = nt }
}

// WithMetrics records invocation metrics
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over store using the given catalogs
func New(store graphdb.Store, rules *schema.Catalog, queries QuerySource, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		rules:    rules,
		queries:  queries,
		composer: traversal.NewComposer(rules),
		tracer:   otel.Tracer("invquery/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Vertices returns the distinct vertices the traversal ends on
func (e *Engine) Vertices(ctx context.Context, inv Invocation) (*Result, error) {
	return e.invoke(ctx, inv, traversal.ShapeVertices)
}

// Paths returns one vertex sequence per traverser, start vertex first
func (e *Engine) Paths(ctx context.Context, inv Invocation) (*Result, error) {
	return e.invoke(ctx, inv, traversal.ShapePaths)
}

// Tree returns one containment tree per start vertex that reached anything
func (e *Engine) Tree(ctx context.Context, inv Invocation) (*Result, error) {
	return e.invoke(ctx, inv, traversal.ShapeTree)
}

// Invoke dispatches on shape
func (e *Engine) Invoke(ctx context.Context, inv Invocation, shape traversal.Shape) (*Result, error) {
	return e.invoke(ctx, inv, shape)
}

func (e *Engine) invoke(ctx context.Context, inv Invocation, shape traversal.Shape) (result *Result, err error) {
	start := time.Now()
	id := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{
		"component":     "Engine",
		"invocation_id": id,
		"shape":         shape.String(),
	})
	if inv.Query != "" {
		log = log.WithField("query", inv.Query)
	}

	ctx, span := e.tracer.Start(ctx, "engine."+shape.String(), trace.WithAttributes(
		attribute.String("invocation.id", id),
		attribute.String("invocation.query", inv.Query),
		attribute.String("invocation.start_type", inv.Start.NodeType),
	))
	defer func() {
		out := outcome(err)
		entries := 0
		if result != nil {
			entries = result.Len()
		}
		e.metrics.observe(shape.String(), out, time.Since(start).Seconds(), entries)
		fields := logrus.Fields{"outcome": out, "duration_ms": time.Since(start).Milliseconds()}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, out)
			log.WithFields(fields).WithError(err).Warn("Invocation failed")
		} else {
			span.SetAttributes(attribute.Int("result.entries", entries))
			log.WithFields(fields).WithField("entries", entries).Info("Invocation completed")
		}
		span.End()
	}()

	plan, err := e.plan(ctx, inv, shape)
	if err != nil {
		return nil, err
	}
	span.AddEvent("plan composed", trace.WithAttributes(attribute.String("plan", plan.String())))

	starts, ts, err := newExecutor(e.store, plan, e.metrics, log).run(ctx, plan)
	if err != nil {
		return nil, err
	}
	result = materialize(shape, starts, ts)
	result.InvocationID = id
	return result, nil
}

func (e *Engine) plan(ctx context.Context, inv Invocation, shape traversal.Shape) (*traversal.Plan, error) {
	switch {
	case inv.Query == "" && inv.Relation == nil:
		return nil, fmt.Errorf("%w: neither a stored query nor a relation request", ErrInvalidInvocation)
	case inv.Query != "" && inv.Relation != nil:
		return nil, fmt.Errorf("%w: both a stored query and a relation request", ErrInvalidInvocation)
	}
	if e.nodeTypes != nil {
		if err := e.nodeTypes.ValidatePredicate(inv.Start); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPredicate, err)
		}
	}
	if inv.Relation != nil {
		return e.composer.ComposeRelation(inv.Start, *inv.Relation, shape)
	}

	catalog, err := e.queries.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	q, ok := catalog.Get(inv.Query)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStoredQuery, inv.Query)
	}
	rendered, err := storedquery.Bind(q, inv.Params)
	if err != nil {
		return nil, err
	}
	return e.composer.Compose(inv.Start, rendered)
}

// Rules exposes the edge rule catalog for listing
func (e *Engine) Rules() *schema.Catalog { return e.rules }

// QueryNames lists the stored queries currently served
func (e *Engine) QueryNames(ctx context.Context) ([]string, error) {
	catalog, err := e.queries.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Names(), nil
}
