package storedquery

import (
	"context"
	"sync"
	"sync/atomic"
)

// Loader produces a Catalog, typically by reading the configured document
type Loader func(ctx context.Context) (*Catalog, error)

// FileLoader returns a Loader reading path
func FileLoader(path string) Loader {
	return func(ctx context.Context) (*Catalog, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return LoadFile(path)
	}
}

// StaticLoader returns a Loader that always yields c
func StaticLoader(c *Catalog) Loader {
	return func(context.Context) (*Catalog, error) { return c, nil }
}

// Registry loads a catalog on first use. Concurrent first callers share
// one load and observe the same result. Swap replaces the catalog for
// callers that arrive afterwards.
type Registry struct {
	load    Loader
	once    sync.Once
	current atomic.Pointer[Catalog]
	err     error
}

// NewRegistry creates a registry backed by load
func NewRegistry(load Loader) *Registry {
	return &Registry{load: load}
}

// Catalog returns the current catalog, loading it on the first call.
// The load ignores ctx's cancellation; a caller that gives up never
// leaves a cached failure for later callers.
func (r *Registry) Catalog(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.once.Do(func() {
		c, err := r.load(context.WithoutCancel(ctx))
		if err != nil {
			r.err = err
			return
		}
		if c == nil {
			r.err = ErrNoCatalog
			return
		}
		r.current.CompareAndSwap(nil, c)
	})
	if c := r.current.Load(); c != nil {
		return c, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return nil, ErrNoCatalog
}

// Swap installs c and returns the previous catalog, which may be nil.
// A nil c is ignored and the current catalog is returned unchanged.
func (r *Registry) Swap(c *Catalog) *Catalog {
	if c == nil {
		return r.current.Load()
	}
	return r.current.Swap(c)
}
