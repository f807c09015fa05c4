package jpostcode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultRegion is the region served when a caller does not choose one.
const DefaultRegion = RegionMetro

var (
	defaultCache     *IndexCache
	defaultCacheOnce sync.Once
)

// DefaultCache returns a shared IndexCache using the default directories,
// creating it on first call. Missing indexes are built from downloaded
// archives.
func DefaultCache() *IndexCache {
	defaultCacheOnce.Do(func() {
		defaultCache = NewIndexCache(NewStore(), NewArchiveSource())
	})
	return defaultCache
}

// Find looks code up in DefaultRegion through DefaultCache.
func Find(ctx context.Context, code string, opts ...LookupOptions) ([]Address, error) {
	return DefaultCache().Lookup(ctx, DefaultRegion, code, opts...)
}

// BuildRegion reads the region's rows from source and builds its index.
func BuildRegion(ctx context.Context, source RecordSource, region Region) (*Index, BuildStats, error) {
	if !region.Valid() {
		return nil, BuildStats{}, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	records, err := source.Records(ctx, region)
	if err != nil {
		return nil, BuildStats{}, err
	}
	idx, stats, err := BuildIndex(records, region.BuildOptions()...)
	if err != nil {
		return nil, stats, fmt.Errorf("building %s index: %w", region, err)
	}
	return idx, stats, nil
}

// IndexCache holds at most one loaded index per region and shares it across
// callers. Missing indexes are loaded from the Store, or built from the
// RecordSource and saved when the Store has none. Concurrent requests for the
// same region wait on a single load.
type IndexCache struct {
	store  *Store
	source RecordSource
	logger *zap.Logger

	mu      sync.RWMutex
	indexes map[Region]*Index
	gens    map[Region]uint64 // bumped whenever a region's held index changes
	group   singleflight.Group
}

// NewIndexCache returns a cache backed by store and source. Either may be
// nil: without a store nothing is persisted, without a source only stored
// indexes can be served.
func NewIndexCache(store *Store, source RecordSource, opts ...Option) *IndexCache {
	cfg := newConfig(opts)
	return &IndexCache{
		store:   store,
		source:  source,
		logger:  cfg.Logger,
		indexes: make(map[Region]*Index),
		gens:    make(map[Region]uint64),
	}
}

// Get returns the region's index if it is already loaded.
func (c *IndexCache) Get(region Region) (*Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[region]
	return idx, ok
}

// Put replaces the region's loaded index.
func (c *IndexCache) Put(region Region, idx *Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes[region] = idx
	c.gens[region]++
}

// Invalidate drops the region's loaded index. The stored blob is kept.
func (c *IndexCache) Invalidate(region Region) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.indexes, region)
	c.gens[region]++
}

// putIfCurrent stores idx unless the region's held index changed after gen
// was read. When it did, the newer index wins and is returned instead.
func (c *IndexCache) putIfCurrent(region Region, gen uint64, idx *Index) *Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[region] != gen {
		if held, ok := c.indexes[region]; ok {
			return held
		}
		return idx
	}
	c.indexes[region] = idx
	c.gens[region]++
	return idx
}

func (c *IndexCache) current(region Region) (*Index, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[region]
	return idx, c.gens[region], ok
}

// GetOrBuild returns the region's index, loading or building it on first use.
func (c *IndexCache) GetOrBuild(ctx context.Context, region Region) (*Index, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	if idx, ok := c.Get(region); ok {
		return idx, nil
	}
	return c.do(ctx, "load:"+string(region), func(ctx context.Context) (*Index, error) {
		held, gen, ok := c.current(region)
		if ok {
			return held, nil
		}
		idx, err := c.loadOrBuild(ctx, region)
		if err != nil {
			return nil, err
		}
		// A Rebuild or Put that finished meanwhile takes precedence.
		return c.putIfCurrent(region, gen, idx), nil
	})
}

// Rebuild builds the region's index from the source, saves it and replaces
// the loaded copy. Lookups keep using the previous index until it finishes.
func (c *IndexCache) Rebuild(ctx context.Context, region Region) (*Index, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	return c.do(ctx, "build:"+string(region), func(ctx context.Context) (*Index, error) {
		idx, err := c.build(ctx, region)
		if err != nil {
			return nil, err
		}
		c.Put(region, idx)
		return idx, nil
	})
}

// Lookup resolves code against the region's index.
func (c *IndexCache) Lookup(ctx context.Context, region Region, code string, opts ...LookupOptions) ([]Address, error) {
	idx, err := c.GetOrBuild(ctx, region)
	if err != nil {
		return nil, err
	}
	return idx.Lookup(code, opts...), nil
}

// do runs fn once per key across concurrent callers. The shared work is not
// cancelled when one caller's context is; each caller stops waiting instead.
func (c *IndexCache) do(ctx context.Context, key string, fn func(context.Context) (*Index, error)) (*Index, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	}
}

func (c *IndexCache) loadOrBuild(ctx context.Context, region Region) (*Index, error) {
	if c.store != nil {
		idx, err := c.store.Load(region)
		if err == nil {
			return idx, nil
		}
		if !errors.Is(err, ErrIndexNotFound) {
			return nil, err
		}
		c.logger.Info("no stored index", zap.String("region", string(region)))
	}
	if c.source == nil {
		return nil, fmt.Errorf("%w: %s (no record source configured)", ErrIndexNotFound, region)
	}
	return c.build(ctx, region)
}

func (c *IndexCache) build(ctx context.Context, region Region) (*Index, error) {
	if c.source == nil {
		return nil, fmt.Errorf("rebuilding %s: no record source configured", region)
	}
	start := time.Now()
	idx, stats, err := BuildRegion(ctx, c.source, region)
	if err != nil {
		return nil, err
	}
	c.logger.Info("built index",
		zap.String("region", string(region)),
		zap.Int("rows", stats.Rows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("entries", stats.Entries),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("codes", stats.Codes),
		zap.Duration("elapsed", time.Since(start)))

	if c.store != nil {
		if err := c.store.Save(region, idx); err != nil {
			c.logger.Warn("failed to store index", zap.String("region", string(region)), zap.Error(err))
		}
	}
	return idx, nil
}
