package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/pkg/composables"
	"github.com/211-Connect/silobuster-resources/pkg/retry"
)

type cacheEntry struct {
	once sync.Once
	err  error

	// guarded by SourceCache.mu
	rows []entity.RawRow
	ok   bool
}

// SourceCache holds the raw rows of one source, fetched at most once per
// entity type for the lifetime of the cache.
type SourceCache struct {
	source   entity.Source
	upstream Source
	policy   *retry.Policy
	timeout  time.Duration

	mu      sync.Mutex
	entries map[entity.Type]*cacheEntry
}

func NewSourceCache(source entity.Source, upstream Source, policy *retry.Policy, timeout time.Duration) *SourceCache {
	if policy == nil {
		policy = &retry.Policy{Attempts: 1}
	}
	return &SourceCache{
		source:   source,
		upstream: upstream,
		policy:   policy,
		timeout:  timeout,
		entries:  make(map[entity.Type]*cacheEntry),
	}
}

func (c *SourceCache) entry(t entity.Type) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[t]
	if !ok {
		e = &cacheEntry{}
		c.entries[t] = e
	}
	return e
}

// FetchAndCache fills the cache for schema.Type. Later calls are no-ops that
// return the outcome of the first one. On failure the cache stays empty.
func (c *SourceCache) FetchAndCache(ctx context.Context, schema entity.Schema) error {
	e := c.entry(schema.Type)
	e.once.Do(func() {
		rows, err := c.fetch(ctx, schema)
		e.err = err
		c.mu.Lock()
		if err == nil {
			e.rows, e.ok = rows, true
		}
		c.mu.Unlock()
	})
	return e.err
}

func (c *SourceCache) fetch(ctx context.Context, schema entity.Schema) ([]entity.RawRow, error) {
	log := composables.UseLogger(ctx).WithField("source", c.source).WithField("entity_type", schema.Type)
	started := time.Now()

	var rows []entity.RawRow
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		got, err := c.upstream.FetchRows(callCtx, schema)
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Warn("directory: fetch attempt failed")
			return err
		}
		rows = got
		return nil
	})
	recordFetch(c.source, schema.Type, err, time.Since(started))
	if err != nil {
		log.WithError(err).Error("directory: fetch failed")
		return nil, fetchError(c.source, schema.Type, err)
	}
	log.WithField("rows", len(rows)).Debug("directory: fetched")
	return rows, nil
}

// ToArray returns the cached rows in fetch order; empty when never fetched.
func (c *SourceCache) ToArray(t entity.Type) []entity.RawRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[t]
	if !ok || e.rows == nil {
		return []entity.RawRow{}
	}
	return slices.Clone(e.rows)
}

// Fetched reports whether the fetch for t ran and succeeded.
func (c *SourceCache) Fetched(t entity.Type) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[t]
	return ok && e.ok
}

func (c *SourceCache) Source() entity.Source {
	return c.source
}
