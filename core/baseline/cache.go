package baseline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/frame"
	"github.com/allisonaustin/cluster-vis/internal/logger"
	"github.com/allisonaustin/cluster-vis/schema"
	"golang.org/x/sync/errgroup"
)

// BuildReport summarizes one GetOrBuild call.
type BuildReport struct {
	Built  int
	Reused int
	Failed []schema.SkippedFeature
}

// Cache is the in-memory view of the persisted baselines. Records are
// loaded once, extended by GetOrBuild and written back wholesale.
type Cache struct {
	store   contract.BaselineStore
	builder *Builder
	workers int
	log     *logger.Logger

	mu      sync.Mutex
	records schema.BaselineSet
	loaded  bool
}

// NewCache returns a cache backed by store that builds with builder.
func NewCache(store contract.BaselineStore, builder *Builder, opts Options) *Cache {
	return &Cache{
		store:   store,
		builder: builder,
		workers: opts.workers(),
		log:     logger.Named("cache"),
		records: schema.BaselineSet{},
	}
}

// Load reads the store into memory. Later calls are no-ops.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Cache) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	records, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load baseline cache: %w", err)
	}
	c.records = schema.NewBaselineSet(records)
	c.loaded = true
	c.log.Debug().Int("records", len(records)).Msg("baseline cache loaded")
	return nil
}

// Records returns a copy of the cached baselines.
func (c *Cache) Records() schema.BaselineSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.records)
}

// Flush writes the in-memory records to the store.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(ctx)
}

func (c *Cache) flushLocked(ctx context.Context) error {
	if err := c.store.Save(ctx, c.records.Records()); err != nil {
		return fmt.Errorf("failed to persist baseline cache: %w", err)
	}
	return nil
}

// GetOrBuild builds the baselines of table's features that are not cached
// yet and returns the full set, cached and newly built. With force every
// feature is rebuilt and the cache is replaced by the fresh records.
// Features whose build fails are left out of the set and listed in the
// report.
func (c *Cache) GetOrBuild(ctx context.Context, table *frame.Table, force bool) (schema.BaselineSet, BuildReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var report BuildReport
	if !force {
		if err := c.loadLocked(ctx); err != nil {
			return nil, report, err
		}
	}

	var missing []string
	for _, f := range table.Features {
		if _, ok := c.records[f]; force || !ok {
			missing = append(missing, f)
		}
	}
	report.Reused = len(table.Features) - len(missing)

	if len(missing) > 0 {
		c.log.Info().Int("missing", len(missing)).Int("cached", report.Reused).Bool("force", force).
			Msg("building baselines")
	}

	type result struct {
		rec schema.BaselineRecord
		err error
	}
	results := make([]result, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, feature := range missing {
		g.Go(func() error {
			rec, err := c.builder.Build(gctx, table, feature)
			results[i] = result{rec: rec, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	merged := c.records
	if force {
		merged = schema.BaselineSet{}
	} else {
		merged = maps.Clone(merged)
	}
	for i, r := range results {
		if r.err != nil {
			c.log.Warn().Err(r.err).Str("feature", missing[i]).Msg("baseline build failed")
			report.Failed = append(report.Failed, schema.SkippedFeature{
				Feature: missing[i],
				Phase:   schema.BaselinePhase,
				Reason:  r.err.Error(),
			})
			continue
		}
		merged[r.rec.Feature] = r.rec
		report.Built++
	}

	if report.Built > 0 || force {
		c.records = merged
		c.loaded = true
		if err := c.flushLocked(ctx); err != nil {
			return nil, report, err
		}
	}

	return maps.Clone(c.records), report, nil
}

// Remove drops features from the in-memory records and returns how many
// of them were cached. The store is untouched until Flush.
func (c *Cache) Remove(features ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, f := range features {
		if _, ok := c.records[f]; ok {
			delete(c.records, f)
			removed++
		}
	}
	return removed
}

// Features returns the cached feature names in sorted order.
func (c *Cache) Features() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.records))
}
