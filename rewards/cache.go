package rewards

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Dosada05/courtside/models"
)

// CatalogSource is the read-only venue/reward configuration store.
type CatalogSource interface {
	ListByVenueContext(ctx context.Context, venue models.VenueContext) ([]models.RewardDefinition, error)
}

type cacheEntry struct {
	catalog  []models.RewardDefinition
	loadedAt time.Time
}

// CatalogCache keeps each venue catalog for ttl and collapses concurrent loads.
type CatalogCache struct {
	source CatalogSource
	ttl    time.Duration
	now    func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[models.VenueContext]cacheEntry
}

func NewCatalogCache(source CatalogSource, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[models.VenueContext]cacheEntry),
	}
}

func (c *CatalogCache) Catalog(ctx context.Context, venue models.VenueContext) ([]models.RewardDefinition, error) {
	c.mu.RLock()
	entry, ok := c.entries[venue]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.loadedAt) < c.ttl {
		return entry.catalog, nil
	}

	v, err, _ := c.group.Do(string(venue), func() (interface{}, error) {
		catalog, err := c.source.ListByVenueContext(ctx, venue)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[venue] = cacheEntry{catalog: catalog, loadedAt: c.now()}
		c.mu.Unlock()
		return catalog, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load reward catalog for %s: %w", venue, err)
	}
	return v.([]models.RewardDefinition), nil
}
