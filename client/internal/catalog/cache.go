package catalog

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL = 60 * time.Minute

	slotKey = "catalog"
)

// Fetcher produces a fresh catalog.
type Fetcher interface {
	FetchCatalog(ctx context.Context, releasesOnly bool) (Catalog, error)
}

type snapshot struct {
	catalog      Catalog
	releasesOnly bool
}

// Cache keeps a single catalog snapshot for a fixed TTL. Concurrent refreshes of the
// same mode share one remote fetch. A failed refresh stores nothing.
//
// Expiry is tracked by go-cache against the wall clock.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	store   *gocache.Cache
	group   singleflight.Group
}

func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		store:   gocache.New(ttl, 0),
	}
}

// GetCatalog returns the cached snapshot while it is fresh and refreshes it otherwise.
// A releases-only snapshot does not satisfy a full request. Every caller gets its own
// copy of the entries. Cancelling ctx only abandons the wait of this caller, a shared
// fetch keeps running for the others.
func (c *Cache) GetCatalog(ctx context.Context, releasesOnly bool) (Catalog, error) {
	if cached, ok := c.lookup(releasesOnly); ok {
		log.Tracef("serving cached catalog")
		return cached, nil
	}

	key := "full"
	if releasesOnly {
		key = "releases"
	}

	fetchCtx := context.WithoutCancel(ctx)
	resultCh := c.group.DoChan(key, func() (interface{}, error) {
		if cached, ok := c.lookup(releasesOnly); ok {
			return cached, nil
		}

		fresh, err := c.fetcher.FetchCatalog(fetchCtx, releasesOnly)
		if err != nil {
			return nil, err
		}
		c.store.Set(slotKey, snapshot{catalog: fresh.clone(), releasesOnly: releasesOnly}, c.ttl)
		log.Debugf("cached catalog with %d entries for %v", len(fresh), c.ttl)
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Catalog).clone(), nil
	}
}

// Expiry returns when the current snapshot expires.
func (c *Cache) Expiry() (time.Time, bool) {
	_, expiry, found := c.store.GetWithExpiration(slotKey)
	return expiry, found
}

// Invalidate drops the snapshot so the next call fetches again.
func (c *Cache) Invalidate() {
	c.store.Delete(slotKey)
}

func (c *Cache) lookup(releasesOnly bool) (Catalog, bool) {
	item, found := c.store.Get(slotKey)
	if !found {
		return nil, false
	}
	snap := item.(snapshot)

	switch {
	case snap.releasesOnly && !releasesOnly:
		return nil, false
	case !snap.releasesOnly && releasesOnly:
		return snap.catalog.Releases().clone(), true
	default:
		return snap.catalog.clone(), true
	}
}
