// Package refdata caches item and solar system metadata fetched from ESI.
package refdata

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"eve-hullscout/internal/esi"
	"eve-hullscout/internal/hulls"
	"eve-hullscout/internal/metrics"
)

// DefaultTTL is how long metadata stays fresh when no TTL is configured.
const DefaultTTL = 6 * time.Hour

const (
	kindItem   = "item"
	kindGroup  = "group"
	kindSystem = "system"
)

// Provider fetches metadata from the remote service. *esi.Client implements it.
type Provider interface {
	FetchType(ctx context.Context, typeID int32) (esi.TypeInfo, error)
	FetchGroup(ctx context.Context, groupID int32) (esi.GroupInfo, error)
	FetchSystem(ctx context.Context, systemID int32) (esi.SystemInfo, error)
}

// Item is an inventory type with its display category.
type Item struct {
	ID       int32
	Name     string
	GroupID  int32
	Category string // hull class for catalog hulls, else the ESI group name
}

// SystemInfo is solar system metadata.
type SystemInfo struct {
	ID       int32
	Name     string
	Security float64
}

// Cache is a TTL cache in front of a Provider. Fresh entries are served
// from memory; concurrent misses for the same key share one remote call.
// Outbound calls are rate limited by the provider.
type Cache struct {
	provider Provider
	store    *cache.Cache
	group    singleflight.Group
	ttl      time.Duration
	now      func() time.Time
}

// entry carries its own deadline so expiry follows the cache clock; the
// store's janitor only reclaims memory.
type entry struct {
	value   any
	expires time.Time
}

// New creates a cache. ttl <= 0 selects DefaultTTL.
func New(provider Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		provider: provider,
		store:    cache.New(ttl, 2*ttl),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetItem returns metadata for an inventory type.
func (c *Cache) GetItem(ctx context.Context, id int32) (Item, error) {
	v, err := c.load(ctx, kindItem, id, func() (any, error) {
		info, err := c.provider.FetchType(ctx, id)
		if err != nil {
			return nil, err
		}
		item := Item{ID: id, Name: info.Name, GroupID: info.GroupID, Category: hulls.Class(id)}
		if item.Category == "" && info.GroupID != 0 {
			g, err := c.getGroup(ctx, info.GroupID)
			if err != nil {
				return nil, err
			}
			item.Category = g.Name
		}
		return item, nil
	})
	if err != nil {
		return Item{}, err
	}
	return v.(Item), nil
}

// GetSystem returns metadata for a solar system.
func (c *Cache) GetSystem(ctx context.Context, id int32) (SystemInfo, error) {
	v, err := c.load(ctx, kindSystem, id, func() (any, error) {
		info, err := c.provider.FetchSystem(ctx, id)
		if err != nil {
			return nil, err
		}
		return SystemInfo{ID: id, Name: info.Name, Security: info.SecurityStatus}, nil
	})
	if err != nil {
		return SystemInfo{}, err
	}
	return v.(SystemInfo), nil
}

func (c *Cache) getGroup(ctx context.Context, id int32) (esi.GroupInfo, error) {
	v, err := c.load(ctx, kindGroup, id, func() (any, error) {
		return c.provider.FetchGroup(ctx, id)
	})
	if err != nil {
		return esi.GroupInfo{}, err
	}
	return v.(esi.GroupInfo), nil
}

// load serves key from the store or runs fetch through singleflight and
// stores the result. Errors are never cached.
func (c *Cache) load(ctx context.Context, kind string, id int32, fetch func() (any, error)) (any, error) {
	key := fmt.Sprintf("%s:%d", kind, id)
	if v, ok := c.get(key); ok {
		metrics.RefdataLookups.WithLabelValues(kind, metrics.OutcomeHit).Inc()
		return v, nil
	}
	metrics.RefdataLookups.WithLabelValues(kind, metrics.OutcomeMiss).Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		c.store.Set(key, entry{value: v, expires: c.now().Add(c.ttl)}, c.ttl)
		return v, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("refdata: %s %d: %w", kind, id, err)
	}
	return v, nil
}

func (c *Cache) get(key string) (any, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if !c.now().Before(e.expires) {
		c.store.Delete(key)
		return nil, false
	}
	return e.value, true
}
