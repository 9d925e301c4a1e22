package esi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"eve-hullscout/internal/logger"
)

const defaultOrderTTL = 5 * time.Minute

// orderCacheKey identifies a cached set of sell orders.
type orderCacheKey struct {
	RegionID int32
	TypeID   int32
}

type orderCacheEntry struct {
	orders  []MarketOrder
	expires time.Time
}

// OrderCache is a thread-safe in-memory cache of per-type region sell orders.
// Entries live until the ESI Expires header (or the fallback TTL) and a
// singleflight.Group collapses concurrent fetches of the same key.
type OrderCache struct {
	mu       sync.RWMutex
	entries  map[orderCacheKey]*orderCacheEntry
	group    singleflight.Group
	fallback time.Duration
	now      func() time.Time
}

// NewOrderCache creates an empty order cache. ttl is used when a response
// carries no usable Expires header.
func NewOrderCache(ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = defaultOrderTTL
	}
	return &OrderCache{
		entries:  make(map[orderCacheKey]*orderCacheEntry),
		fallback: ttl,
		now:      time.Now,
	}
}

// Get returns cached orders if present and not expired.
func (oc *OrderCache) Get(regionID, typeID int32) ([]MarketOrder, bool) {
	oc.mu.RLock()
	defer oc.mu.RUnlock()

	e, ok := oc.entries[orderCacheKey{regionID, typeID}]
	if !ok || oc.now().After(e.expires) {
		return nil, false
	}
	return e.orders, true
}

// Put stores orders until expires.
func (oc *OrderCache) Put(regionID, typeID int32, orders []MarketOrder, expires time.Time) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.entries[orderCacheKey{regionID, typeID}] = &orderCacheEntry{orders: orders, expires: expires}
}

func (oc *OrderCache) expiry(header string) time.Time {
	if header != "" {
		if t, err := time.Parse(time.RFC1123, header); err == nil && t.After(oc.now()) {
			return t
		}
	}
	return oc.now().Add(oc.fallback)
}

// FetchRegionSellOrders returns the sell orders for one type in a region,
// served from the order cache when fresh. Concurrent callers asking for the
// same region and type share a single upstream fetch.
func (c *Client) FetchRegionSellOrders(ctx context.Context, regionID, typeID int32) ([]MarketOrder, error) {
	if orders, ok := c.orderCache.Get(regionID, typeID); ok {
		return orders, nil
	}
	key := fmt.Sprintf("%d:%d", regionID, typeID)
	result, err, _ := c.orderCache.group.Do(key, func() (interface{}, error) {
		if orders, ok := c.orderCache.Get(regionID, typeID); ok {
			return orders, nil
		}
		orders, expires, err := c.fetchRegionOrdersByType(ctx, regionID, typeID, "sell")
		if err != nil {
			return nil, err
		}
		c.orderCache.Put(regionID, typeID, orders, c.orderCache.expiry(expires))
		logger.Debug("ESI", fmt.Sprintf("OrderCache MISS region=%d type=%d (%d orders)", regionID, typeID, len(orders)))
		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]MarketOrder), nil
}
