// Package market provides sell listings per (type, system) from either an
// indexed snapshot or live ESI queries.
package market

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"eve-hullscout/internal/esi"
	"eve-hullscout/internal/graph"
	"eve-hullscout/internal/logger"
	"eve-hullscout/internal/metrics"
	"eve-hullscout/internal/snapshot"
)

const (
	SourceSnapshot = "snapshot"
	SourceLive     = "live"
)

// Listing is one sell order.
type Listing struct {
	OrderID      int64           `json:"order_id"`
	TypeID       int32           `json:"type_id"`
	SystemID     int32           `json:"system_id"`
	LocationID   int64           `json:"location_id"`
	Price        decimal.Decimal `json:"price"`
	VolumeRemain int32           `json:"volume_remain"`
	IsBuyOrder   bool            `json:"is_buy_order"`
}

// Source returns the sell listings of a type in a system. An empty result
// is not an error.
type Source interface {
	FetchSellListings(ctx context.Context, typeID, systemID int32) ([]Listing, error)
}

func record(source string, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, snapshot.ErrUnavailable):
		outcome = metrics.OutcomeUnavailable
	case err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.ListingFetches.WithLabelValues(source, outcome).Inc()
}

// SnapshotSource reads listings from the local snapshot index.
type SnapshotSource struct {
	store *snapshot.Store
}

func NewSnapshotSource(store *snapshot.Store) *SnapshotSource {
	return &SnapshotSource{store: store}
}

func (s *SnapshotSource) FetchSellListings(ctx context.Context, typeID, systemID int32) ([]Listing, error) {
	if err := s.store.Ready(); err != nil {
		record(SourceSnapshot, err)
		return nil, err
	}
	orders, err := s.store.SellListings(ctx, typeID, systemID)
	record(SourceSnapshot, err)
	if err != nil {
		return nil, err
	}
	return lo.Map(orders, func(o snapshot.Order, _ int) Listing {
		return Listing{
			OrderID:      o.OrderID,
			TypeID:       o.TypeID,
			SystemID:     o.SystemID,
			LocationID:   o.LocationID,
			Price:        o.Price,
			VolumeRemain: o.VolumeRemain,
		}
	}), nil
}

// OrderFetcher returns region-wide sell orders for a type. *esi.Client
// implements it with a short-lived cache, so systems sharing a region cost
// one paginated query per type.
type OrderFetcher interface {
	FetchRegionSellOrders(ctx context.Context, regionID, typeID int32) ([]esi.MarketOrder, error)
}

// RegionResolver maps a system to its region. *graph.Universe implements it.
type RegionResolver interface {
	RegionOf(systemID int32) (int32, bool)
}

// LiveSource queries ESI and narrows region results to one system.
type LiveSource struct {
	orders  OrderFetcher
	regions RegionResolver
}

func NewLiveSource(orders OrderFetcher, regions RegionResolver) *LiveSource {
	return &LiveSource{orders: orders, regions: regions}
}

func (s *LiveSource) FetchSellListings(ctx context.Context, typeID, systemID int32) ([]Listing, error) {
	regionID, ok := s.regions.RegionOf(systemID)
	if !ok {
		err := &graph.UnknownNodeError{SystemID: systemID}
		record(SourceLive, err)
		return nil, err
	}
	orders, err := s.orders.FetchRegionSellOrders(ctx, regionID, typeID)
	record(SourceLive, err)
	if err != nil {
		return nil, fmt.Errorf("live listings type=%d system=%d: %w", typeID, systemID, err)
	}
	return lo.FilterMap(orders, func(o esi.MarketOrder, _ int) (Listing, bool) {
		return Listing{
			OrderID:      o.OrderID,
			TypeID:       o.TypeID,
			SystemID:     o.SystemID,
			LocationID:   o.LocationID,
			Price:        o.Price,
			VolumeRemain: o.VolumeRemain,
		}, o.SystemID == systemID && o.TypeID == typeID && !o.IsBuyOrder
	}), nil
}

// FallbackSource asks Primary first and retries a call against Secondary
// only when Primary reports snapshot.ErrUnavailable. The decision is made
// per call.
type FallbackSource struct {
	Primary   Source
	Secondary Source

	fellBack atomic.Bool
}

func (s *FallbackSource) FetchSellListings(ctx context.Context, typeID, systemID int32) ([]Listing, error) {
	listings, err := s.Primary.FetchSellListings(ctx, typeID, systemID)
	if err == nil || s.Secondary == nil || !errors.Is(err, snapshot.ErrUnavailable) {
		return listings, err
	}
	if s.fellBack.CompareAndSwap(false, true) {
		logger.Warn("MARKET", fmt.Sprintf("%v, falling back to live ESI", err))
	}
	return s.Secondary.FetchSellListings(ctx, typeID, systemID)
}
