package market_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"eve-hullscout/internal/esi"
	"eve-hullscout/internal/graph"
	"eve-hullscout/internal/market"
	"eve-hullscout/internal/snapshot"
)

type fakeFetcher struct {
	calls  atomic.Int32
	orders []esi.MarketOrder
	err    error
}

func (f *fakeFetcher) FetchRegionSellOrders(_ context.Context, regionID, typeID int32) ([]esi.MarketOrder, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []esi.MarketOrder
	for _, o := range f.orders {
		if o.RegionID == regionID {
			out = append(out, o)
		}
	}
	return out, nil
}

func universe() *graph.Universe {
	u := graph.NewUniverse()
	u.AddSystem(30002558, "Sosala", 10000043, 0.3)
	u.AddSystem(30002559, "Hati", 10000043, 0.2)
	u.AddGate(30002558, 30002559)
	return u
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLiveSource_FiltersToSystemAndSellSide(t *testing.T) {
	f := &fakeFetcher{orders: []esi.MarketOrder{
		{OrderID: 1, TypeID: 641, SystemID: 30002558, RegionID: 10000043, Price: price("180000000")},
		{OrderID: 2, TypeID: 641, SystemID: 30002559, RegionID: 10000043, Price: price("170000000")},
		{OrderID: 3, TypeID: 641, SystemID: 30002558, RegionID: 10000043, Price: price("100000000"), IsBuyOrder: true},
	}}
	src := market.NewLiveSource(f, universe())

	got, err := src.FetchSellListings(context.Background(), 641, 30002558)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.EqualValues(t, 1, got[0].OrderID)
	require.True(t, got[0].Price.Equal(price("180000000")))
}

func TestLiveSource_UnknownSystem(t *testing.T) {
	src := market.NewLiveSource(&fakeFetcher{}, universe())
	_, err := src.FetchSellListings(context.Background(), 641, 1)
	require.ErrorIs(t, err, graph.ErrUnknownNode)
}

func TestLiveSource_RemoteFailurePropagates(t *testing.T) {
	f := &fakeFetcher{err: &esi.RemoteUnavailableError{Op: "GET", Attempts: 3, Err: errors.New("503")}}
	src := market.NewLiveSource(f, universe())
	_, err := src.FetchSellListings(context.Background(), 641, 30002558)
	require.ErrorIs(t, err, esi.ErrRemoteUnavailable)
}

func openSnapshot(t *testing.T, csv string) *snapshot.Store {
	t.Helper()
	s, err := snapshot.Open(filepath.Join(t.TempDir(), "snap.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	if csv != "" {
		_, err = s.ImportCSV(context.Background(), strings.NewReader(csv), "test", time.Now())
		require.NoError(t, err)
	}
	return s
}

func TestSnapshotSource(t *testing.T) {
	store := openSnapshot(t, "order_id,type_id,system_id,price,is_buy_order,volume_remain\n"+
		"11,641,30002558,175000000.50,false,2\n"+
		"12,641,30002558,1,true,1\n")
	src := market.NewSnapshotSource(store)

	got, err := src.FetchSellListings(context.Background(), 641, 30002558)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "175000000.5", got[0].Price.String())
	require.EqualValues(t, 2, got[0].VolumeRemain)

	empty, err := src.FetchSellListings(context.Background(), 641, 30002559)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSnapshotSource_Unavailable(t *testing.T) {
	_, err := market.NewSnapshotSource(nil).FetchSellListings(context.Background(), 641, 30002558)
	require.ErrorIs(t, err, snapshot.ErrUnavailable)

	_, err = market.NewSnapshotSource(openSnapshot(t, "")).FetchSellListings(context.Background(), 641, 30002558)
	require.ErrorIs(t, err, snapshot.ErrUnavailable)
}

type stubSource struct {
	calls    atomic.Int32
	listings []market.Listing
	err      error
}

func (s *stubSource) FetchSellListings(context.Context, int32, int32) ([]market.Listing, error) {
	s.calls.Add(1)
	return s.listings, s.err
}

func TestFallbackSource(t *testing.T) {
	live := &stubSource{listings: []market.Listing{{OrderID: 9}}}

	t.Run("primary ok", func(t *testing.T) {
		primary := &stubSource{listings: []market.Listing{{OrderID: 1}}}
		fb := &market.FallbackSource{Primary: primary, Secondary: live}
		got, err := fb.FetchSellListings(context.Background(), 641, 1)
		require.NoError(t, err)
		require.EqualValues(t, 1, got[0].OrderID)
	})

	t.Run("snapshot unavailable falls back", func(t *testing.T) {
		before := live.calls.Load()
		primary := &stubSource{err: &snapshot.UnavailableError{Reason: "no snapshot imported"}}
		fb := &market.FallbackSource{Primary: primary, Secondary: live}
		for i := 0; i < 2; i++ {
			got, err := fb.FetchSellListings(context.Background(), 641, 1)
			require.NoError(t, err)
			require.EqualValues(t, 9, got[0].OrderID)
		}
		require.EqualValues(t, 2, primary.calls.Load(), "primary is consulted on every call")
		require.EqualValues(t, before+2, live.calls.Load())
	})

	t.Run("other errors are returned", func(t *testing.T) {
		before := live.calls.Load()
		boom := errors.New("disk I/O error")
		fb := &market.FallbackSource{Primary: &stubSource{err: boom}, Secondary: live}
		_, err := fb.FetchSellListings(context.Background(), 641, 1)
		require.ErrorIs(t, err, boom)
		require.Equal(t, before, live.calls.Load())
	})
}
