package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"eve-hullscout/internal/config"
	"eve-hullscout/internal/esi"
	"eve-hullscout/internal/graph"
	"eve-hullscout/internal/logger"
	"eve-hullscout/internal/market"
	"eve-hullscout/internal/sde"
	"eve-hullscout/internal/snapshot"
)

func (a *app) loadUniverse(ctx context.Context) (*sde.Data, error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	data, err := sde.Load(ctx, a.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Success("SDE", fmt.Sprintf("%d systems, %d regions", len(data.Universe.Systems), len(data.Regions)))
	return data, nil
}

// regionSummary names the regions a scan radius touches.
func regionSummary(data *sde.Data, dist graph.DistanceMap) string {
	ids := lo.Keys(data.Universe.RegionsInSet(dist))
	slices.Sort(ids)
	return strings.Join(lo.Map(ids, func(id int32, _ int) string { return data.RegionName(id) }), ", ")
}

func (a *app) esiClient() *esi.Client {
	return esi.NewClient(esi.Options{
		BaseURL:        a.cfg.ESIBaseURL,
		UserAgent:      a.cfg.UserAgent,
		MinInterval:    a.cfg.RequestSpacing,
		Burst:          1,
		MaxAttempts:    a.cfg.MaxAttempts,
		BaseDelay:      a.cfg.RetryBaseDelay,
		RequestTimeout: a.cfg.RequestTimeout,
		OrderCacheTTL:  a.cfg.OrderCacheTTL,
	})
}

func (a *app) openSnapshot() (*snapshot.Store, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.SnapshotDB), 0o755); err != nil {
		return nil, err
	}
	return snapshot.Open(a.cfg.SnapshotDB, a.cfg.SnapshotMaxAge)
}

// listingSource builds the configured source. The returned func releases
// the snapshot store, if one was opened.
func (a *app) listingSource(u *graph.Universe, client *esi.Client) (market.Source, func(), error) {
	noop := func() {}
	live := market.NewLiveSource(client, u)

	switch a.cfg.Source {
	case config.SourceLive:
		return live, noop, nil
	case config.SourceSnapshot:
		store, err := a.openSnapshot()
		if err != nil {
			return nil, noop, err
		}
		return market.NewSnapshotSource(store), func() { store.Close() }, nil
	default:
		store, err := a.openSnapshot()
		if err != nil {
			logger.Warn("SNAPSHOT", fmt.Sprintf("Open failed, using live ESI: %v", err))
			return &market.FallbackSource{Primary: market.NewSnapshotSource(nil), Secondary: live}, noop, nil
		}
		return &market.FallbackSource{Primary: market.NewSnapshotSource(store), Secondary: live}, func() { store.Close() }, nil
	}
}

// resolveSystem accepts a numeric system id or a system name.
func resolveSystem(u *graph.Universe, s string) (int32, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		id := int32(n)
		if !u.HasSystem(id) {
			return 0, &graph.UnknownNodeError{SystemID: id}
		}
		return id, nil
	}
	if id, ok := u.SystemByName(s); ok {
		return id, nil
	}
	return 0, &graph.UnknownNodeError{Name: s}
}
