package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"eve-hullscout/internal/esi"
	"eve-hullscout/internal/graph"
	"eve-hullscout/internal/hulls"
	"eve-hullscout/internal/logger"
	"eve-hullscout/internal/market"
	"eve-hullscout/internal/metrics"
	"eve-hullscout/internal/refdata"
)

// DefaultConcurrency bounds simultaneous listing fetches when DealParams
// leaves Concurrency unset.
const DefaultConcurrency = 8

var hundred = decimal.NewFromInt(100) //nolint:gochecknoglobals

// Topology is the part of the universe graph the finder needs.
// *graph.Universe implements it.
type Topology interface {
	ResolveMinSecurity(origin int32, maxJumps int, minSecurity float64) (graph.DistanceMap, error)
	SystemName(id int32) string
}

// Names resolves item metadata. *refdata.Cache implements it.
type Names interface {
	GetItem(ctx context.Context, id int32) (refdata.Item, error)
}

// Finder runs deal scans against a listing source.
type Finder struct {
	topo   Topology
	source market.Source
	names  Names
}

// NewFinder creates a Finder. names may be nil, in which case deals carry
// placeholder type names.
func NewFinder(topo Topology, source market.Source, names Names) *Finder {
	return &Finder{topo: topo, source: source, names: names}
}

type pair struct {
	systemID int32
	typeID   int32
}

type fetched struct {
	pair
	listings []market.Listing
	err      error
}

// FindDeals finds sell listings within p.MaxJumps of p.Origin priced
// between p.MinPrice and the baseline price of their type, sorted best
// first. progress may be nil.
func (f *Finder) FindDeals(ctx context.Context, p DealParams, progress func(string)) (*Result, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if p.BaselineSystem == 0 {
		return nil, ErrNoBaselineSystem
	}
	if p.MinPrice.IsNegative() {
		return nil, fmt.Errorf("min price must be >= 0, got %s", p.MinPrice)
	}
	if p.Concurrency <= 0 {
		p.Concurrency = DefaultConcurrency
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	start := time.Now()
	res := &Result{
		Deals:    []Deal{},
		Baseline: Baseline{},
		Summary: RunSummary{
			RunID:          xid.New().String(),
			Origin:         p.Origin,
			BaselineSystem: p.BaselineSystem,
		},
	}
	sum := &res.Summary

	progress("Finding systems within radius...")
	dist, err := f.topo.ResolveMinSecurity(p.Origin, p.MaxJumps, p.MinRouteSecurity)
	if err != nil {
		return nil, err
	}
	// Listings at the baseline system define the baseline, they are never deals.
	systems := lo.Without(lo.Keys(dist), p.BaselineSystem)
	slices.Sort(systems)
	types := lo.Uniq(p.TypeIDs)
	slices.Sort(types)
	sum.SystemsScanned = len(systems)

	progress(fmt.Sprintf("Fetching baseline prices for %d types...", len(types)))
	baselinePairs := lo.Map(types, func(t int32, _ int) pair { return pair{systemID: p.BaselineSystem, typeID: t} })
	fetchedBase, err := f.fetchAll(ctx, baselinePairs, p.Concurrency)
	for _, r := range fetchedBase {
		if r.err != nil {
			if !stoppedBy(r.err) {
				f.recordFailure(sum, r)
			}
			continue
		}
		if low, ok := lowestSell(r.listings, r.typeID, r.systemID); ok {
			res.Baseline[r.typeID] = low
		}
	}
	if err != nil {
		return f.cancelled(res, p, start, err)
	}
	scanTypes, excluded := lo.FilterReject(types, func(t int32, _ int) bool { _, ok := res.Baseline[t]; return ok })
	sum.ExcludedTypes = excluded
	if len(excluded) > 0 {
		logger.Info("ENGINE", fmt.Sprintf("%d types have no baseline at %s, excluded", len(excluded), f.topo.SystemName(p.BaselineSystem)))
	}
	sum.TypesScanned = len(scanTypes)
	pairs := make([]pair, 0, len(systems)*len(scanTypes))
	for _, s := range systems {
		for _, t := range scanTypes {
			pairs = append(pairs, pair{systemID: s, typeID: t})
		}
	}
	sum.PairsTotal = len(baselinePairs) + len(pairs)

	progress(fmt.Sprintf("Fetching listings for %d systems x %d types...", len(systems), len(scanTypes)))
	results, fetchErr := f.fetchAll(ctx, pairs, p.Concurrency)
	var listings []market.Listing
	for _, r := range results {
		if r.err != nil {
			if !stoppedBy(r.err) {
				f.recordFailure(sum, r)
			}
			continue
		}
		listings = append(listings, r.listings...)
	}
	if fetchErr != nil {
		res.Deals = BuildDeals(dist, res.Baseline, listings, p.MinPrice)
		f.enrich(ctx, res)
		return f.cancelled(res, p, start, fetchErr)
	}

	metrics.PairsFailed.Add(float64(sum.PairsFailed))
	if sum.PairsFailed > 0 {
		ratio := float64(sum.PairsFailed) / float64(sum.PairsTotal)
		if ratio > p.MaxFailureRatio {
			return nil, &AggregationDegradedError{Failed: sum.PairsFailed, Total: sum.PairsTotal, Ratio: p.MaxFailureRatio}
		}
		logger.Warn("ENGINE", fmt.Sprintf("%d of %d fetches failed, continuing", sum.PairsFailed, sum.PairsTotal))
	}

	progress("Calculating savings...")
	res.Deals = BuildDeals(dist, res.Baseline, listings, p.MinPrice)
	f.enrich(ctx, res)
	sum.Duration = time.Since(start)
	metrics.DealsFound.Add(float64(len(res.Deals)))
	logger.Success("ENGINE", fmt.Sprintf("Run %s: %d deals from %d systems x %d types in %s",
		sum.RunID, len(res.Deals), sum.SystemsScanned, sum.TypesScanned, sum.Duration.Round(time.Millisecond)))
	return res, nil
}

func (f *Finder) cancelled(res *Result, p DealParams, start time.Time, err error) (*Result, error) {
	res.Summary.Cancelled = true
	res.Summary.Duration = time.Since(start)
	metrics.PairsFailed.Add(float64(res.Summary.PairsFailed))
	logger.Warn("ENGINE", fmt.Sprintf("Run %s cancelled: %v", res.Summary.RunID, err))
	if !p.PartialOnCancel {
		return nil, err
	}
	return res, err
}

func (f *Finder) recordFailure(sum *RunSummary, r fetched) {
	sum.PairsFailed++
	sum.Failures = append(sum.Failures, PairFailure{
		SystemID: r.systemID,
		TypeID:   r.typeID,
		Reason:   r.err.Error(),
		Err:      r.err,
	})
	logger.Warn("ENGINE", fmt.Sprintf("fetch system=%s type=%d failed: %v", f.topo.SystemName(r.systemID), r.typeID, r.err))
}

// fetchAll fetches listings for every pair with at most limit fetches in
// flight. On cancellation it stops scheduling, returns immediately with the
// results completed so far and ctx.Err(); fetches still in flight are
// discarded when they finish.
func (f *Finder) fetchAll(ctx context.Context, pairs []pair, limit int) ([]fetched, error) {
	var (
		mu      sync.Mutex
		sealed  bool
		results = make([]fetched, 0, len(pairs))
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(limit)
		for _, pr := range pairs {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				listings, err := f.source.FetchSellListings(ctx, pr.typeID, pr.systemID)
				mu.Lock()
				defer mu.Unlock()
				if !sealed {
					results = append(results, fetched{pair: pr, listings: listings, err: err})
				}
				return nil
			})
		}
		g.Wait() //nolint:errcheck
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	sealed = true
	out := results
	mu.Unlock()

	if err := ctx.Err(); err != nil {
		return out, err
	}
	// A fetch may give up on the run deadline before ctx itself expires.
	for _, r := range out {
		if r.err != nil && stoppedBy(r.err) {
			return out, r.err
		}
	}
	slices.SortFunc(out, func(a, b fetched) int {
		if a.systemID != b.systemID {
			return int(a.systemID) - int(b.systemID)
		}
		return int(a.typeID) - int(b.typeID)
	})
	return out, nil
}

// stoppedBy reports whether err is the run's own cancellation or deadline
// surfacing through a fetch. Remote timeouts that exhausted their retries
// are source failures.
func stoppedBy(err error) bool {
	if errors.Is(err, esi.ErrRemoteUnavailable) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func lowestSell(listings []market.Listing, typeID, systemID int32) (decimal.Decimal, bool) {
	var low decimal.Decimal
	found := false
	for _, l := range listings {
		if l.IsBuyOrder || l.TypeID != typeID || l.SystemID != systemID {
			continue
		}
		if !found || l.Price.LessThan(low) {
			low = l.Price
			found = true
		}
	}
	return low, found
}

// BuildDeals turns listings into sorted deals. A listing qualifies when it is
// a sell order in a system of dist, its type has a baseline, and
// minPrice <= price <= baseline. Duplicate order ids are kept once.
// Name fields are left empty.
func BuildDeals(dist graph.DistanceMap, baseline Baseline, listings []market.Listing, minPrice decimal.Decimal) []Deal {
	deals := []Deal{}
	seen := make(map[int64]bool, len(listings))
	for _, l := range listings {
		if l.IsBuyOrder || seen[l.OrderID] {
			continue
		}
		jumps, ok := dist[l.SystemID]
		if !ok {
			continue
		}
		base, ok := baseline[l.TypeID]
		if !ok || l.Price.LessThan(minPrice) || l.Price.GreaterThan(base) {
			continue
		}
		seen[l.OrderID] = true

		savings := base.Sub(l.Price)
		pct := decimal.Zero
		if base.IsPositive() {
			pct = savings.Mul(hundred).Div(base)
		}
		deals = append(deals, Deal{
			OrderID:        l.OrderID,
			TypeID:         l.TypeID,
			SystemID:       l.SystemID,
			LocationID:     l.LocationID,
			Jumps:          jumps,
			Price:          l.Price,
			VolumeRemain:   l.VolumeRemain,
			BaselinePrice:  base,
			Savings:        savings,
			SavingsPercent: pct,
		})
	}
	SortDeals(deals)
	return deals
}

// SortDeals orders deals by savings percent, then absolute savings
// (both descending), then jumps, price and order id (ascending).
func SortDeals(deals []Deal) {
	slices.SortFunc(deals, func(a, b Deal) int {
		if c := b.SavingsPercent.Cmp(a.SavingsPercent); c != 0 {
			return c
		}
		if c := b.Savings.Cmp(a.Savings); c != 0 {
			return c
		}
		if a.Jumps != b.Jumps {
			return a.Jumps - b.Jumps
		}
		if c := a.Price.Cmp(b.Price); c != 0 {
			return c
		}
		switch {
		case a.OrderID < b.OrderID:
			return -1
		case a.OrderID > b.OrderID:
			return 1
		}
		return 0
	})
}

// enrich fills display names. Name lookups never drop a deal: a failed
// lookup falls back to the hull catalog name, or "Type N", and is counted in
// the summary.
func (f *Finder) enrich(ctx context.Context, res *Result) {
	items := make(map[int32]refdata.Item)
	for _, id := range lo.Uniq(lo.Map(res.Deals, func(d Deal, _ int) int32 { return d.TypeID })) {
		item := refdata.Item{ID: id, Name: "Type " + strconv.Itoa(int(id))}
		if h, ok := hulls.Lookup(id); ok {
			item.Name, item.Category = h.Name, h.Class
		}
		if f.names != nil {
			got, err := f.names.GetItem(ctx, id)
			if err != nil {
				res.Summary.NameFailures++
				logger.Warn("ENGINE", fmt.Sprintf("name lookup for type %d failed: %v", id, err))
			} else {
				item = got
			}
		}
		items[id] = item
	}
	for i := range res.Deals {
		d := &res.Deals[i]
		item := items[d.TypeID]
		d.TypeName = item.Name
		d.Category = item.Category
		d.SystemName = f.topo.SystemName(d.SystemID)
	}
}
