// Package metrics holds the prometheus collectors for scan runs.
// Collectors live on a private registry so a one-shot scan can dump them to a
// node_exporter textfile without dragging in the Go runtime collectors.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hullscout"

// Outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeRetry       = "retry"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
	OutcomeHit         = "hit"
	OutcomeMiss        = "miss"
)

var (
	Registry = prometheus.NewRegistry() //nolint:gochecknoglobals

	ESIRequests = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Namespace: namespace,
		Subsystem: "esi",
		Name:      "requests_total",
		Help:      "ESI HTTP attempts by outcome.",
	}, []string{"outcome"})

	RefdataLookups = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Namespace: namespace,
		Subsystem: "refdata",
		Name:      "lookups_total",
		Help:      "Reference data cache lookups by kind and result.",
	}, []string{"kind", "result"})

	ListingFetches = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Namespace: namespace,
		Subsystem: "market",
		Name:      "fetches_total",
		Help:      "Listing fetches by source and outcome.",
	}, []string{"source", "outcome"})

	DealsFound = promauto.With(Registry).NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "deals_found_total",
		Help:      "Deals returned by completed runs.",
	})

	PairsFailed = promauto.With(Registry).NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "pairs_failed_total",
		Help:      "System/type fetches that failed during runs.",
	})
)

// WriteTextfile dumps the registry in text exposition format to path.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
