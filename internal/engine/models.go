package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Baseline maps a type id to the lowest sell price at the baseline system.
type Baseline map[int32]decimal.Decimal

// DealParams holds the parameters for a deal scan.
type DealParams struct {
	Origin           int32
	MaxJumps         int
	TypeIDs          []int32
	MinPrice         decimal.Decimal
	BaselineSystem   int32
	MinRouteSecurity float64 // 0 = no security floor on the radius

	Concurrency     int           // max simultaneous listing fetches; <= 0 uses DefaultConcurrency
	MaxFailureRatio float64       // run fails when failed/total pairs exceeds this; 0 tolerates no failures
	Timeout         time.Duration // 0 = bounded by ctx only
	PartialOnCancel bool          // return deals gathered so far on cancellation
}

// Deal is a sell listing priced at or below the baseline.
type Deal struct {
	OrderID        int64           `json:"order_id"`
	TypeID         int32           `json:"type_id"`
	TypeName       string          `json:"type_name"`
	Category       string          `json:"category"`
	SystemID       int32           `json:"system_id"`
	SystemName     string          `json:"system_name"`
	LocationID     int64           `json:"-"`
	Jumps          int             `json:"jumps"`
	Price          decimal.Decimal `json:"price"`
	VolumeRemain   int32           `json:"volume_remain"`
	BaselinePrice  decimal.Decimal `json:"baseline_price"`
	Savings        decimal.Decimal `json:"savings"`
	SavingsPercent decimal.Decimal `json:"savings_percent"`
}

// PairFailure is a (system, type) fetch that failed.
type PairFailure struct {
	SystemID int32  `json:"system_id"`
	TypeID   int32  `json:"type_id"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// RunSummary describes one FindDeals run.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Origin         int32         `json:"origin"`
	BaselineSystem int32         `json:"baseline_system"`
	SystemsScanned int           `json:"systems_scanned"`
	TypesScanned   int           `json:"types_scanned"`
	PairsTotal     int           `json:"pairs_total"`
	PairsFailed    int           `json:"pairs_failed"`
	ExcludedTypes  []int32       `json:"excluded_types"` // no listing at the baseline system
	Failures       []PairFailure `json:"failures"`
	NameFailures   int           `json:"name_failures"`
	Cancelled      bool          `json:"cancelled"`
	Duration       time.Duration `json:"duration_ns"`
}

// Result is the outcome of FindDeals.
type Result struct {
	Deals    []Deal
	Baseline Baseline
	Summary  RunSummary
}
