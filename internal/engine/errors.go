package engine

import (
	"errors"
	"fmt"
)

// ErrAggregationDegraded is matched by errors.Is for every *AggregationDegradedError.
var ErrAggregationDegraded = errors.New("aggregation degraded")

// ErrNoBaselineSystem is returned when DealParams has no baseline system.
var ErrNoBaselineSystem = errors.New("baseline system is required")

// AggregationDegradedError is returned when too many listing fetches failed
// for the result to be trusted.
type AggregationDegradedError struct {
	Failed int
	Total  int
	Ratio  float64 // tolerated failure ratio
}

func (e *AggregationDegradedError) Error() string {
	return fmt.Sprintf("aggregation degraded: %d of %d fetches failed (tolerated ratio %.2f)", e.Failed, e.Total, e.Ratio)
}

func (e *AggregationDegradedError) Is(target error) bool {
	return target == ErrAggregationDegraded
}
