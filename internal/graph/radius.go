package graph

import (
	"errors"
	"fmt"
)

// ErrUnknownNode is matched by errors.Is for every *UnknownNodeError.
var ErrUnknownNode = errors.New("unknown system")

// ErrNegativeRadius is returned for a negative jump bound.
var ErrNegativeRadius = errors.New("jump radius must be >= 0")

// UnknownNodeError reports a reference system missing from the universe.
// Name is set when the caller referred to the system by name.
type UnknownNodeError struct {
	SystemID int32
	Name     string
}

func (e *UnknownNodeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown system %q", e.Name)
	}
	return fmt.Sprintf("unknown system %d", e.SystemID)
}

func (e *UnknownNodeError) Is(target error) bool {
	return target == ErrUnknownNode
}

// DistanceMap maps systemID -> jumps from the origin of a Resolve call.
type DistanceMap map[int32]int

// Resolve returns every system reachable from origin within maxJumps,
// mapped to its shortest jump count. The origin is always present at 0.
func (u *Universe) Resolve(origin int32, maxJumps int) (DistanceMap, error) {
	return u.ResolveMinSecurity(origin, maxJumps, 0)
}

// ResolveMinSecurity is Resolve restricted to paths whose systems all have
// security >= minSecurity. Use minSecurity <= 0 for no filter. The origin
// itself is never filtered out.
//
// Frontiers are expanded one depth at a time, so the first distance assigned
// to a system is its shortest one, and expansion stops at maxJumps instead
// of walking the whole graph.
func (u *Universe) ResolveMinSecurity(origin int32, maxJumps int, minSecurity float64) (DistanceMap, error) {
	if !u.HasSystem(origin) {
		return nil, &UnknownNodeError{SystemID: origin}
	}
	if maxJumps < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeRadius, maxJumps)
	}

	result := DistanceMap{origin: 0}
	frontier := []int32{origin}
	for depth := 1; depth <= maxJumps && len(frontier) > 0; depth++ {
		var next []int32
		for _, current := range frontier {
			for _, neighbor := range u.Adj[current] {
				if _, visited := result[neighbor]; visited {
					continue
				}
				if !u.secureEnough(neighbor, minSecurity) {
					continue
				}
				result[neighbor] = depth
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return result, nil
}

func (u *Universe) secureEnough(id int32, minSecurity float64) bool {
	if minSecurity <= 0 {
		return true
	}
	s, ok := u.Systems[id]
	return ok && s.Security >= minSecurity
}

// RegionsInSet returns the unique region IDs for a set of systems.
func (u *Universe) RegionsInSet(systems DistanceMap) map[int32]bool {
	regions := make(map[int32]bool)
	for sysID := range systems {
		if r, ok := u.RegionOf(sysID); ok {
			regions[r] = true
		}
	}
	return regions
}
