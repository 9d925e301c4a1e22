package graph

import (
	"strconv"
	"strings"
)

// System is a solar system node. Neighbors are kept by ID in Universe.Adj.
type System struct {
	ID       int32
	Name     string
	RegionID int32
	Security float64 // 0.0 (null) to 1.0 (highsec); highsec >= 0.45
}

// Universe holds solar systems and the stargate links between them.
// It is built once by the SDE loader and read-only afterwards, so lookups
// need no locking.
type Universe struct {
	// Systems maps systemID -> system record
	Systems map[int32]*System
	// Adj maps systemID -> list of neighboring systemIDs (undirected)
	Adj map[int32][]int32

	byName map[string]int32
}

// NewUniverse creates an empty Universe with initialized maps.
func NewUniverse() *Universe {
	return &Universe{
		Systems: make(map[int32]*System),
		Adj:     make(map[int32][]int32),
		byName:  make(map[string]int32),
	}
}

// AddSystem registers a system. Re-adding an ID replaces the record.
func (u *Universe) AddSystem(id int32, name string, regionID int32, security float64) {
	if old, ok := u.Systems[id]; ok {
		delete(u.byName, strings.ToLower(old.Name))
	}
	u.Systems[id] = &System{ID: id, Name: name, RegionID: regionID, Security: security}
	if name != "" {
		u.byName[strings.ToLower(name)] = id
	}
}

// AddGate links two systems in both directions. Duplicate gates are ignored,
// the SDE lists every stargate from both ends.
func (u *Universe) AddGate(a, b int32) {
	if a == b {
		return
	}
	u.link(a, b)
	u.link(b, a)
}

func (u *Universe) link(from, to int32) {
	for _, n := range u.Adj[from] {
		if n == to {
			return
		}
	}
	u.Adj[from] = append(u.Adj[from], to)
}

// HasSystem reports whether id is a known system.
func (u *Universe) HasSystem(id int32) bool {
	_, ok := u.Systems[id]
	return ok
}

// SystemByName resolves a system name case-insensitively.
func (u *Universe) SystemByName(name string) (int32, bool) {
	id, ok := u.byName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// SystemName returns the display name or a placeholder for unknown IDs.
func (u *Universe) SystemName(id int32) string {
	if s, ok := u.Systems[id]; ok && s.Name != "" {
		return s.Name
	}
	return "System " + strconv.FormatInt(int64(id), 10)
}

// RegionOf returns the region containing the system.
func (u *Universe) RegionOf(id int32) (int32, bool) {
	s, ok := u.Systems[id]
	if !ok || s.RegionID == 0 {
		return 0, false
	}
	return s.RegionID, true
}
