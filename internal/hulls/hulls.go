// Package hulls is a static catalog of the ship hulls the scanner targets.
package hulls

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Hull classes.
const (
	ClassT1Battleship      = "T1 Battleship"
	ClassBlackOps          = "Black Ops"
	ClassMarauder          = "Marauder"
	ClassFactionBattleship = "Faction Battleship"
	ClassPirateBattleship  = "Pirate Battleship"
	ClassStrategicCruiser  = "Strategic Cruiser"
	ClassHeavyAssault      = "Heavy Assault Cruiser"
	ClassRecon             = "Recon Ship"
	ClassCommandShip       = "Command Ship"
)

// Selection groups accepted by IDs and ParseSelection.
const (
	GroupBattleship = "battleship"
	GroupCruiser    = "cruiser"
	GroupCommand    = "command"
	GroupAll        = "all"
)

var ErrUnknownGroup = errors.New("unknown hull group")

// Hull is one catalog entry.
type Hull struct {
	ID    int32
	Name  string
	Class string
}

var catalog = map[int32]Hull{} //nolint:gochecknoglobals

func add(class string, hulls map[int32]string) {
	for id, name := range hulls {
		catalog[id] = Hull{ID: id, Name: name, Class: class}
	}
}

func init() {
	add(ClassT1Battleship, map[int32]string{
		24692: "Abaddon", 642: "Apocalypse", 643: "Armageddon",
		638: "Raven", 24688: "Rokh", 640: "Scorpion",
		645: "Dominix", 24690: "Hyperion", 641: "Megathron",
		24694: "Maelstrom", 639: "Tempest", 644: "Typhoon",
	})
	add(ClassBlackOps, map[int32]string{
		22436: "Widow", 22428: "Redeemer", 22440: "Panther", 22430: "Sin",
	})
	add(ClassMarauder, map[int32]string{
		28665: "Vargur", 28710: "Golem", 28659: "Paladin", 28661: "Kronos",
	})
	add(ClassFactionBattleship, map[int32]string{
		32305: "Armageddon Navy Issue", 17726: "Apocalypse Navy Issue", 47466: "Praxis",
		17636: "Raven Navy Issue", 32309: "Scorpion Navy Issue",
		32307: "Dominix Navy Issue", 17728: "Megathron Navy Issue",
		32311: "Typhoon Fleet Issue", 17732: "Tempest Fleet Issue",
	})
	add(ClassPirateBattleship, map[int32]string{
		33820: "Barghest", 17920: "Bhaalgorn", 17736: "Nightmare", 17918: "Rattlesnake",
		17738: "Machariel", 17740: "Vindicator", 33472: "Nestor",
	})
	add(ClassCommandShip, map[int32]string{
		22448: "Absolution", 22474: "Damnation", 22470: "Nighthawk", 22446: "Vulture",
		22466: "Astarte", 22442: "Eos", 22468: "Claymore", 22444: "Sleipnir",
	})
	add(ClassStrategicCruiser, map[int32]string{
		29986: "Legion", 29984: "Tengu", 29988: "Proteus", 29990: "Loki",
	})
	add(ClassHeavyAssault, map[int32]string{
		12003: "Zealot", 12019: "Sacrilege", 12011: "Eagle", 11993: "Cerberus",
		12023: "Deimos", 12005: "Ishtar", 11999: "Vagabond", 12015: "Muninn",
	})
	add(ClassRecon, map[int32]string{
		11965: "Pilgrim", 20125: "Curse", 11957: "Falcon", 11959: "Rook",
		11969: "Arazu", 11971: "Lachesis", 11961: "Huginn", 11963: "Rapier",
	})
}

var groupClasses = map[string][]string{ //nolint:gochecknoglobals
	GroupBattleship: {ClassT1Battleship, ClassBlackOps, ClassMarauder, ClassFactionBattleship, ClassPirateBattleship},
	GroupCruiser:    {ClassStrategicCruiser, ClassHeavyAssault, ClassRecon},
	GroupCommand:    {ClassCommandShip},
}

// Lookup returns the catalog entry for a type id.
func Lookup(id int32) (Hull, bool) {
	h, ok := catalog[id]
	return h, ok
}

// Class returns the hull class of a type id, or "" for non-catalog types.
func Class(id int32) string {
	return catalog[id].Class
}

// IDs returns the sorted type ids of a selection group.
func IDs(group string) ([]int32, error) {
	group = strings.ToLower(strings.TrimSpace(group))
	var ids []int32
	if group == GroupAll {
		ids = lo.Keys(catalog)
	} else {
		classes, ok := groupClasses[group]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
		}
		ids = lo.FilterMap(lo.Values(catalog), func(h Hull, _ int) (int32, bool) {
			return h.ID, slices.Contains(classes, h.Class)
		})
	}
	slices.Sort(ids)
	return ids, nil
}

// ParseSelection turns a comma-separated list of group names and numeric
// type ids (e.g. "battleship,22470") into a sorted, de-duplicated id set.
// Numeric ids need not be in the catalog.
func ParseSelection(sel string) ([]int32, error) {
	var out []int32
	for _, tok := range strings.Split(sel, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if n, err := strconv.ParseInt(tok, 10, 32); err == nil {
			if n <= 0 {
				return nil, fmt.Errorf("invalid type id %d", n)
			}
			out = append(out, int32(n))
			continue
		}
		ids, err := IDs(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	out = lo.Uniq(out)
	slices.Sort(out)
	return out, nil
}
