package etl

import (
	"sort"
	"strings"

	"github.com/opendatama/rejtracts/internal/normalize"
)

// TractAggregate is the census tract roll-up of its block groups
type TractAggregate struct {
	TractGeoID      string
	Town            string
	ElectricRateAvg float64
	GasRateAvg      float64
	BlockGroupCount int
}

// Aggregate groups block groups by census tract, averaging the participation
// rates. Town names are de-duplicated in order of appearance, joined with
// ", " and capitalized. The result is sorted by tract GeoID.
//
// Each input record counts once, so with the merged output of ProcessDir the
// block group count and the means are per distinct block group. Legacy outputs
// kept one row per block group per layer and counted a block group once for
// every layer it appeared in.
func Aggregate(blockGroups []BlockGroup) []TractAggregate {
	type acc struct {
		towns    []string
		seen     map[string]bool
		electric float64
		gas      float64
		count    int
	}

	byTract := make(map[string]*acc)
	for _, bg := range blockGroups {
		a, ok := byTract[bg.TractGeoID]
		if !ok {
			a = &acc{seen: make(map[string]bool)}
			byTract[bg.TractGeoID] = a
		}
		if !a.seen[bg.Town] {
			a.seen[bg.Town] = true
			a.towns = append(a.towns, bg.Town)
		}
		a.electric += bg.ElectricRate
		a.gas += bg.GasRate
		a.count++
	}

	tracts := make([]TractAggregate, 0, len(byTract))
	for id, a := range byTract {
		tracts = append(tracts, TractAggregate{
			TractGeoID:      id,
			Town:            normalize.Capitalize(strings.Join(a.towns, ", ")),
			ElectricRateAvg: a.electric / float64(a.count),
			GasRateAvg:      a.gas / float64(a.count),
			BlockGroupCount: a.count,
		})
	}
	sort.Slice(tracts, func(i, j int) bool {
		return tracts[i].TractGeoID < tracts[j].TractGeoID
	})
	return tracts
}

// Index maps tract GeoID to its aggregate
func Index(tracts []TractAggregate) map[string]TractAggregate {
	m := make(map[string]TractAggregate, len(tracts))
	for _, t := range tracts {
		m[t.TractGeoID] = t
	}
	return m
}
