package match

import (
	"fmt"

	"github.com/opendatama/rejtracts/internal/geoid"
)

// Generator proposes candidates for a representative GeoID from a pool of
// aggregate GeoIDs in the same county. Generators are pure functions.
type Generator func(rep string, pool []string) []Candidate

// Tier is an ordered set of generators whose candidates are pooled before
// ranking. A tier is only consulted when every earlier tier produced nothing.
type Tier []Generator

// DefaultTiers returns the generator cascade used for tract boundary shifts:
// strategies 1-3 are pooled, 4 and 5 are successive fallbacks.
func DefaultTiers() []Tier {
	return []Tier{
		{ExactBaseMatch, SuffixMatch, ConsolidationMatch},
		{BaseMatchOnly},
		{PartialBaseMatch},
	}
}

func endsIn(id string, suffixes ...string) bool {
	last := geoid.LastTwo(id)
	for _, s := range suffixes {
		if last == s {
			return true
		}
	}
	return false
}

func collect(pool []string, confidence int, strategy string, keep func(string) bool) []Candidate {
	var out []Candidate
	for _, g := range pool {
		if keep(g) {
			out = append(out, Candidate{GeoID: g, Confidence: confidence, Strategy: strategy})
		}
	}
	return out
}

// ExactBaseMatch matches county plus first tract digit where the aggregate
// tract ends in 00, 01 or 02.
// REJ ...01, ...02, ...03 -> MassSave ...00
func ExactBaseMatch(rep string, pool []string) []Candidate {
	base := rep[:6]
	return collect(pool, 95, StrategyExactBase, func(g string) bool {
		return g[:6] == base && endsIn(g, "00", "01", "02")
	})
}

// SuffixMatch compares progressively shorter leading slices of the tract code
// (4, 3 then 2 characters) and stops at the first length that matches anything.
func SuffixMatch(rep string, pool []string) []Candidate {
	for _, n := range []int{4, 3, 2} {
		tract := rep[5 : 5+n]
		confidence := 90 - (n-2)*5
		strategy := fmt.Sprintf("%s%d", StrategySuffixPrefix, n)

		found := collect(pool, confidence, strategy, func(g string) bool {
			return g[5:5+n] == tract && endsIn(g, "00", "01", "02")
		})
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

// ConsolidationMatch handles several REJ tracts folding into one MassSave
// tract ending in 00 or 01.
func ConsolidationMatch(rep string, pool []string) []Candidate {
	base := rep[:7]
	return collect(pool, 85, StrategyConsolidation, func(g string) bool {
		return g[:7] == base && endsIn(g, "00", "01")
	})
}

// BaseMatchOnly matches county plus first tract digit with no suffix filter
func BaseMatchOnly(rep string, pool []string) []Candidate {
	base := rep[:6]
	return collect(pool, 70, StrategyBaseOnly, func(g string) bool {
		return g[:6] == base
	})
}

// PartialBaseMatch matches the first four digits of the tract code
func PartialBaseMatch(rep string, pool []string) []Candidate {
	tract := rep[5:9]
	return collect(pool, 60, StrategyPartialBase, func(g string) bool {
		return g[5:9] == tract
	})
}
