package match

import "sort"

// Best picks the highest-confidence candidate, breaking ties with the
// lexicographically smallest GeoID. An empty slice yields NoMatch.
func Best(candidates []Candidate) Candidate {
	if len(candidates) == 0 {
		return NoMatch()
	}

	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].GeoID < ranked[j].GeoID
	})
	return ranked[0]
}
