package match

import (
	"fmt"
	"sort"

	"github.com/opendatama/rejtracts/internal/geoid"
)

type bucketKey struct {
	base   string
	region string
}

// GroupSequential clusters missing GeoIDs into sequential runs.
//
// GeoIDs are bucketed by their 9-character base and region tag; buckets keep
// the order in which they first appear in the sorted input. Within a bucket a
// new group starts wherever the two-digit suffix is not exactly one greater
// than the previous suffix.
func GroupSequential(missing []string, regions map[string]string) ([]Group, error) {
	sorted := append([]string(nil), missing...)
	sort.Strings(sorted)

	var order []bucketKey
	buckets := make(map[bucketKey][]string)

	for _, id := range sorted {
		if err := geoid.Validate(id); err != nil {
			return nil, err
		}
		region, ok := regions[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no region tag", geoid.ErrUnknownGeoID, id)
		}

		key := bucketKey{base: geoid.Base(id), region: region}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], id)
	}

	var groups []Group
	for _, key := range order {
		ids := buckets[key]

		current := []string{ids[0]}
		for i := 1; i < len(ids); i++ {
			if geoid.Suffix(ids[i]) == geoid.Suffix(ids[i-1])+1 {
				current = append(current, ids[i])
				continue
			}
			groups = append(groups, Group{GeoIDs: current, Region: key.region})
			current = []string{ids[i]}
		}
		groups = append(groups, Group{GeoIDs: current, Region: key.region})
	}

	return groups, nil
}

// Flatten returns every GeoID of the groups in group order
func Flatten(groups []Group) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g.GeoIDs...)
	}
	return out
}
