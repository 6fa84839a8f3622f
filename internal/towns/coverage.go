package towns

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/opendatama/rejtracts/internal/geoid"
	"github.com/opendatama/rejtracts/internal/normalize"
)

// Sources are the town and GeoID lists compared by Compare
type Sources struct {
	Expected    []string
	BlockTowns  []string
	TractTowns  []string
	REJTowns    []string
	TractGeoIDs []string
	REJGeoIDs   []string
}

// Report lists the gaps between the town and tract sources
type Report struct {
	Expected            int
	TractTownCount      int
	MissingFromBlocks   []string
	MissingFromTracts   []string
	MissingFromREJ      []string
	TractGeoIDsNotInREJ []string
}

// townSet is a case-folded set of town names that remembers the first spelling seen
type townSet struct {
	keys  map[string]bool
	names []string
}

func newTownSet() *townSet {
	return &townSet{keys: make(map[string]bool)}
}

func (s *townSet) add(name string) {
	key := normalize.TownKey(name)
	if key == "" || s.keys[key] {
		return
	}
	s.keys[key] = true
	s.names = append(s.names, name)
}

func (s *townSet) has(name string) bool {
	return s.keys[normalize.TownKey(name)]
}

// addLabels adds every town of each multi-town label
func (s *townSet) addLabels(labels []string) {
	for _, label := range labels {
		for _, town := range normalize.SplitTowns(label) {
			s.add(normalize.TownTitle(town))
		}
	}
}

// Compare checks the expected towns against the block group and tract
// outputs, the tract towns against the joined REJ table, and the tract
// GeoIDs against the REJ GeoIDs. Town comparison is case-insensitive and
// multi-town tract labels count for each of their towns.
func Compare(src Sources) Report {
	blocks := newTownSet()
	for _, t := range src.BlockTowns {
		blocks.add(t)
	}
	tracts := newTownSet()
	tracts.addLabels(src.TractTowns)
	rej := newTownSet()
	rej.addLabels(src.REJTowns)

	report := Report{Expected: len(src.Expected), TractTownCount: len(tracts.names)}
	for _, town := range src.Expected {
		if !blocks.has(town) {
			report.MissingFromBlocks = append(report.MissingFromBlocks, town)
		}
		if !tracts.has(town) {
			report.MissingFromTracts = append(report.MissingFromTracts, town)
		}
	}
	for _, town := range tracts.names {
		if !rej.has(town) {
			report.MissingFromREJ = append(report.MissingFromREJ, town)
		}
	}

	rejIDs := make(map[string]bool, len(src.REJGeoIDs))
	for _, id := range src.REJGeoIDs {
		rejIDs[geoid.Normalize(id)] = true
	}
	seen := make(map[string]bool)
	for _, raw := range src.TractGeoIDs {
		id := geoid.Normalize(raw)
		if id == "" || rejIDs[id] || seen[id] {
			continue
		}
		seen[id] = true
		report.TractGeoIDsNotInREJ = append(report.TractGeoIDsNotInREJ, id)
	}
	sort.Strings(report.TractGeoIDsNotInREJ)

	return report
}

// ReadExpected reads a town list with one name per line. Blank lines and
// lines starting with # are ignored.
func ReadExpected(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open town list %s: %w", path, err)
	}
	defer file.Close()

	var towns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		towns = append(towns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read town list %s: %w", path, err)
	}
	return towns, nil
}
