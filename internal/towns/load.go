package towns

import (
	"github.com/opendatama/rejtracts/internal/etl"
	"github.com/opendatama/rejtracts/internal/rej"
)

// Paths locates the files read by Load
type Paths struct {
	TownsFile      string
	BlockGroupsCSV string
	TractGroupsCSV string
	JoinedCSV      string
	REJGeoJSON     string
	REJIDField     string
}

// Load reads every source of a coverage check from disk
func Load(p Paths) (Sources, error) {
	var src Sources
	var err error

	if src.Expected, err = ReadExpected(p.TownsFile); err != nil {
		return src, err
	}
	if src.BlockTowns, err = column(p.BlockGroupsCSV, "town"); err != nil {
		return src, err
	}

	tracts, err := etl.ReadTable(p.TractGroupsCSV)
	if err != nil {
		return src, err
	}
	if src.TractTowns, err = tracts.Values("town"); err != nil {
		return src, err
	}
	if src.TractGeoIDs, err = tracts.Values("census_tract_geoid"); err != nil {
		return src, err
	}

	if src.REJTowns, err = column(p.JoinedCSV, rej.PropTown); err != nil {
		return src, err
	}

	ds, err := rej.Load(p.REJGeoJSON, p.REJIDField)
	if err != nil {
		return src, err
	}
	if src.REJGeoIDs, err = ds.IDs(); err != nil {
		return src, err
	}
	return src, nil
}

func column(path, name string) ([]string, error) {
	t, err := etl.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return t.Values(name)
}
