package etl

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/opendatama/rejtracts/internal/kml"
	"github.com/opendatama/rejtracts/internal/normalize"
)

// Description keys of the MassSave block group tables
const (
	KeyBlockGroupID = "Block Group ID (Text)"
	KeyTown         = "Town"
	KeyElectricRate = "Unique electric location participation rate 2013 - 2019"
	KeyGasRate      = "Unique gas location participation rate 2013 - 2019"

	blockGroupPrefix = "15000US"
	tractLength      = 11
)

// BlockGroup is one census block group extracted from a municipal KML
type BlockGroup struct {
	BlockGroupGeoID string
	TractGeoID      string
	Town            string
	ElectricRate    float64
	GasRate         float64
}

// ProcessStats counts what a pipeline run read and skipped
type ProcessStats struct {
	Files         int
	FailedFiles   int
	Layers        int
	EmptyLayers   int
	Placemarks    int
	BlockGroups   int
	DuplicateRows int
}

// Pipeline extracts block group participation data from KML files
type Pipeline struct {
	layers []string
	logger zerolog.Logger
}

// NewPipeline creates a pipeline reading the given KML layers
func NewPipeline(layers []string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{layers: layers, logger: logger}
}

// partial tracks which fields of a block group have been seen; the same
// block group is repeated in every participation layer and each layer only
// carries some of the rates.
type partial struct {
	bg          BlockGroup
	hasTown     bool
	hasElectric bool
	hasGas      bool
}

// ProcessDir reads every .kml file in dir. Unreadable files and layers are
// logged and skipped; only a missing directory is an error.
func (p *Pipeline) ProcessDir(dir string) ([]BlockGroup, ProcessStats, error) {
	var stats ProcessStats

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read kml directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".kml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var order []string
	merged := make(map[string]*partial)

	for _, name := range names {
		stats.Files++
		path := filepath.Join(dir, name)
		p.logger.Info().Str("file", name).Msg("processing kml")

		layers, err := kml.ParseFile(path, p.layers)
		if err != nil {
			stats.FailedFiles++
			p.logger.Error().Err(err).Str("file", name).Msg("could not process file")
			continue
		}

		for _, layer := range p.layers {
			placemarks := layers[layer]
			stats.Layers++
			if len(placemarks) == 0 {
				stats.EmptyLayers++
				p.logger.Warn().Str("file", name).Str("layer", layer).Msg("layer contains no data")
				continue
			}
			p.logger.Debug().Str("file", name).Str("layer", layer).Int("features", len(placemarks)).Msg("read layer")

			for _, pm := range placemarks {
				stats.Placemarks++
				row, ok := p.parsePlacemark(name, pm)
				if !ok {
					continue
				}

				existing, seen := merged[row.bg.BlockGroupGeoID]
				if !seen {
					merged[row.bg.BlockGroupGeoID] = row
					order = append(order, row.bg.BlockGroupGeoID)
					continue
				}
				stats.DuplicateRows++
				existing.merge(row)
			}
		}
	}

	blockGroups := make([]BlockGroup, 0, len(order))
	for _, id := range order {
		blockGroups = append(blockGroups, merged[id].bg)
	}
	stats.BlockGroups = len(blockGroups)

	return blockGroups, stats, nil
}

func (p *Pipeline) parsePlacemark(file string, pm kml.Placemark) (*partial, bool) {
	if !strings.Contains(pm.Description, KeyBlockGroupID) {
		return nil, false
	}

	data, err := kml.ParseDescription(pm.Description)
	if err != nil {
		p.logger.Warn().Err(err).Str("file", file).Str("placemark", pm.Name).Msg("unparsable description")
		return nil, false
	}

	raw := data[KeyBlockGroupID]
	if raw == "" {
		return nil, false
	}

	bgID := strings.ReplaceAll(raw, blockGroupPrefix, "")
	tract := bgID
	if len(tract) > tractLength {
		tract = tract[:tractLength]
	}

	row := &partial{bg: BlockGroup{BlockGroupGeoID: bgID, TractGeoID: tract}}
	if town, ok := data[KeyTown]; ok {
		row.bg.Town = town
		row.hasTown = true
	}
	if v, ok := normalize.ParseFloat(data[KeyElectricRate]); ok {
		row.bg.ElectricRate = v
		row.hasElectric = true
	}
	if v, ok := normalize.ParseFloat(data[KeyGasRate]); ok {
		row.bg.GasRate = v
		row.hasGas = true
	}
	return row, true
}

func (dst *partial) merge(src *partial) {
	if !dst.hasTown && src.hasTown {
		dst.bg.Town, dst.hasTown = src.bg.Town, true
	}
	if !dst.hasElectric && src.hasElectric {
		dst.bg.ElectricRate, dst.hasElectric = src.bg.ElectricRate, true
	}
	if !dst.hasGas && src.hasGas {
		dst.bg.GasRate, dst.hasGas = src.bg.GasRate, true
	}
}
