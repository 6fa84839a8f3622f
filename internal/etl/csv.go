package etl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/opendatama/rejtracts/internal/geoid"
)

// ErrMissingColumn is returned when a CSV header lacks a required column
var ErrMissingColumn = errors.New("missing csv column")

var (
	blockGroupHeader = []string{
		"block_group_geoid", "census_tract_geoid", "town",
		"electric_participation_rate", "gas_participation_rate",
	}
	tractHeader = []string{
		"census_tract_geoid", "town",
		"electric_participation_rate_avg", "gas_participation_rate_avg", "block_group_count",
	}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// WriteBlockGroupsCSV saves extracted block groups for review
func WriteBlockGroupsCSV(path string, blockGroups []BlockGroup) error {
	rows := make([][]string, 0, len(blockGroups))
	for _, bg := range blockGroups {
		rows = append(rows, []string{
			bg.BlockGroupGeoID, bg.TractGeoID, bg.Town,
			formatFloat(bg.ElectricRate), formatFloat(bg.GasRate),
		})
	}
	return writeCSV(path, blockGroupHeader, rows)
}

// WriteTractsCSV saves tract aggregates
func WriteTractsCSV(path string, tracts []TractAggregate) error {
	rows := make([][]string, 0, len(tracts))
	for _, t := range tracts {
		rows = append(rows, []string{
			t.TractGeoID, t.Town,
			formatFloat(t.ElectricRateAvg), formatFloat(t.GasRateAvg),
			strconv.Itoa(t.BlockGroupCount),
		})
	}
	return writeCSV(path, tractHeader, rows)
}

// Table is a CSV file read into memory with its header
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadTable reads a whole CSV file. Rows shorter than the header are padded.
func ReadTable(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	return ParseTable(file)
}

// ParseTable reads CSV from r
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Header: header, index: make(map[string]int, len(header))}
	for i, col := range header {
		if _, dup := t.index[col]; !dup {
			t.index[col] = i
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", len(t.Rows)+2, err)
		}
		for len(record) < len(header) {
			record = append(record, "")
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// Column returns the position of a named column
func (t *Table) Column(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	return i, nil
}

// Values returns every value of a named column in row order
func (t *Table) Values(name string) ([]string, error) {
	i, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// ReadTracts loads a tract aggregate CSV written by WriteTractsCSV
func ReadTracts(path string) ([]TractAggregate, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}

	cols := make([]int, len(tractHeader))
	for i, name := range tractHeader {
		if cols[i], err = t.Column(name); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	tracts := make([]TractAggregate, 0, len(t.Rows))
	for n, row := range t.Rows {
		electric, errE := strconv.ParseFloat(row[cols[2]], 64)
		gas, errG := strconv.ParseFloat(row[cols[3]], 64)
		count, errC := strconv.Atoi(row[cols[4]])
		if err := errors.Join(errE, errG, errC); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
		}
		tracts = append(tracts, TractAggregate{
			TractGeoID:      row[cols[0]],
			Town:            row[cols[1]],
			ElectricRateAvg: electric,
			GasRateAvg:      gas,
			BlockGroupCount: count,
		})
	}
	return tracts, nil
}

// ReadGeoIDs reads one column of GeoIDs, normalizing values such as
// "25017330101.0" and rejecting anything that is not an 11-digit GeoID
func ReadGeoIDs(path, column string) ([]string, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	raw, err := t.Values(column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ids := make([]string, 0, len(raw))
	for n, v := range raw {
		id, err := geoid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
