package rej

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/opendatama/rejtracts/internal/etl"
)

// Property names added to every feature by Join
const (
	PropTown            = "town"
	PropElectricRateAvg = "electric_participation_rate_avg"
	PropGasRateAvg      = "gas_participation_rate_avg"
	PropBlockGroupCount = "block_group_count"
)

// JoinedColumns are the properties Join adds, in table order
var JoinedColumns = []string{PropTown, PropElectricRateAvg, PropGasRateAvg, PropBlockGroupCount}

// JoinStats summarizes a join
type JoinStats struct {
	Features int
	Matched  int
	Filled   int
	Missing  int
}

// Join left-joins tract aggregates onto the features by GeoID. Features
// without a tract get null values, unless mappings names a replacement tract
// that has data, in which case its values are copied in.
func (d *Dataset) Join(tracts []etl.TractAggregate, mappings map[string]string) (JoinStats, error) {
	index := etl.Index(tracts)
	stats := JoinStats{Features: len(d.Features)}

	for i, f := range d.Features {
		id, err := d.ID(i)
		if err != nil {
			return stats, err
		}

		t, ok := index[id]
		switch {
		case ok:
			stats.Matched++
		case mappings[id] != "":
			t, ok = index[mappings[id]]
			if ok {
				stats.Filled++
			} else {
				stats.Missing++
			}
		default:
			stats.Missing++
		}

		if !ok {
			for _, col := range JoinedColumns {
				f.Properties[col] = nil
			}
			continue
		}
		f.Properties[PropTown] = t.Town
		f.Properties[PropElectricRateAvg] = t.ElectricRateAvg
		f.Properties[PropGasRateAvg] = t.GasRateAvg
		f.Properties[PropBlockGroupCount] = t.BlockGroupCount
	}
	return stats, nil
}

// TableColumns returns the REJ property names sorted, followed by the joined columns
func (d *Dataset) TableColumns() []string {
	joined := make(map[string]bool, len(JoinedColumns))
	for _, c := range JoinedColumns {
		joined[c] = true
	}
	var cols []string
	for _, c := range d.Columns() {
		if !joined[c] {
			cols = append(cols, c)
		}
	}
	return append(cols, JoinedColumns...)
}

// WriteTableCSV writes feature properties without geometry
func (d *Dataset) WriteTableCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := d.writeTable(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func (d *Dataset) writeTable(out io.Writer) error {
	cols := d.TableColumns()
	w := csv.NewWriter(out)
	if err := w.Write(cols); err != nil {
		return err
	}
	for _, f := range d.Features {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = cell(f.Properties[c])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func cell(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return propertyString(v)
	}
}
