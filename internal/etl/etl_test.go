package etl

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatama/rejtracts/internal/geoid"
	"github.com/opendatama/rejtracts/internal/logging"
)

const electricLayer = "Electric Program Participation and Population Overview"
const gasLayer = "Gas Program Participation and Population Overview"

func placemark(bgID, town, key, rate string) string {
	return `<Placemark><name>` + bgID + `</name><description><![CDATA[<table>
<tr><td>Block Group ID (Text)</td><td>15000US` + bgID + `</td></tr>
<tr><td>Town</td><td>` + town + `</td></tr>
<tr><td>` + key + `</td><td>` + rate + `</td></tr>
</table>]]></description></Placemark>`
}

func writeKML(t *testing.T, dir, name string, folders map[string][]string) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><kml xmlns="http://www.opengis.net/kml/2.2"><Document><name>` + name + `</name>`)
	for folder, placemarks := range folders {
		sb.WriteString(`<Folder><name>` + folder + `</name>`)
		for _, pm := range placemarks {
			sb.WriteString(pm)
		}
		sb.WriteString(`</Folder>`)
	}
	sb.WriteString(`</Document></kml>`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".kml"), []byte(sb.String()), 0o644))
}

func TestProcessDirMergesLayers(t *testing.T) {
	dir := t.TempDir()
	writeKML(t, dir, "Abington", map[string][]string{
		electricLayer: {
			placemark("250235201001", "ABINGTON", KeyElectricRate, "40"),
			placemark("250235201002", "ABINGTON", KeyElectricRate, "not a number"),
		},
		gasLayer: {
			placemark("250235201001", "ABINGTON", KeyGasRate, "20"),
		},
	})
	writeKML(t, dir, "Avon", map[string][]string{
		electricLayer: {placemark("250215601001", "AVON", KeyElectricRate, "10.5")},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Worthington.kml"), []byte("<kml><Document>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	pipeline := NewPipeline([]string{electricLayer, gasLayer}, logging.Nop())
	blockGroups, stats, err := pipeline.ProcessDir(dir)
	require.NoError(t, err)

	assert.Equal(t, []BlockGroup{
		{BlockGroupGeoID: "250235201001", TractGeoID: "25023520100", Town: "ABINGTON", ElectricRate: 40, GasRate: 20},
		{BlockGroupGeoID: "250235201002", TractGeoID: "25023520100", Town: "ABINGTON"},
		{BlockGroupGeoID: "250215601001", TractGeoID: "25021560100", Town: "AVON", ElectricRate: 10.5},
	}, blockGroups)

	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 1, stats.FailedFiles)
	assert.Equal(t, 1, stats.EmptyLayers)
	assert.Equal(t, 1, stats.DuplicateRows)
	assert.Equal(t, 3, stats.BlockGroups)

	abington := Index(Aggregate(blockGroups))["25023520100"]
	assert.Equal(t, 2, abington.BlockGroupCount)
	assert.Equal(t, 20.0, abington.ElectricRateAvg)
	assert.Equal(t, 10.0, abington.GasRateAvg)
}

func TestProcessDirMissing(t *testing.T) {
	_, _, err := NewPipeline(nil, logging.Nop()).ProcessDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestAggregate(t *testing.T) {
	tracts := Aggregate([]BlockGroup{
		{BlockGroupGeoID: "250039201001", TractGeoID: "25003920100", Town: "SAVOY", ElectricRate: 10, GasRate: 0},
		{BlockGroupGeoID: "250039201002", TractGeoID: "25003920100", Town: "FLORIDA", ElectricRate: 20, GasRate: 4},
		{BlockGroupGeoID: "250039201003", TractGeoID: "25003920100", Town: "SAVOY", ElectricRate: 30, GasRate: 2},
		{BlockGroupGeoID: "250010101001", TractGeoID: "25001010100", Town: "PROVINCETOWN", ElectricRate: 5, GasRate: 5},
	})

	assert.Equal(t, []TractAggregate{
		{TractGeoID: "25001010100", Town: "Provincetown", ElectricRateAvg: 5, GasRateAvg: 5, BlockGroupCount: 1},
		{TractGeoID: "25003920100", Town: "Savoy, florida", ElectricRateAvg: 20, GasRateAvg: 2, BlockGroupCount: 3},
	}, tracts)

	idx := Index(tracts)
	assert.Equal(t, 3, idx["25003920100"].BlockGroupCount)
}

func TestTractsCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tracts := []TractAggregate{
		{TractGeoID: "25001010100", Town: "Provincetown", ElectricRateAvg: 5.25, GasRateAvg: 0, BlockGroupCount: 1},
		{TractGeoID: "25003920100", Town: "Savoy, florida", ElectricRateAvg: 20, GasRateAvg: 2, BlockGroupCount: 3},
	}

	path := filepath.Join(dir, "masssave_tract_groups.csv")
	require.NoError(t, WriteTractsCSV(path, tracts))

	got, err := ReadTracts(path)
	require.NoError(t, err)
	assert.Equal(t, tracts, got)

	table, err := ReadTable(path)
	require.NoError(t, err)
	ids, err := table.Values("census_tract_geoid")
	require.NoError(t, err)
	assert.Equal(t, []string{"25001010100", "25003920100"}, ids)

	_, err = table.Values("GeoID")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestWriteBlockGroupsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masssave_block_groups.csv")
	require.NoError(t, WriteBlockGroupsCSV(path, []BlockGroup{
		{BlockGroupGeoID: "250235201001", TractGeoID: "25023520100", Town: "ABINGTON", ElectricRate: 40, GasRate: 20.5},
	}))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"block_group_geoid,census_tract_geoid,town,electric_participation_rate,gas_participation_rate\n"+
			"250235201001,25023520100,ABINGTON,40,20.5\n",
		string(body))
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable(strings.NewReader("\ufeffGeoID,town\n25001010100,Provincetown\n25003920100\n"))
	require.NoError(t, err)

	towns, err := table.Values("town")
	require.NoError(t, err)
	assert.Equal(t, []string{"Provincetown", ""}, towns)

	ids, err := table.Values("GeoID")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestReadTractsBadNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracts.csv")
	body := "census_tract_geoid,town,electric_participation_rate_avg,gas_participation_rate_avg,block_group_count\n" +
		"25001010100,Provincetown,abc,1,1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := ReadTracts(path)
	assert.Error(t, err)
}

func TestReadGeoIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracts.csv")
	require.NoError(t, os.WriteFile(path, []byte("census_tract_geoid,town\n25017330100.0,Cambridge\n25001010100,Provincetown\n"), 0o644))

	ids, err := ReadGeoIDs(path, "census_tract_geoid")
	require.NoError(t, err)
	assert.Equal(t, []string{"25017330100", "25001010100"}, ids)

	_, err = ReadGeoIDs(path, "GeoID")
	assert.ErrorIs(t, err, ErrMissingColumn)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("census_tract_geoid\n2501733\n"), 0o644))
	_, err = ReadGeoIDs(bad, "census_tract_geoid")
	assert.ErrorIs(t, err, geoid.ErrInvalidGeoID)
	assert.Contains(t, err.Error(), "row 2")
}

func TestWriteCSVReportsWriteErrors(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}

	err := WriteTractsCSV("/dev/full", nil)
	require.ErrorIs(t, err, syscall.ENOSPC)
	assert.Contains(t, err.Error(), "failed to write /dev/full")
}
