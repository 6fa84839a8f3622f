package match

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatama/rejtracts/internal/geoid"
	"github.com/opendatama/rejtracts/internal/logging"
)

func regionsFor(region string, ids ...string) map[string]string {
	m := make(map[string]string, len(ids))
	for _, id := range ids {
		m[id] = region
	}
	return m
}

func TestGroupSequential(t *testing.T) {
	regions := map[string]string{
		"25017330101": "Boston",
		"25017330102": "Boston",
		"25017330103": "Boston",
		"25017330105": "Boston",
		"25017330106": "Boston",
		"25023506205": "Old Colony",
		"25023506206": "Southeastern",
	}

	groups, err := GroupSequential([]string{
		"25023506206", "25017330103", "25017330101", "25017330105",
		"25023506205", "25017330102", "25017330106",
	}, regions)
	require.NoError(t, err)

	var got [][]string
	for _, g := range groups {
		got = append(got, g.GeoIDs)
	}
	assert.Equal(t, [][]string{
		{"25017330101", "25017330102", "25017330103"},
		{"25017330105", "25017330106"},
		{"25023506205"},
		{"25023506206"},
	}, got)
	assert.Equal(t, "Old Colony", groups[2].Region)
}

func TestGroupSequentialProperties(t *testing.T) {
	var missing []string
	regions := make(map[string]string)
	for _, suffix := range []int{1, 2, 3, 7, 8, 10, 11, 12, 40, 99} {
		for _, base := range []string{"250173301", "250173302", "250251001"} {
			id := fmt.Sprintf("%s%02d", base, suffix)
			missing = append(missing, id)
			regions[id] = "MPO-" + base[5:6]
		}
	}

	groups, err := GroupSequential(missing, regions)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, g := range groups {
		require.NotEmpty(t, g.GeoIDs)
		for i, id := range g.GeoIDs {
			seen[id]++
			assert.Equal(t, geoid.Base(g.GeoIDs[0]), geoid.Base(id))
			assert.Equal(t, g.Region, regions[id])
			if i > 0 {
				assert.Equal(t, geoid.Suffix(g.GeoIDs[i-1])+1, geoid.Suffix(id), "gap inside group %v", g.GeoIDs)
			}
		}
	}
	assert.Len(t, seen, len(missing))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}

	again, err := GroupSequential(Flatten(groups), regions)
	require.NoError(t, err)
	assert.Equal(t, groups, again)
}

func TestGroupSequentialSingleton(t *testing.T) {
	groups, err := GroupSequential([]string{"25015820207"}, regionsFor("PVPC", "25015820207"))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"25015820207"}, groups[0].GeoIDs)
}

func TestGroupSequentialUnknownGeoID(t *testing.T) {
	_, err := GroupSequential([]string{"25015820207"}, map[string]string{})
	assert.ErrorIs(t, err, geoid.ErrUnknownGeoID)
}

func TestGroupSequentialInvalidGeoID(t *testing.T) {
	_, err := GroupSequential([]string{"2501582020"}, regionsFor("PVPC", "2501582020"))
	assert.ErrorIs(t, err, geoid.ErrInvalidGeoID)
}

func TestResolveStrategies(t *testing.T) {
	engine := NewEngine(logging.Nop())

	tests := []struct {
		name string
		rep  string
		pool []string
		want Candidate
	}{
		{
			name: "strategy 1 beats pooled alternatives",
			rep:  "25017330101",
			pool: []string{"25017330100", "25017330200"},
			want: Candidate{GeoID: "25017330100", Confidence: 95, Strategy: StrategyExactBase},
		},
		{
			name: "ties broken by smallest geoid",
			rep:  "25017330105",
			pool: []string{"25017340001", "25017330100"},
			want: Candidate{GeoID: "25017330100", Confidence: 95, Strategy: StrategyExactBase},
		},
		{
			name: "neighbouring tracts outside 00-02 are ignored",
			rep:  "25015820207",
			pool: []string{"25015820203", "25015820204", "25015800000"},
			want: Candidate{GeoID: "25015800000", Confidence: 95, Strategy: StrategyExactBase},
		},
		{
			name: "suffix matches never outrank the exact base match",
			rep:  "25017330105",
			pool: []string{"25017330100"},
			want: Candidate{GeoID: "25017330100", Confidence: 95, Strategy: StrategyExactBase},
		},
		{
			name: "strategy 4 fallback with no suffix filter",
			rep:  "25017330105",
			pool: []string{"25017399907", "25017312345"},
			want: Candidate{GeoID: "25017312345", Confidence: 70, Strategy: StrategyBaseOnly},
		},
		{
			name: "no shared tract digits",
			rep:  "25017330105",
			pool: []string{"25017033010"},
			want: NoMatch(),
		},
		{
			name: "empty county pool",
			rep:  "25027731100",
			pool: nil,
			want: NoMatch(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Resolve(tt.rep, tt.pool))
		})
	}
}

func TestStrategyGenerators(t *testing.T) {
	rep := "25017330105"

	t.Run("suffix match stops at longest length", func(t *testing.T) {
		got := SuffixMatch(rep, []string{"25017330100", "25017331102", "25017339901"})
		require.Len(t, got, 1)
		assert.Equal(t, "25017330100", got[0].GeoID)
		assert.Equal(t, 80, got[0].Confidence)
		assert.Equal(t, "strategy2_suffix_match_4", got[0].Strategy)
	})

	t.Run("suffix match length three", func(t *testing.T) {
		got := SuffixMatch(rep, []string{"25017330201", "25017330999"})
		require.Len(t, got, 1)
		assert.Equal(t, 85, got[0].Confidence)
		assert.Equal(t, "strategy2_suffix_match_3", got[0].Strategy)
	})

	t.Run("suffix match length two", func(t *testing.T) {
		got := SuffixMatch(rep, []string{"25017339900", "25017339903", "25017340000"})
		require.Len(t, got, 1)
		assert.Equal(t, "25017339900", got[0].GeoID)
		assert.Equal(t, 90, got[0].Confidence)
		assert.Equal(t, "strategy2_suffix_match_2", got[0].Strategy)
	})

	t.Run("consolidation requires 00 or 01", func(t *testing.T) {
		got := ConsolidationMatch(rep, []string{"25017339901", "25017339902", "25017349900"})
		require.Len(t, got, 1)
		assert.Equal(t, "25017339901", got[0].GeoID)
		assert.Equal(t, 85, got[0].Confidence)
	})

	t.Run("partial base compares tract digits only", func(t *testing.T) {
		got := PartialBaseMatch(rep, []string{"25017330177", "25017430177"})
		require.Len(t, got, 1)
		assert.Equal(t, 60, got[0].Confidence)
		assert.Equal(t, StrategyPartialBase, got[0].Strategy)
	})
}

func TestResolvePartialBaseFallback(t *testing.T) {
	engine := NewEngineWithTiers(logging.Nop(), []Tier{{ExactBaseMatch}, {PartialBaseMatch}})
	got := engine.Resolve("25017330105", []string{"25017430177", "25017330177"})
	assert.Equal(t, Candidate{GeoID: "25017330177", Confidence: 60, Strategy: StrategyPartialBase}, got)

	got = engine.Resolve("25017330105", []string{"25017433010"})
	assert.Equal(t, NoMatch(), got)
}

func TestResolveShortSuffixOutranksConsolidation(t *testing.T) {
	engine := NewEngineWithTiers(logging.Nop(), []Tier{{SuffixMatch, ConsolidationMatch}})
	got := engine.Resolve("25017330105", []string{"25017339901", "25017339802"})
	assert.Equal(t, Candidate{GeoID: "25017339802", Confidence: 90, Strategy: "strategy2_suffix_match_2"}, got)

	// every two-character suffix match also shares the county and first tract digit
	got = NewEngine(logging.Nop()).Resolve("25017330105", []string{"25017339901", "25017339802"})
	assert.Equal(t, Candidate{GeoID: "25017339802", Confidence: 95, Strategy: StrategyExactBase}, got)
}

func TestBest(t *testing.T) {
	assert.Equal(t, NoMatch(), Best(nil))

	got := Best([]Candidate{
		{GeoID: "25017330102", Confidence: 85, Strategy: StrategyConsolidation},
		{GeoID: "25017330101", Confidence: 85, Strategy: StrategyConsolidation},
		{GeoID: "25017330100", Confidence: 80, Strategy: StrategySuffixPrefix + "4"},
	})
	assert.Equal(t, "25017330101", got.GeoID)
}

func TestReconcileSpecExample(t *testing.T) {
	engine := NewEngine(logging.Nop())

	regions := regionsFor("Boston Region", "25017330101", "25017330102", "25017330103", "25017330100", "25027731100")
	report, err := engine.Reconcile(Input{
		Regions:   regions,
		Aggregate: []string{"25017330100"},
	})
	require.NoError(t, err)

	require.Len(t, report.Groups, 2)
	first := report.Groups[0]
	assert.Equal(t, []string{"25017330101", "25017330102", "25017330103"}, first.Group.GeoIDs)
	assert.Equal(t, "25017330101", first.Group.Representative())
	assert.Equal(t, Candidate{GeoID: "25017330100", Confidence: 95, Strategy: StrategyExactBase}, first.Match)

	second := report.Groups[1]
	assert.Equal(t, []string{"25027731100"}, second.Group.GeoIDs)
	assert.Equal(t, NoMatch(), second.Match)

	assert.Equal(t, map[string]string{
		"25017330101": "25017330100",
		"25017330102": "25017330100",
		"25017330103": "25017330100",
		"25027731100": "",
	}, report.Mappings)
	assert.Equal(t, 3, report.Mapped)
	assert.Equal(t, 1, report.Unmapped)
	assert.Equal(t, map[string]int{StrategyExactBase: 1}, report.StrategyHits)
	assert.InDelta(t, 75.0, report.MappedPercent(), 1e-9)
}

func TestReconcileDeterministic(t *testing.T) {
	engine := NewEngine(logging.Nop())
	input := Input{
		Regions: regionsFor("CMRPC",
			"25027731101", "25027731102", "25027731300", "25027740001", "25027750100"),
		Aggregate: []string{"25027731100", "25027731301", "25027731302", "25027740100"},
	}

	first, err := engine.Reconcile(input)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Reconcile(input)
		require.NoError(t, err)
		assert.Equal(t, first.Groups, again.Groups)
		assert.Equal(t, first.Mappings, again.Mappings)
	}

	for _, id := range first.Missing {
		_, ok := first.Mappings[id]
		assert.True(t, ok, "missing geoid %s absent from mapping", id)
	}
}

func TestReconcileRejectsInvalidAggregate(t *testing.T) {
	_, err := NewEngine(logging.Nop()).Reconcile(Input{
		Regions:   regionsFor("X", "25027731101"),
		Aggregate: []string{"250277311"},
	})
	assert.ErrorIs(t, err, geoid.ErrInvalidGeoID)
}

func TestMappingRoundTrip(t *testing.T) {
	mappings := map[string]string{
		"25027731100": "",
		"25017330102": "25017330100",
		"25017330101": "25017330100",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMappings(&buf, mappings))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	for _, l := range lines[:3] {
		assert.True(t, strings.HasPrefix(l, "#"))
	}
	assert.Equal(t, "", lines[3])
	assert.Equal(t, []string{
		"25017330101 -> 25017330100",
		"25017330102 -> 25017330100",
		"25027731100 -> None",
	}, lines[4:])

	got, err := ReadMappings(&buf)
	require.NoError(t, err)
	assert.Equal(t, mappings, got)
}

func TestMappingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing_tracts_mapping.txt")
	require.NoError(t, WriteMappingFile(path, map[string]string{"25017330101": "25017330100"}))

	got, err := ReadMappingFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"25017330101": "25017330100"}, got)
}

func TestReadMappingsMalformed(t *testing.T) {
	_, err := ReadMappings(strings.NewReader("# header\n25017330101 25017330100\n"))
	assert.Error(t, err)
}

func TestReadMappingsInvalidGeoID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  string
	}{
		{name: "short missing", input: "2501733010 -> 25017330100\n", line: "line 1"},
		{name: "letters in target", input: "# header\n\n25017330101 -> 25017A30100\n", line: "line 3"},
		{name: "block group target", input: "25017330101 -> 250173301001\n", line: "line 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMappings(strings.NewReader(tt.input))
			require.ErrorIs(t, err, geoid.ErrInvalidGeoID)
			assert.Contains(t, err.Error(), tt.line)
		})
	}
}

func TestReadMappingsDuplicate(t *testing.T) {
	_, err := ReadMappings(strings.NewReader("25017330101 -> 25017330100\n25017330101 -> None\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
