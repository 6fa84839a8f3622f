package stats

import (
	"fmt"

	"github.com/opendatama/rejtracts/internal/etl"
)

// Columns names the joined-table columns read by Analyze
type Columns struct {
	REJFlag    string
	Electric   string
	Gas        string
	Population string
	Flags      []string
}

// FlagMeans are the mean participation rates of tracts where a flag is set
type FlagMeans struct {
	Flag     string
	Electric float64
	Gas      float64
}

// Analysis compares participation between REJ and other tracts
type Analysis struct {
	Electric       TTestResult
	Gas            TTestResult
	ElectricErr    error
	GasErr         error
	FlagMeans      []FlagMeans
	MeanElectric   float64
	MeanGas        float64
	MeanPopulation float64
	Rows           int
}

// Analyze runs the REJ versus non-REJ t-tests and the per-flag means over
// the joined table. A t-test that cannot run is reported in ElectricErr or
// GasErr rather than failing the whole analysis.
func Analyze(t *etl.Table, cols Columns) (*Analysis, error) {
	rejFlag, err := floatColumn(t, cols.REJFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to read REJ flag: %w", err)
	}
	electric, err := floatColumn(t, cols.Electric)
	if err != nil {
		return nil, err
	}
	gas, err := floatColumn(t, cols.Gas)
	if err != nil {
		return nil, err
	}
	population, err := floatColumn(t, cols.Population)
	if err != nil {
		return nil, err
	}

	a := &Analysis{Rows: len(t.Rows)}
	a.Electric, a.ElectricErr = TTest(where(electric, rejFlag, 1), where(electric, rejFlag, 0))
	a.Gas, a.GasErr = TTest(where(gas, rejFlag, 1), where(gas, rejFlag, 0))

	for _, name := range cols.Flags {
		flag, err := floatColumn(t, name)
		if err != nil {
			return nil, err
		}
		a.FlagMeans = append(a.FlagMeans, FlagMeans{
			Flag:     name,
			Electric: Mean(where(electric, flag, 1)),
			Gas:      Mean(where(gas, flag, 1)),
		})
	}

	a.MeanElectric = Mean(electric)
	a.MeanGas = Mean(gas)
	a.MeanPopulation = Mean(population)
	return a, nil
}
