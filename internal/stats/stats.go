package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/opendatama/rejtracts/internal/etl"
	"github.com/opendatama/rejtracts/internal/normalize"
)

// ErrTooFewSamples is returned when a group has fewer than two usable values
var ErrTooFewSamples = errors.New("too few samples for t-test")

// TTestResult is a two-sample Student t-test outcome
type TTestResult struct {
	T     float64
	P     float64
	DF    float64
	N1    int
	N2    int
	Mean1 float64
	Mean2 float64
}

// TTest runs an equal-variance two-sample t-test. NaN values are omitted.
func TTest(a, b []float64) (TTestResult, error) {
	a, b = dropNaN(a), dropNaN(b)
	res := TTestResult{N1: len(a), N2: len(b)}
	if len(a) < 2 || len(b) < 2 {
		return res, fmt.Errorf("%w: n1=%d n2=%d", ErrTooFewSamples, len(a), len(b))
	}

	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	n1, n2 := float64(len(a)), float64(len(b))

	res.Mean1, res.Mean2 = m1, m2
	res.DF = n1 + n2 - 2
	pooled := ((n1-1)*v1 + (n2-1)*v2) / res.DF
	se := math.Sqrt(pooled * (1/n1 + 1/n2))
	if se == 0 {
		res.T = math.NaN()
		res.P = math.NaN()
		return res, nil
	}

	res.T = (m1 - m2) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DF}
	res.P = 2 * dist.CDF(-math.Abs(res.T))
	return res, nil
}

// Mean returns the mean of the non-NaN values, NaN when there are none
func Mean(values []float64) float64 {
	values = dropNaN(values)
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// floatColumn reads a numeric column, mapping blank or invalid cells to NaN
func floatColumn(t *etl.Table, name string) ([]float64, error) {
	raw, err := t.Values(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, s := range raw {
		v, ok := normalize.ParseFloat(s)
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, nil
}

// where returns values[i] for each row whose flag equals want
func where(values, flags []float64, want float64) []float64 {
	var out []float64
	for i, f := range flags {
		if f == want {
			out = append(out, values[i])
		}
	}
	return out
}
