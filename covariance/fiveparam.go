package covariance

import (
	"fmt"
	"math"

	"github.com/banachtech/tenor/timegrid"
)

// defaultFiveParam is the conventional starting point {a, b, c, d, decay}.
var defaultFiveParam = [5]float64{0.20, 0.05, 0.10, 0.20, 0.10}

// ExponentialForm5Param is the covariance model with volatility
// (a + b (T-t)) exp(-c (T-t)) + d and correlation exp(-decay |T_i - T_j|),
// driven by the flat parameter vector {a, b, c, d, decay}. The sub-models
// are rebuilt whenever the parameter changes.
type ExponentialForm5Param struct {
	grid    *timegrid.TimeDiscretization
	tenor   *timegrid.TimeDiscretization
	factors int

	parameter   [5]float64
	volatility  *FourParameterExponential
	correlation *ExponentialDecay
}

// NewExponentialForm5Param constructs the model. A nil parameter selects
// the conventional starting point.
func NewExponentialForm5Param(grid, tenor *timegrid.TimeDiscretization, numberOfFactors int, parameter []float64) (*ExponentialForm5Param, error) {
	p := defaultFiveParam
	if parameter != nil {
		if len(parameter) != 5 {
			return nil, fmt.Errorf("covariance: parameter length %d, want 5", len(parameter))
		}
		copy(p[:], parameter)
		p[4] = math.Max(p[4], 0.0)
	}
	m := &ExponentialForm5Param{grid: grid, tenor: tenor, factors: numberOfFactors}
	if err := m.rebuild(p); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ExponentialForm5Param) rebuild(p [5]float64) error {
	correlation, err := NewExponentialDecay(m.tenor, m.factors, p[4], false)
	if err != nil {
		return err
	}
	m.correlation = correlation
	m.volatility = NewFourParameterExponential(m.grid, m.tenor, p[0], p[1], p[2], p[3], false)
	m.parameter = p
	return nil
}

func (m *ExponentialForm5Param) NumberOfFactors() int { return m.factors }

func (m *ExponentialForm5Param) FactorLoading(timeIndex, component int, realization [][]float64) ([][]float64, error) {
	paths, err := realizationPaths(realization)
	if err != nil {
		return nil, err
	}
	volatility := m.volatility.Volatility(timeIndex, component)
	loadings := make([][]float64, m.factors)
	for factor := range loadings {
		loadings[factor] = broadcast(volatility*m.correlation.FactorLoading(timeIndex, factor, component), paths)
	}
	return loadings, nil
}

func (m *ExponentialForm5Param) FactorLoadingPseudoInverse(int, int, int, [][]float64) ([]float64, error) {
	return nil, ErrNoPseudoInverse
}

func (m *ExponentialForm5Param) Parameter() []float64 {
	parameter := make([]float64, 5)
	copy(parameter, m.parameter[:])
	return parameter
}

func (m *ExponentialForm5Param) SetParameter(parameter []float64) error {
	if len(parameter) != 5 {
		return fmt.Errorf("covariance: parameter length %d, want 5", len(parameter))
	}
	var p [5]float64
	copy(p[:], parameter)
	p[4] = math.Max(p[4], 0.0)
	if p == m.parameter {
		return nil
	}
	return m.rebuild(p)
}

// Clone shares the sub-models: they are fixed and replaced wholesale when
// the parameter changes, never mutated.
func (m *ExponentialForm5Param) Clone() ParametricModel {
	clone := *m
	return &clone
}
