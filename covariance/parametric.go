package covariance

import (
	"fmt"

	"github.com/banachtech/tenor/timegrid"
)

// FromVolatilityAndCorrelation combines a volatility term structure with a
// factor correlation structure. The loading of a component on a factor is
// its volatility times its correlation factor loading, identical across
// paths. The parameter vector is the volatility parameters followed by the
// correlation parameters.
type FromVolatilityAndCorrelation struct {
	tenor       *timegrid.TimeDiscretization
	volatility  VolatilityModel
	correlation CorrelationModel
}

func NewFromVolatilityAndCorrelation(tenor *timegrid.TimeDiscretization, volatility VolatilityModel, correlation CorrelationModel) *FromVolatilityAndCorrelation {
	return &FromVolatilityAndCorrelation{tenor: tenor, volatility: volatility, correlation: correlation}
}

func (m *FromVolatilityAndCorrelation) NumberOfFactors() int {
	return m.correlation.NumberOfFactors()
}

func (m *FromVolatilityAndCorrelation) FactorLoading(timeIndex, component int, realization [][]float64) ([][]float64, error) {
	paths, err := realizationPaths(realization)
	if err != nil {
		return nil, err
	}
	volatility := m.volatility.Volatility(timeIndex, component)
	loadings := make([][]float64, m.correlation.NumberOfFactors())
	for factor := range loadings {
		loadings[factor] = broadcast(volatility*m.correlation.FactorLoading(timeIndex, factor, component), paths)
	}
	return loadings, nil
}

// FactorLoadingPseudoInverse inverts the loading, relying on the
// correlation factor loadings being orthogonal across components.
func (m *FromVolatilityAndCorrelation) FactorLoadingPseudoInverse(timeIndex, component, factor int, realization [][]float64) ([]float64, error) {
	paths, err := realizationPaths(realization)
	if err != nil {
		return nil, err
	}
	volatility := m.volatility.Volatility(timeIndex, component)
	if volatility == 0 {
		return nil, fmt.Errorf("covariance: component %d carries no volatility at time index %d, loading not invertible", component, timeIndex)
	}
	factorWeight := 0.0
	for c := 0; c < m.tenor.NumberOfTimeSteps(); c++ {
		loading := m.correlation.FactorLoading(timeIndex, factor, c)
		factorWeight += loading * loading
	}
	value := m.correlation.FactorLoading(timeIndex, factor, component) / (volatility * factorWeight)
	return broadcast(value, paths), nil
}

func (m *FromVolatilityAndCorrelation) Parameter() []float64 {
	return concatParameters(m.volatility.Parameter(), m.correlation.Parameter())
}

func (m *FromVolatilityAndCorrelation) SetParameter(parameter []float64) error {
	parts, err := splitParameters(parameter, len(m.volatility.Parameter()), len(m.correlation.Parameter()))
	if err != nil {
		return err
	}
	if err := m.correlation.SetParameter(parts[1]); err != nil {
		return err
	}
	return m.volatility.SetParameter(parts[0])
}

func (m *FromVolatilityAndCorrelation) Clone() ParametricModel {
	clone := *m
	clone.volatility = m.volatility.Clone()
	clone.correlation = m.correlation.Clone()
	return &clone
}

func concatParameters(a, b []float64) []float64 {
	if len(a)+len(b) == 0 {
		return nil
	}
	out := make([]float64, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// splitParameters slices the flat parameter vector into consecutive parts
// of the given sizes. The parts alias the input.
func splitParameters(parameter []float64, sizes ...int) ([][]float64, error) {
	total := 0
	for _, size := range sizes {
		total += size
	}
	if len(parameter) != total {
		return nil, fmt.Errorf("covariance: parameter length %d, want %d", len(parameter), total)
	}
	parts := make([][]float64, len(sizes))
	offset := 0
	for i, size := range sizes {
		parts[i] = parameter[offset : offset+size]
		offset += size
	}
	return parts, nil
}
