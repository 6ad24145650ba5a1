package covariance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banachtech/tenor/timegrid"
)

// CorrelationModel is the factor correlation structure of a covariance
// model, reduced to a fixed number of driving factors.
type CorrelationModel interface {
	NumberOfFactors() int
	// FactorLoading returns the loading of the component on the factor,
	// normalized so that the loadings of a component have unit norm.
	FactorLoading(timeIndex, factor, component int) float64
	// Correlation returns the factor-reduced correlation of two components.
	Correlation(timeIndex, component1, component2 int) float64
	Parameter() []float64
	SetParameter(parameter []float64) error
	Clone() CorrelationModel
}

// ExponentialDecay is the correlation structure
//
//	rho(T_i, T_j) = exp(-decay |T_i - T_j|)
//
// reduced to numberOfFactors factors by keeping the largest eigenvalues of
// the correlation matrix. The factor matrix is rebuilt when the decay
// parameter changes; mutation must not race evaluation, calibration works
// on per-trial clones.
type ExponentialDecay struct {
	tenor         *timegrid.TimeDiscretization
	factors       int
	calibrateable bool

	decay        float64
	factorMatrix *mat.Dense // components x factors, rows of unit norm
}

// NewExponentialDecay constructs the correlation structure over the
// components of the tenor grid, one per tenor period. Negative decay is
// clamped at zero, it would produce an invalid correlation matrix.
func NewExponentialDecay(tenor *timegrid.TimeDiscretization, numberOfFactors int, decay float64, calibrateable bool) (*ExponentialDecay, error) {
	components := tenor.NumberOfTimeSteps()
	if numberOfFactors < 1 || numberOfFactors > components {
		return nil, fmt.Errorf("covariance: %d factors out of range [1,%d]", numberOfFactors, components)
	}
	m := &ExponentialDecay{
		tenor:         tenor,
		factors:       numberOfFactors,
		calibrateable: calibrateable,
	}
	if err := m.setDecay(decay); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ExponentialDecay) NumberOfFactors() int { return m.factors }

func (m *ExponentialDecay) FactorLoading(_, factor, component int) float64 {
	return m.factorMatrix.At(component, factor)
}

func (m *ExponentialDecay) Correlation(_, component1, component2 int) float64 {
	correlation := 0.0
	for factor := 0; factor < m.factors; factor++ {
		correlation += m.factorMatrix.At(component1, factor) * m.factorMatrix.At(component2, factor)
	}
	return correlation
}

func (m *ExponentialDecay) Parameter() []float64 {
	if !m.calibrateable {
		return nil
	}
	return []float64{m.decay}
}

func (m *ExponentialDecay) SetParameter(parameter []float64) error {
	if !m.calibrateable {
		return nil
	}
	if len(parameter) != 1 {
		return fmt.Errorf("covariance: correlation parameter length %d, want 1", len(parameter))
	}
	return m.setDecay(parameter[0])
}

func (m *ExponentialDecay) Clone() CorrelationModel {
	clone := *m
	return &clone
}

// setDecay rebuilds the factor matrix for the given decay.
func (m *ExponentialDecay) setDecay(decay float64) error {
	decay = math.Max(decay, 0.0)

	components := m.tenor.NumberOfTimeSteps()
	correlation := mat.NewSymDense(components, nil)
	for i := 0; i < components; i++ {
		for j := i; j < components; j++ {
			correlation.SetSym(i, j, math.Exp(-decay*math.Abs(m.tenor.Time(i)-m.tenor.Time(j))))
		}
	}

	factorMatrix, err := reduceToFactors(correlation, m.factors)
	if err != nil {
		return err
	}
	m.decay = decay
	m.factorMatrix = factorMatrix
	return nil
}

// reduceToFactors keeps the numberOfFactors largest eigenvalues of the
// correlation matrix and renormalizes each component's loadings to unit
// norm, preserving unit variance per component.
func reduceToFactors(correlation *mat.SymDense, numberOfFactors int) (*mat.Dense, error) {
	n, _ := correlation.Dims()

	var eigen mat.EigenSym
	if ok := eigen.Factorize(correlation, true); !ok {
		return nil, fmt.Errorf("covariance: eigendecomposition of the correlation matrix failed")
	}
	values := eigen.Values(nil)
	var vectors mat.Dense
	eigen.VectorsTo(&vectors)

	// eigenvalues come in ascending order, take them from the top
	factorMatrix := mat.NewDense(n, numberOfFactors, nil)
	for factor := 0; factor < numberOfFactors; factor++ {
		column := n - 1 - factor
		scale := math.Sqrt(math.Max(values[column], 0.0))
		for i := 0; i < n; i++ {
			factorMatrix.Set(i, factor, vectors.At(i, column)*scale)
		}
	}
	for i := 0; i < n; i++ {
		norm := 0.0
		for factor := 0; factor < numberOfFactors; factor++ {
			norm += factorMatrix.At(i, factor) * factorMatrix.At(i, factor)
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for factor := 0; factor < numberOfFactors; factor++ {
				factorMatrix.Set(i, factor, factorMatrix.At(i, factor)/norm)
			}
		}
	}
	return factorMatrix, nil
}
