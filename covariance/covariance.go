// Package covariance provides parametric factor covariance models for
// forward rate market models: a volatility term structure times a
// factor-reduced correlation, optionally scaled by a stochastic volatility
// diffusion. Models expose a flat parameter vector as the calibration
// handle.
package covariance

import (
	"errors"
	"fmt"
)

// ErrNoPseudoInverse is returned by models that cannot invert their factor
// loadings, instead of returning wrong values.
var ErrNoPseudoInverse = errors.New("covariance: factor loading pseudo inverse not supported")

// Model maps a time index and component to the loadings on the driving
// factors.
type Model interface {
	NumberOfFactors() int
	// FactorLoading returns the loadings of the component on each factor,
	// per path, given the transformed realization at the time index. The
	// returned slices are newly allocated on each call; callers may modify
	// them.
	FactorLoading(timeIndex, component int, realization [][]float64) ([][]float64, error)
	// FactorLoadingPseudoInverse returns the per-path pseudo inverse of the
	// factor loading. Composite and closed-form models return
	// ErrNoPseudoInverse.
	FactorLoadingPseudoInverse(timeIndex, component, factor int, realization [][]float64) ([]float64, error)
}

// ParametricModel is a Model whose shape is controlled by a flat parameter
// vector. A zero-length parameter vector means the model is not
// calibrateable.
type ParametricModel interface {
	Model
	Parameter() []float64
	SetParameter(parameter []float64) error
	Clone() ParametricModel
}

// WithParameter returns an independent clone of the model holding the given
// parameter.
func WithParameter(m ParametricModel, parameter []float64) (ParametricModel, error) {
	clone := m.Clone()
	if err := clone.SetParameter(parameter); err != nil {
		return nil, err
	}
	return clone, nil
}

func broadcast(value float64, paths int) []float64 {
	out := make([]float64, paths)
	for i := range out {
		out[i] = value
	}
	return out
}

func realizationPaths(realization [][]float64) (int, error) {
	if len(realization) == 0 || len(realization[0]) == 0 {
		return 0, fmt.Errorf("covariance: empty realization")
	}
	return len(realization[0]), nil
}
